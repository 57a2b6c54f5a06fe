package domain

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TokenIDPrefix is the prefix for token record IDs.
const TokenIDPrefix = "ptk-"

// TokenIDLength is the total token ID length (prefix + 26-char ULID).
const TokenIDLength = len(TokenIDPrefix) + 26

// TokenRecord is the persisted metadata of an issued preview token.
// The raw token is never part of the record.
type TokenRecord struct {
	// ID is the unique identifier. Format: ptk-{ulid_lowercase}.
	ID string `json:"id"`

	// ResourceID is the protected resource the token grants access to.
	ResourceID int64 `json:"resource_id"`

	// TokenHash is the keyed hash of the raw token (format: pvh_...).
	TokenHash string `json:"token_hash"`

	// IssuerID is the principal that issued the token, empty if unknown.
	IssuerID string `json:"issuer_id,omitempty"`

	// CreatedAt is the creation timestamp (Unix milliseconds).
	CreatedAt int64 `json:"created_at"`

	// ExpiresAt is the expiry timestamp (Unix milliseconds), 0 means never.
	ExpiresAt int64 `json:"expires_at"`

	// Revoked flips false to true once and never back.
	Revoked bool `json:"revoked"`
}

// Denial classifies why a token does not grant access.
type Denial int

const (
	// DenialNone means the token is valid.
	DenialNone Denial = iota
	// DenialMalformed means the raw token failed the format check.
	DenialMalformed
	// DenialNotFound means no record matches the token hash.
	DenialNotFound
	// DenialExpired means the record passed its expiry.
	DenialExpired
	// DenialRevoked means the record was revoked.
	DenialRevoked
)

// String returns the log label of the denial.
func (d Denial) String() string {
	switch d {
	case DenialNone:
		return "none"
	case DenialMalformed:
		return "malformed"
	case DenialNotFound:
		return "not_found"
	case DenialExpired:
		return "expired"
	case DenialRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Err maps the denial to its internal domain error.
func (d Denial) Err() error {
	switch d {
	case DenialNone:
		return nil
	case DenialMalformed:
		return ErrTokenMalformed
	case DenialExpired:
		return ErrTokenExpired
	case DenialRevoked:
		return ErrTokenRevoked
	default:
		return ErrTokenNotFound
	}
}

// DenialAt evaluates the record at now. Revocation wins over expiry.
// A record is expired exactly at ExpiresAt.
func (r *TokenRecord) DenialAt(now time.Time) Denial {
	if r.Revoked {
		return DenialRevoked
	}
	if r.ExpiresAt > 0 && r.ExpiresAt <= now.UnixMilli() {
		return DenialExpired
	}
	return DenialNone
}

// IsValidAt reports whether the record grants access at now.
func (r *TokenRecord) IsValidAt(now time.Time) bool {
	return r.DenialAt(now) == DenialNone
}

// NeverExpires reports whether the record has no expiry.
func (r *TokenRecord) NeverExpires() bool {
	return r.ExpiresAt == 0
}

// Remaining returns the lifetime left at now; 0 if expired.
// For records without expiry it returns -1.
func (r *TokenRecord) Remaining(now time.Time) time.Duration {
	if r.ExpiresAt == 0 {
		return -1
	}
	d := time.Duration(r.ExpiresAt-now.UnixMilli()) * time.Millisecond
	if d < 0 {
		return 0
	}
	return d
}

// Lifetime returns ExpiresAt-CreatedAt, or 0 for records without expiry.
func (r *TokenRecord) Lifetime() time.Duration {
	if r.ExpiresAt == 0 {
		return 0
	}
	return time.Duration(r.ExpiresAt-r.CreatedAt) * time.Millisecond
}

// Clone returns a copy of the record.
func (r *TokenRecord) Clone() *TokenRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Validate checks the structural invariants of a record before persisting.
func (r *TokenRecord) Validate() error {
	if !ValidateTokenID(r.ID) {
		return ErrInvalidArgument.WithDetails("malformed token id")
	}
	if r.ResourceID <= 0 {
		return ErrInvalidArgument.WithDetails("resource_id must be positive")
	}
	if r.TokenHash == "" {
		return ErrMissingArgument.WithDetails("token_hash")
	}
	if r.CreatedAt <= 0 {
		return ErrInvalidArgument.WithDetails("created_at must be set")
	}
	if r.ExpiresAt != 0 && r.ExpiresAt <= r.CreatedAt {
		return ErrInvalidArgument.WithDetails("expires_at must be after created_at")
	}
	return nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// GenerateTokenID generates a new record ID at t.
func GenerateTokenID(t time.Time) (string, error) {
	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	entropyMu.Unlock()
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}
	return TokenIDPrefix + strings.ToLower(id.String()), nil
}

// ValidateTokenID reports whether id is a well-formed record ID.
func ValidateTokenID(id string) bool {
	if len(id) != TokenIDLength || !strings.HasPrefix(id, TokenIDPrefix) {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(id[len(TokenIDPrefix):]))
	return err == nil
}

// NewTokenRecord builds a record for a freshly minted token.
// A ttl of 0 means the token never expires.
func NewTokenRecord(resourceID int64, hash, issuerID string, now time.Time, ttl time.Duration) (*TokenRecord, error) {
	id, err := GenerateTokenID(now)
	if err != nil {
		return nil, err
	}
	rec := &TokenRecord{
		ID:         id,
		ResourceID: resourceID,
		TokenHash:  hash,
		IssuerID:   issuerID,
		CreatedAt:  now.UnixMilli(),
	}
	if ttl > 0 {
		rec.ExpiresAt = now.Add(ttl).UnixMilli()
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}
