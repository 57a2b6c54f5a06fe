package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// HashPrefix marks a stored token hash.
	HashPrefix = "pvh_"

	// HashLength is the total token hash length.
	HashLength = len(HashPrefix) + 64

	// MinSecretLength is the minimum accepted server secret length.
	MinSecretLength = 16

	hkdfInfo = "previewshare token hash v1"
)

// ErrWeakSecret is returned when the server secret is too short.
var ErrWeakSecret = errors.New("token: secret must be at least 16 bytes")

// Hasher computes keyed token hashes.
//
// A Hasher is safe for concurrent use.
type Hasher struct {
	key []byte
}

// NewHasher derives an HMAC key from the server secret.
func NewHasher(secret []byte) (*Hasher, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	key := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return &Hasher{key: key}, nil
}

// Hash returns the deterministic keyed hash of a raw token.
func (h *Hasher) Hash(raw string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(raw))
	return HashPrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether raw hashes to expectedHash.
//
// Uses constant-time comparison to prevent timing attacks.
func (h *Hasher) Verify(raw, expectedHash string) bool {
	actual := h.Hash(raw)
	return subtle.ConstantTimeCompare([]byte(actual), []byte(expectedHash)) == 1
}
