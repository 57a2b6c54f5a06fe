package service

import (
	"context"
	"time"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

// TokenStore persists token records.
//
// Implementations return domain.ErrTokenNotFound for missing records,
// domain.ErrStorageUnavailable for transient faults and
// domain.ErrStorageError for everything else.
type TokenStore interface {
	// Create inserts a new record.
	Create(ctx context.Context, rec *domain.TokenRecord) error

	// ReplaceValid atomically revokes every record of rec.ResourceID that is
	// valid at now and inserts rec. It returns the hashes it revoked.
	// A lost race with a concurrent replacement yields domain.ErrReissueConflict.
	ReplaceValid(ctx context.Context, rec *domain.TokenRecord, now time.Time) ([]string, error)

	// FindValidByHash returns the record for hash only if it is valid at now.
	// Validity is checked in the same lock, transaction or query as the lookup.
	FindValidByHash(ctx context.Context, hash string, now time.Time) (*domain.TokenRecord, error)

	// FindByHash returns the newest record for hash in any state.
	FindByHash(ctx context.Context, hash string) (*domain.TokenRecord, error)

	// RevokeByHash revokes the record for hash. The bool reports whether the
	// record changed state.
	RevokeByHash(ctx context.Context, hash string) (*domain.TokenRecord, bool, error)

	// RevokeByID revokes the record with id.
	RevokeByID(ctx context.Context, id string) (*domain.TokenRecord, bool, error)

	// List returns one page of records ordered by creation time, newest
	// first, plus the total count.
	List(ctx context.Context, page, pageSize int) ([]*domain.TokenRecord, int, error)

	// LatestForResource returns the newest record of a resource.
	LatestForResource(ctx context.Context, resourceID int64) (*domain.TokenRecord, error)

	// HashesForResource returns the hashes of every record of a resource.
	HashesForResource(ctx context.Context, resourceID int64) ([]string, error)

	// DeleteAllForResource removes every record of a resource and returns
	// their hashes.
	DeleteAllForResource(ctx context.Context, resourceID int64) ([]string, error)

	// Close releases the store.
	Close() error
}

// ResolutionCache maps token hashes to resource IDs.
//
// Only positive resolutions are cached. Invalidate and InvalidateResource
// must leave a short tombstone so a concurrent Set cannot bring a stale
// entry back.
type ResolutionCache interface {
	Get(ctx context.Context, hash string) (int64, bool, error)
	Set(ctx context.Context, hash string, resourceID int64, ttl time.Duration) error
	Invalidate(ctx context.Context, hash string) error
	InvalidateResource(ctx context.Context, resourceID int64) error
}

// ResourceRepository looks up protected resources.
type ResourceRepository interface {
	// Get returns the resource or domain.ErrResourceNotFound.
	Get(ctx context.Context, id int64) (*domain.Resource, error)
}

// Authorizer decides whether a principal may manage previews of a resource.
// res is nil when the resource does not exist; implementations must not
// reveal that through a different error.
type Authorizer interface {
	Authorize(ctx context.Context, p domain.Principal, resourceID int64, res *domain.Resource) error
}

// SettingsProvider supplies the current settings.
type SettingsProvider interface {
	Settings(ctx context.Context) (domain.Settings, error)
}

// SettingsStore reads and updates settings.
type SettingsStore interface {
	SettingsProvider
	Update(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error)
}

// Recorder receives lifecycle measurements.
type Recorder interface {
	TokenIssued(strategy domain.ReissueStrategy, replaced int)
	TokenResolved(outcome string)
	TokenRevoked(count int)
	CacheLookup(hit bool)
	CacheError(op string)
}

// ExpiryHook is called when resolution observes an expired token.
type ExpiryHook func(ctx context.Context, resourceID int64)

type nopRecorder struct{}

func (nopRecorder) TokenIssued(domain.ReissueStrategy, int) {}
func (nopRecorder) TokenResolved(string)                    {}
func (nopRecorder) TokenRevoked(int)                        {}
func (nopRecorder) CacheLookup(bool)                        {}
func (nopRecorder) CacheError(string)                       {}

// allowAll is used when no Authorizer is configured.
type allowAll struct{}

func (allowAll) Authorize(context.Context, domain.Principal, int64, *domain.Resource) error {
	return nil
}
