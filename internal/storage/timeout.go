package storage

import (
	"context"
	"errors"
	"time"

	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/internal/core/service"
)

// timeoutStore bounds every call of the wrapped store.
type timeoutStore struct {
	next    service.TokenStore
	timeout time.Duration
}

// WithTimeout wraps store so that every call carries a deadline of d.
// A call that exceeds it returns domain.ErrStorageUnavailable.
// d <= 0 returns store unchanged.
func WithTimeout(store service.TokenStore, d time.Duration) service.TokenStore {
	if d <= 0 {
		return store
	}
	return &timeoutStore{next: store, timeout: d}
}

func (s *timeoutStore) Create(ctx context.Context, rec *domain.TokenRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.check(ctx, s.next.Create(ctx, rec))
}

func (s *timeoutStore) ReplaceValid(ctx context.Context, rec *domain.TokenRecord, now time.Time) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	hashes, err := s.next.ReplaceValid(ctx, rec, now)
	return hashes, s.check(ctx, err)
}

func (s *timeoutStore) FindValidByHash(ctx context.Context, hash string, now time.Time) (*domain.TokenRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.next.FindValidByHash(ctx, hash, now)
	return rec, s.check(ctx, err)
}

func (s *timeoutStore) FindByHash(ctx context.Context, hash string) (*domain.TokenRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.next.FindByHash(ctx, hash)
	return rec, s.check(ctx, err)
}

func (s *timeoutStore) RevokeByHash(ctx context.Context, hash string) (*domain.TokenRecord, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, changed, err := s.next.RevokeByHash(ctx, hash)
	return rec, changed, s.check(ctx, err)
}

func (s *timeoutStore) RevokeByID(ctx context.Context, id string) (*domain.TokenRecord, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, changed, err := s.next.RevokeByID(ctx, id)
	return rec, changed, s.check(ctx, err)
}

func (s *timeoutStore) List(ctx context.Context, page, pageSize int) ([]*domain.TokenRecord, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	recs, total, err := s.next.List(ctx, page, pageSize)
	return recs, total, s.check(ctx, err)
}

func (s *timeoutStore) LatestForResource(ctx context.Context, resourceID int64) (*domain.TokenRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.next.LatestForResource(ctx, resourceID)
	return rec, s.check(ctx, err)
}

func (s *timeoutStore) HashesForResource(ctx context.Context, resourceID int64) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	hashes, err := s.next.HashesForResource(ctx, resourceID)
	return hashes, s.check(ctx, err)
}

func (s *timeoutStore) DeleteAllForResource(ctx context.Context, resourceID int64) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	hashes, err := s.next.DeleteAllForResource(ctx, resourceID)
	return hashes, s.check(ctx, err)
}

func (s *timeoutStore) Close() error {
	return s.next.Close()
}

// check maps deadline overruns to domain.ErrStorageUnavailable, including
// drivers that ignore the context and return late.
func (s *timeoutStore) check(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if err == nil || !domain.IsTransient(err) {
			cause := err
			if cause == nil {
				cause = ctx.Err()
			}
			return domain.ErrStorageUnavailable.WithDetails("store call timed out").WithCause(cause)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrStorageUnavailable.WithCause(err)
	}
	return err
}
