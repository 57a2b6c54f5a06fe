package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/pkg/cmap"
)

// Store provides in-memory token record storage with secondary indexes.
type Store struct {
	// Primary index: record ID -> record
	records *cmap.Map[string, *domain.TokenRecord]

	// Secondary index: token hash -> newest record ID with that hash
	hashes *cmap.Map[string, string]

	// Secondary index: resource ID -> set of record IDs
	resources *resourceIndex

	// Global lock for operations requiring atomicity across indexes
	mu sync.RWMutex
}

// Option configures the Store.
type Option func(*Store)

// WithShards sets the shard count of the primary index.
func WithShards(n int) Option {
	return func(s *Store) {
		s.records = cmap.NewWithShards[string, *domain.TokenRecord](n)
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		records:   cmap.New[string, *domain.TokenRecord](),
		hashes:    cmap.New[string, string](),
		resources: newResourceIndex(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create stores a new record.
func (s *Store) Create(_ context.Context, rec *domain.TokenRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(rec, time.UnixMilli(rec.CreatedAt))
}

// ReplaceValid revokes the resource's valid records and inserts rec.
func (s *Store) ReplaceValid(_ context.Context, rec *domain.TokenRecord, now time.Time) ([]string, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInsertLocked(rec, now); err != nil {
		return nil, err
	}

	var revoked []string
	for _, id := range s.resources.get(rec.ResourceID) {
		existing, ok := s.records.Get(id)
		if !ok || !existing.IsValidAt(now) {
			continue
		}
		updated := existing.Clone()
		updated.Revoked = true
		s.records.Set(id, updated)
		revoked = append(revoked, existing.TokenHash)
	}

	s.putLocked(rec)
	return revoked, nil
}

// insertLocked checks and inserts rec. Caller holds s.mu.
func (s *Store) insertLocked(rec *domain.TokenRecord, now time.Time) error {
	if err := s.checkInsertLocked(rec, now); err != nil {
		return err
	}
	s.putLocked(rec)
	return nil
}

func (s *Store) checkInsertLocked(rec *domain.TokenRecord, now time.Time) error {
	if s.records.Has(rec.ID) {
		return domain.ErrInvalidArgument.WithDetails("token id already exists")
	}
	// Hashes must be unique among valid records.
	if id, ok := s.hashes.Get(rec.TokenHash); ok {
		if existing, ok := s.records.Get(id); ok && existing.IsValidAt(now) {
			return domain.ErrTokenHashConflict
		}
	}
	return nil
}

func (s *Store) putLocked(rec *domain.TokenRecord) {
	stored := rec.Clone()
	s.records.Set(stored.ID, stored)
	s.hashes.Set(stored.TokenHash, stored.ID)
	s.resources.add(stored.ResourceID, stored.ID)
}

// FindValidByHash returns the record for hash if it is valid at now.
func (s *Store) FindValidByHash(_ context.Context, hash string, now time.Time) (*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byHashLocked(hash)
	if !ok || !rec.IsValidAt(now) {
		return nil, domain.ErrTokenNotFound
	}
	return rec.Clone(), nil
}

// FindByHash returns the record for hash in any state.
func (s *Store) FindByHash(_ context.Context, hash string) (*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byHashLocked(hash)
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) byHashLocked(hash string) (*domain.TokenRecord, bool) {
	id, ok := s.hashes.Get(hash)
	if !ok {
		return nil, false
	}
	rec, ok := s.records.Get(id)
	if !ok {
		// Index inconsistency - clean up orphaned hash
		s.hashes.Delete(hash)
		return nil, false
	}
	return rec, true
}

// Get returns the record with id.
func (s *Store) Get(_ context.Context, id string) (*domain.TokenRecord, error) {
	rec, ok := s.records.Get(id)
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return rec.Clone(), nil
}

// RevokeByHash revokes the record for hash.
func (s *Store) RevokeByHash(_ context.Context, hash string) (*domain.TokenRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byHashLocked(hash)
	if !ok {
		return nil, false, domain.ErrTokenNotFound
	}
	return s.revokeLocked(rec)
}

// RevokeByID revokes the record with id.
func (s *Store) RevokeByID(_ context.Context, id string) (*domain.TokenRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records.Get(id)
	if !ok {
		return nil, false, domain.ErrTokenNotFound
	}
	return s.revokeLocked(rec)
}

func (s *Store) revokeLocked(rec *domain.TokenRecord) (*domain.TokenRecord, bool, error) {
	if rec.Revoked {
		return rec.Clone(), false, nil
	}
	updated := rec.Clone()
	updated.Revoked = true
	s.records.Set(updated.ID, updated)
	return updated.Clone(), true, nil
}

// List returns one page of records, newest first.
func (s *Store) List(_ context.Context, page, pageSize int) ([]*domain.TokenRecord, int, error) {
	if page < 1 || pageSize < 1 {
		return nil, 0, domain.ErrInvalidArgument.WithDetails("page and page size must be positive")
	}

	s.mu.RLock()
	all := s.records.Values()
	s.mu.RUnlock()

	sortNewestFirst(all)

	total := len(all)
	start := (page - 1) * pageSize
	if start >= total {
		return []*domain.TokenRecord{}, total, nil
	}
	end := min(start+pageSize, total)

	out := make([]*domain.TokenRecord, 0, end-start)
	for _, rec := range all[start:end] {
		out = append(out, rec.Clone())
	}
	return out, total, nil
}

// LatestForResource returns the newest record of a resource.
func (s *Store) LatestForResource(_ context.Context, resourceID int64) (*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.resourceRecordsLocked(resourceID)
	if len(recs) == 0 {
		return nil, domain.ErrTokenNotFound
	}
	sortNewestFirst(recs)
	return recs[0].Clone(), nil
}

// HashesForResource returns the hashes of every record of a resource.
func (s *Store) HashesForResource(_ context.Context, resourceID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.resourceRecordsLocked(resourceID)
	hashes := make([]string, 0, len(recs))
	for _, rec := range recs {
		hashes = append(hashes, rec.TokenHash)
	}
	return hashes, nil
}

// DeleteAllForResource removes every record of a resource.
func (s *Store) DeleteAllForResource(_ context.Context, resourceID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.resources.drop(resourceID)
	hashes := make([]string, 0, len(ids))
	for _, id := range ids {
		rec, ok := s.records.Pop(id)
		if !ok {
			continue
		}
		hashes = append(hashes, rec.TokenHash)
		if owner, ok := s.hashes.Get(rec.TokenHash); ok && owner == id {
			s.hashes.Delete(rec.TokenHash)
		}
	}
	return hashes, nil
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	return s.records.Count()
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func (s *Store) resourceRecordsLocked(resourceID int64) []*domain.TokenRecord {
	ids := s.resources.get(resourceID)
	recs := make([]*domain.TokenRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.records.Get(id); ok {
			recs = append(recs, rec)
		}
	}
	return recs
}

func sortNewestFirst(recs []*domain.TokenRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt != recs[j].CreatedAt {
			return recs[i].CreatedAt > recs[j].CreatedAt
		}
		return recs[i].ID > recs[j].ID
	})
}
