// Package storetest holds the behavioural test suite every token store
// driver must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/internal/core/service"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) service.TokenStore

// Base is the reference time used by the suite.
var Base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var hashSeq struct {
	sync.Mutex
	n int
}

// NewRecord builds a valid record created at Base+offset.
func NewRecord(t *testing.T, resourceID int64, offset, ttl time.Duration) *domain.TokenRecord {
	t.Helper()
	hashSeq.Lock()
	hashSeq.n++
	n := hashSeq.n
	hashSeq.Unlock()

	hash := fmt.Sprintf("pvh_%064x", n)
	rec, err := domain.NewTokenRecord(resourceID, hash, "tester", Base.Add(offset), ttl)
	if err != nil {
		t.Fatalf("NewTokenRecord() error = %v", err)
	}
	return rec
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s service.TokenStore)
	}{
		{"CreateAndFind", testCreateAndFind},
		{"FindValidFiltersExpiry", testFindValidFiltersExpiry},
		{"FindValidFiltersRevoked", testFindValidFiltersRevoked},
		{"HashConflict", testHashConflict},
		{"RevokeIdempotent", testRevokeIdempotent},
		{"RevokeByID", testRevokeByID},
		{"ReplaceValid", testReplaceValid},
		{"ConcurrentReplace", testConcurrentReplace},
		{"ListNewestFirst", testListNewestFirst},
		{"LatestForResource", testLatestForResource},
		{"DeleteAllForResource", testDeleteAllForResource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

func testCreateAndFind(t *testing.T, s service.TokenStore) {
	ctx := context.Background()
	rec := NewRecord(t, 42, 0, time.Hour)
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := s.FindValidByHash(ctx, rec.TokenHash, Base)
	if err != nil {
		t.Fatalf("FindValidByHash() error = %v", err)
	}
	if got.ID != rec.ID || got.ResourceID != 42 || got.IssuerID != "tester" {
		t.Errorf("FindValidByHash() = %+v, want %+v", got, rec)
	}
	if got.CreatedAt != rec.CreatedAt || got.ExpiresAt != rec.ExpiresAt {
		t.Errorf("timestamps changed: %+v vs %+v", got, rec)
	}

	if _, err := s.FindValidByHash(ctx, "pvh_missing", Base); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("missing hash error = %v, want ErrTokenNotFound", err)
	}
}

func testFindValidFiltersExpiry(t *testing.T, s service.TokenStore) {
	ctx := context.Background()
	rec := NewRecord(t, 42, 0, time.Hour)
	never := NewRecord(t, 43, 0, 0)
	for _, r := range []*domain.TokenRecord{rec, never} {
		if err := s.Create(ctx, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	if _, err := s.FindValidByHash(ctx, rec.TokenHash, Base.Add(59*time.Minute)); err != nil {
		t.Errorf("at +59m error = %v", err)
	}
	if _, err := s.FindValidByHash(ctx, rec.TokenHash, Base.Add(time.Hour)); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("at expiry error = %v, want ErrTokenNotFound", err)
	}
	if _, err := s.FindValidByHash(ctx, never.TokenHash, Base.Add(10000*time.Hour)); err != nil {
		t.Errorf("never-expiring at +10000h error = %v", err)
	}

	got, err := s.FindByHash(ctx, rec.TokenHash)
	if err != nil {
		t.Fatalf("FindByHash() error = %v", err)
	}
	if got.DenialAt(Base.Add(2*time.Hour)) != domain.DenialExpired {
		t.Error("FindByHash() record should classify as expired")
	}
}

func testFindValidFiltersRevoked(t *testing.T, s service.TokenStore) {
	ctx := context.Background()
	rec := NewRecord(t, 42, 0, time.Hour)
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, changed, err := s.RevokeByHash(ctx, rec.TokenHash); err != nil || !changed {
		t.Fatalf("RevokeByHash() = %v, %v", changed, err)
	}
	if _, err := s.FindValidByHash(ctx, rec.TokenHash, Base); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("revoked error = %v, want ErrTokenNotFound", err)
	}
	got, err := s.FindByHash(ctx, rec.TokenHash)
	if err != nil || !got.Revoked {
		t.Errorf("FindByHash() = %+v, %v; want revoked record", got, err)
	}
}

func testHashConflict(t *testing.T, s service.TokenStore) {
	ctx := context.Background()
	a := NewRecord(t, 42, 0, time.Hour)
	b := NewRecord(t, 43, time.Millisecond, time.Hour)
	b.TokenHash = a.TokenHash
	if err := s.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Create(ctx, b); !errors.Is(err, domain.ErrTokenHashConflict) {
		t.Errorf("duplicate hash error = %v, want ErrTokenHashConflict", err)
	}
}

func testRevokeIdempotent(t *testing.T, s service.TokenStore) {
	ctx := context.Background()
	rec := NewRecord(t, 42, 0, time.Hour)
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, changed, err := s.RevokeByHash(ctx, rec.TokenHash); err != nil || !changed {
		t.Fatalf("first revoke = %v, %v; want true, nil", changed, err)
	}
	got, changed, err := s.RevokeByHash(ctx, rec.TokenHash)
	if err != nil || changed {
		t.Fatalf("second revoke = %v, %v; want false, nil", changed, err)
	}
	if got == nil || got.ID != rec.ID {
		t.Errorf("second revoke record = %+v", got)
	}
	if _, _, err := s.RevokeByHash(ctx, "pvh_missing"); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("missing revoke error = %v, want ErrTokenNotFound", err)
	}
}

func testRevokeByID(t *testing.T, s service.TokenStore) {
	ctx := context.Background()
	rec := NewRecord(t, 42, 0, time.Hour)
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, changed, err := s.RevokeByID(ctx, rec.ID)
	if err != nil || !changed {
		t.Fatalf("RevokeByID() = %v, %v", changed, err)
	}
	if got.TokenHash != rec.TokenHash {
		t.Errorf("RevokeByID() hash = %q, want %q", got.TokenHash, rec.TokenHash)
	}
	if _, err := s.FindValidByHash(ctx, rec.TokenHash, Base); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("after RevokeByID error = %v", err)
	}
	missing, _ := domain.GenerateTokenID(Base)
	if _, _, err := s.RevokeByID(ctx, missing); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("missing id error = %v, want ErrTokenNotFound", err)
	}
}

func testReplaceValid(t *testing.T, s service.TokenStore) {
	ctx := context.Background()
	old := NewRecord(t, 42, 0, time.Hour)
	expired := NewRecord(t, 42, -2*time.Hour, time.Hour)
	other := NewRecord(t, 7, 0, time.Hour)
	for _, r := range []*domain.TokenRecord{old, expired, other} {
		if err := s.Create(ctx, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	next := NewRecord(t, 42, time.Minute, time.Hour)
	revoked, err := s.ReplaceValid(ctx, next, Base.Add(time.Minute))
	if err != nil {
		t.Fatalf("ReplaceValid() error = %v", err)
	}
	if len(revoked) != 1 || revoked[0] != old.TokenHash {
		t.Errorf("ReplaceValid() revoked = %v, want [%s]", revoked, old.TokenHash)
	}

	now := Base.Add(2 * time.Minute)
	if _, err := s.FindValidByHash(ctx, old.TokenHash, now); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Error("replaced token still valid")
	}
	if _, err := s.FindValidByHash(ctx, next.TokenHash, now); err != nil {
		t.Errorf("new token error = %v", err)
	}
	if _, err := s.FindValidByHash(ctx, other.TokenHash, now); err != nil {
		t.Errorf("other resource affected: %v", err)
	}
}

func testConcurrentReplace(t *testing.T, s service.TokenStore) {
	ctx := context.Background()
	const workers = 8
	now := Base.Add(time.Minute)

	var wg sync.WaitGroup
	recs := make([]*domain.TokenRecord, workers)
	for i := range recs {
		recs[i] = NewRecord(t, 99, time.Duration(i)*time.Millisecond, time.Hour)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(rec *domain.TokenRecord) {
			defer wg.Done()
			// Retry conflicts the way the service does.
			for attempt := 0; attempt < workers; attempt++ {
				_, err := s.ReplaceValid(ctx, rec, now)
				if !errors.Is(err, domain.ErrReissueConflict) {
					return
				}
			}
		}(recs[i])
	}
	wg.Wait()

	valid := 0
	for _, rec := range recs {
		if _, err := s.FindValidByHash(ctx, rec.TokenHash, now); err == nil {
			valid++
		}
	}
	if valid != 1 {
		t.Errorf("valid tokens after concurrent replace = %d, want 1", valid)
	}
}

func testListNewestFirst(t *testing.T, s service.TokenStore) {
	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		rec := NewRecord(t, int64(10+i), time.Duration(i)*time.Second, time.Hour)
		if err := s.Create(ctx, rec); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		ids = append(ids, rec.ID)
	}

	page1, total, err := s.List(ctx, 1, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page1) != 2 || page1[0].ID != ids[4] || page1[1].ID != ids[3] {
		t.Errorf("page 1 = %v", recordIDs(page1))
	}

	page3, _, err := s.List(ctx, 3, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page3) != 1 || page3[0].ID != ids[0] {
		t.Errorf("page 3 = %v", recordIDs(page3))
	}

	beyond, total, err := s.List(ctx, 10, 2)
	if err != nil || len(beyond) != 0 || total != 5 {
		t.Errorf("beyond last page = %v, %d, %v", recordIDs(beyond), total, err)
	}
}

func testLatestForResource(t *testing.T, s service.TokenStore) {
	ctx := context.Background()
	if _, err := s.LatestForResource(ctx, 42); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("empty error = %v, want ErrTokenNotFound", err)
	}
	first := NewRecord(t, 42, 0, time.Hour)
	second := NewRecord(t, 42, time.Minute, time.Hour)
	for _, r := range []*domain.TokenRecord{first, second} {
		if err := s.Create(ctx, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	got, err := s.LatestForResource(ctx, 42)
	if err != nil {
		t.Fatalf("LatestForResource() error = %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("LatestForResource() = %s, want %s", got.ID, second.ID)
	}
}

func testDeleteAllForResource(t *testing.T, s service.TokenStore) {
	ctx := context.Background()
	a := NewRecord(t, 42, 0, time.Hour)
	b := NewRecord(t, 42, time.Second, 0)
	keep := NewRecord(t, 7, 0, time.Hour)
	for _, r := range []*domain.TokenRecord{a, b, keep} {
		if err := s.Create(ctx, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	hashes, err := s.HashesForResource(ctx, 42)
	if err != nil || len(hashes) != 2 {
		t.Fatalf("HashesForResource() = %v, %v", hashes, err)
	}

	deleted, err := s.DeleteAllForResource(ctx, 42)
	if err != nil {
		t.Fatalf("DeleteAllForResource() error = %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted = %v, want 2 hashes", deleted)
	}
	if _, err := s.FindByHash(ctx, a.TokenHash); !errors.Is(err, domain.ErrTokenNotFound) {
		t.Errorf("deleted record still found: %v", err)
	}
	if _, err := s.FindValidByHash(ctx, keep.TokenHash, Base); err != nil {
		t.Errorf("unrelated record removed: %v", err)
	}
	_, total, _ := s.List(ctx, 1, 10)
	if total != 1 {
		t.Errorf("total after delete = %d, want 1", total)
	}
}

func recordIDs(recs []*domain.TokenRecord) []string {
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids
}
