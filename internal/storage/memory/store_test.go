package memory

import (
	"context"
	"testing"
	"time"

	"github.com/yndnr/previewshare-go/internal/core/service"
	"github.com/yndnr/previewshare-go/internal/storage/storetest"
)

func TestStore_Suite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) service.TokenStore {
		return New()
	})
}

func TestStore_CloneOnReturn(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := storetest.NewRecord(t, 42, 0, time.Hour)
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rec.Revoked = true
	got, err := s.FindValidByHash(ctx, rec.TokenHash, storetest.Base)
	if err != nil {
		t.Fatalf("caller mutation leaked into store: %v", err)
	}

	got.Revoked = true
	if _, err := s.FindValidByHash(ctx, rec.TokenHash, storetest.Base); err != nil {
		t.Fatalf("returned record shares memory with store: %v", err)
	}
}

func TestStore_DeleteCleansIndexes(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := storetest.NewRecord(t, 42, 0, time.Hour)
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := s.DeleteAllForResource(ctx, 42); err != nil {
		t.Fatalf("DeleteAllForResource() error = %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
	if s.hashes.Has(rec.TokenHash) {
		t.Error("hash index not cleaned")
	}
	if s.resources.count(42) != 0 {
		t.Error("resource index not cleaned")
	}
}
