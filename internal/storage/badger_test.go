package storage

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/previewshare-go/internal/core/service"
	"github.com/yndnr/previewshare-go/internal/storage/storetest"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	cfg := DefaultBadgerConfig(t.TempDir())
	cfg.GCInterval = time.Hour
	cfg.SyncWrites = false
	s, err := NewBadgerStore(cfg, slog.Default())
	if err != nil {
		t.Fatalf("NewBadgerStore() error = %v", err)
	}
	return s
}

func TestBadgerStore_Suite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) service.TokenStore {
		return newTestBadgerStore(t)
	})
}

func TestBadgerStore_InMemory(t *testing.T) {
	cfg := DefaultBadgerConfig("")
	cfg.InMemory = true
	s, err := NewBadgerStore(cfg, slog.Default())
	if err != nil {
		t.Fatalf("NewBadgerStore(in-memory) error = %v", err)
	}
	defer s.Close()

	rec := storetest.NewRecord(t, 5, 0, time.Hour)
	if err := s.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestBadgerStore_RequiresDir(t *testing.T) {
	if _, err := NewBadgerStore(DefaultBadgerConfig(""), nil); err == nil {
		t.Fatal("NewBadgerStore() without dir should fail")
	}
}

func TestBadgerStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultBadgerConfig(dir)
	cfg.GCInterval = time.Hour

	s, err := NewBadgerStore(cfg, nil)
	if err != nil {
		t.Fatalf("NewBadgerStore() error = %v", err)
	}
	rec := storetest.NewRecord(t, 42, 0, 0)
	if err := s.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = NewBadgerStore(cfg, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	got, err := s.FindValidByHash(context.Background(), rec.TokenHash, storetest.Base.Add(1000*time.Hour))
	if err != nil {
		t.Fatalf("FindValidByHash() after reopen error = %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("got %s, want %s", got.ID, rec.ID)
	}
}

func TestBadgerStore_CloseIdempotent(t *testing.T) {
	s := newTestBadgerStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestBadgerStore_GCAndMetrics(t *testing.T) {
	s := newTestBadgerStore(t)
	defer s.Close()

	reg := prometheus.NewRegistry()
	s.RegisterMetrics(reg)

	if err := s.GC(context.Background()); err != nil {
		t.Fatalf("GC() error = %v", err)
	}
	s.updateMetrics()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"previewshare_badger_lsm_size_bytes",
		"previewshare_badger_gc_runs_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestResourceHex(t *testing.T) {
	if got := resourceHex(42); got != "000000000000002a" {
		t.Errorf("resourceHex(42) = %q", got)
	}
	if len(resourcePrefix(1)) != len(resourcePrefix(1<<40)) {
		t.Error("resource prefixes must have fixed width")
	}
}
