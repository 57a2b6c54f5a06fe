package service

import (
	"errors"
	"testing"
	"time"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

func intPtr(v int) *int { return &v }

func TestEffectiveTTL(t *testing.T) {
	st := domain.DefaultSettings()

	tests := []struct {
		name    string
		request *int
		res     *domain.Resource
		st      domain.Settings
		want    time.Duration
		wantErr error
	}{
		{"global default", nil, &domain.Resource{ID: 1}, st, 24 * time.Hour, nil},
		{"nil resource", nil, nil, st, 24 * time.Hour, nil},
		{"resource override", nil, &domain.Resource{ID: 1, PreviewTTLHours: intPtr(6)}, st, 6 * time.Hour, nil},
		{"resource never expires", nil, &domain.Resource{ID: 1, PreviewTTLHours: intPtr(0)}, st, 0, nil},
		{"request wins over resource", intPtr(2), &domain.Resource{ID: 1, PreviewTTLHours: intPtr(6)}, st, 2 * time.Hour, nil},
		{"request zero", intPtr(0), &domain.Resource{ID: 1}, st, 0, nil},
		{"negative request", intPtr(-1), nil, st, 0, domain.ErrInvalidArgument},
		{"negative resource falls through", nil, &domain.Resource{ID: 1, PreviewTTLHours: intPtr(-3)}, st, 24 * time.Hour, nil},
		{"global zero", nil, nil, domain.Settings{DefaultTTLHours: 0}, 0, nil},
		{"negative global", nil, nil, domain.Settings{DefaultTTLHours: -1}, 0, domain.ErrInvalidArgument},
		{"request at cap", intPtr(domain.MaxTTLHours), nil, st, time.Duration(domain.MaxTTLHours) * time.Hour, nil},
		{"request above cap", intPtr(domain.MaxTTLHours + 1), nil, st, 0, domain.ErrInvalidArgument},
		{"request overflowing duration", intPtr(2562048), nil, st, 0, domain.ErrInvalidArgument},
		{"resource override above cap", nil, &domain.Resource{ID: 1, PreviewTTLHours: intPtr(5124097)}, st, 0, domain.ErrInvalidArgument},
		{"global above cap", nil, nil, domain.Settings{DefaultTTLHours: domain.MaxTTLHours + 1}, 0, domain.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EffectiveTTL(tt.request, tt.res, tt.st)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("EffectiveTTL() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("EffectiveTTL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EffectiveTTL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReissueTTL(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	res := &domain.Resource{ID: 7, State: domain.StateDraft}

	prev, err := domain.NewTokenRecord(7, "pvh_"+hex64('a'), "alice", now.Add(-time.Hour), 72*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenRecord() error = %v", err)
	}
	expired, err := domain.NewTokenRecord(7, "pvh_"+hex64('b'), "alice", now.Add(-3*time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenRecord() error = %v", err)
	}

	replace := domain.DefaultSettings()
	refresh := domain.DefaultSettings()
	refresh.ReissueStrategy = domain.ReissueRefresh

	tests := []struct {
		name    string
		request *int
		st      domain.Settings
		prev    *domain.TokenRecord
		want    time.Duration
		wantErr bool
	}{
		{"replace ignores prev", nil, replace, prev, 24 * time.Hour, false},
		{"refresh inherits lifetime", nil, refresh, prev, 72 * time.Hour, false},
		{"refresh explicit request", intPtr(5), refresh, prev, 5 * time.Hour, false},
		{"refresh without prev", nil, refresh, nil, 24 * time.Hour, false},
		{"refresh expired prev", nil, refresh, expired, 24 * time.Hour, false},
		{"empty strategy behaves as replace", nil, domain.Settings{DefaultTTLHours: 3}, prev, 3 * time.Hour, false},
		{"unknown strategy", nil, domain.Settings{DefaultTTLHours: 3, ReissueStrategy: "rotate"}, prev, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReissueTTL(tt.request, res, tt.st, tt.prev, now)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidArgument) {
					t.Fatalf("ReissueTTL() error = %v, want ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReissueTTL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ReissueTTL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckEligible(t *testing.T) {
	tests := []struct {
		state domain.ResourceState
		ok    bool
	}{
		{domain.StatePublish, true},
		{domain.StateDraft, true},
		{domain.StatePending, true},
		{domain.StateFuture, true},
		{domain.StatePrivate, false},
		{domain.StateTrash, false},
		{"archived", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			err := CheckEligible(&domain.Resource{ID: 1, State: tt.state})
			if tt.ok && err != nil {
				t.Errorf("CheckEligible() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, domain.ErrInvalidState) {
				t.Errorf("CheckEligible() error = %v, want ErrInvalidState", err)
			}
		})
	}
}

func TestCacheTTL(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	mk := func(ttl time.Duration) *domain.TokenRecord {
		rec, err := domain.NewTokenRecord(1, "pvh_"+hex64('c'), "", now, ttl)
		if err != nil {
			t.Fatalf("NewTokenRecord() error = %v", err)
		}
		return rec
	}

	tests := []struct {
		name string
		rec  *domain.TokenRecord
		at   time.Time
		max  time.Duration
		want time.Duration
	}{
		{"bounded by max", mk(24 * time.Hour), now, time.Hour, time.Hour},
		{"bounded by remaining", mk(time.Hour), now.Add(50 * time.Minute), time.Hour, 10 * time.Minute},
		{"never expires", mk(0), now, time.Hour, time.Hour},
		{"expired", mk(time.Hour), now.Add(2 * time.Hour), time.Hour, 0},
		{"caching disabled", mk(time.Hour), now, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CacheTTL(tt.rec, tt.at, tt.max); got != tt.want {
				t.Errorf("CacheTTL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStripedLock(t *testing.T) {
	var l stripedLock
	unlock := l.lock(42)

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		u := l.lock(42)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same resource did not block")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired
}

func hex64(c byte) string {
	b := make([]byte, 64)
	for i := range b {
		b[i] = c
	}
	return string(b)
}
