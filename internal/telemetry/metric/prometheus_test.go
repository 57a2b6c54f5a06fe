package metric

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

func TestRegistry_Recorder(t *testing.T) {
	r := NewRegistry()

	r.TokenIssued(domain.ReissueReplace, 1)
	r.TokenIssued(domain.ReissueReplace, 0)
	r.TokenIssued(domain.ReissueRefresh, 2)
	r.TokenResolved("allowed")
	r.TokenResolved("expired")
	r.TokenResolved("expired")
	r.TokenRevoked(1)
	r.TokenRevoked(0)
	r.CacheLookup(true)
	r.CacheLookup(false)
	r.CacheLookup(false)
	r.CacheError("set")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"issued replace", testutil.ToFloat64(r.TokensIssued.WithLabelValues("replace")), 2},
		{"issued refresh", testutil.ToFloat64(r.TokensIssued.WithLabelValues("refresh")), 1},
		{"replaced", testutil.ToFloat64(r.TokensReplaced), 3},
		{"expired", testutil.ToFloat64(r.Resolutions.WithLabelValues("expired")), 2},
		{"revoked", testutil.ToFloat64(r.TokensRevoked), 1},
		{"cache hit", testutil.ToFloat64(r.CacheLookups.WithLabelValues("hit")), 1},
		{"cache miss", testutil.ToFloat64(r.CacheLookups.WithLabelValues("miss")), 2},
		{"cache error", testutil.ToFloat64(r.CacheErrors.WithLabelValues("set")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestRegistry_ObserveHTTP(t *testing.T) {
	r := NewRegistry()
	r.ObserveHTTP("GET", "/preview/{token}", 200, 5*time.Millisecond)
	r.ObserveHTTP("GET", "/preview/{token}", 404, time.Millisecond)

	if got := testutil.ToFloat64(r.RequestsTotal.WithLabelValues("GET", "/preview/{token}", "404")); got != 1 {
		t.Errorf("404 count = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(r.RequestDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.TokenResolved("allowed")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`previewshare_resolutions_total{outcome="allowed"} 1`,
		"previewshare_build_info{",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCollector(t *testing.T) {
	if n := testutil.CollectAndCount(NewCollector()); n != 1 {
		t.Errorf("build_info series = %d, want 1", n)
	}
}
