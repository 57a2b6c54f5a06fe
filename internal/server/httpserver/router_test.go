package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yndnr/previewshare-go/internal/authz"
	"github.com/yndnr/previewshare-go/internal/cache/lru"
	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/internal/core/service"
	"github.com/yndnr/previewshare-go/internal/resource"
	"github.com/yndnr/previewshare-go/internal/server/httpserver/handler"
	"github.com/yndnr/previewshare-go/internal/settings"
	"github.com/yndnr/previewshare-go/internal/storage/memory"
	"github.com/yndnr/previewshare-go/internal/telemetry/metric"
	"github.com/yndnr/previewshare-go/pkg/token"
)

const (
	adminKey  = "admin-key-0123456789"
	editorKey = "editor-key-0123456789"
)

func newTestRouter(t *testing.T, cfg RouterConfig) http.Handler {
	t.Helper()
	log := discardLogger()

	hasher, err := token.NewHasher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}
	st, err := settings.NewStore(domain.DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}
	reg := resource.NewRegistry()
	if err := reg.Load([]domain.Resource{{ID: 42, Title: "Draft", State: domain.StateDraft, OwnerID: "alice"}}); err != nil {
		t.Fatal(err)
	}
	az := authz.NewRoleAuthorizer()
	metrics := metric.NewRegistry()
	previews := service.NewPreviewService(memory.New(), reg, st, hasher,
		service.WithCache(lru.New(), service.DefaultCacheTTL),
		service.WithAuthorizer(az),
		service.WithRecorder(metrics),
		service.WithLogger(log),
		service.WithBaseURL("http://preview.test"),
	)
	reg.Subscribe(previews.HandleResourceEvent)

	cfg.Handler = handler.Config{
		Previews:   previews,
		Settings:   service.NewSettingsService(st, log),
		Resources:  reg,
		Authorizer: az,
	}
	cfg.APIKeys = NewAPIKeys(map[string]domain.Principal{
		adminKey:  {ID: "root", Role: domain.RoleAdmin},
		editorKey: {ID: "alice", Role: domain.RoleEditor},
	})
	cfg.Metrics = metrics.Handler()
	cfg.Observer = metrics
	cfg.Logger = log
	return NewRouter(&cfg)
}

func call(t *testing.T, h http.Handler, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "203.0.113.7:4000"
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PreviewFlow(t *testing.T) {
	h := newTestRouter(t, RouterConfig{})

	rec := call(t, h, "POST", "/v1/tokens", editorKey, handler.IssueTokenRequest{ResourceID: 42})
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue status = %d (%s)", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID")
	}
	var env struct {
		Data handler.IssueTokenResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	raw := env.Data.Token

	// Issue warms the cache, so both resolutions hit.
	for i := 0; i < 2; i++ {
		if rec := call(t, h, "GET", "/preview/"+raw, "", nil); rec.Code != http.StatusOK {
			t.Fatalf("resolve %d status = %d", i, rec.Code)
		}
	}

	if rec := call(t, h, "POST", "/v1/tokens/revoke", editorKey, handler.RevokeTokenRequest{Token: raw}); rec.Code != http.StatusOK {
		t.Fatalf("revoke status = %d", rec.Code)
	}
	if rec := call(t, h, "GET", "/preview/"+raw, "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("resolve after revoke status = %d, want 404", rec.Code)
	}

	rec = call(t, h, "GET", "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`previewshare_tokens_issued_total`,
		`previewshare_cache_lookups_total{result="hit"} 2`,
		`route="GET /preview/{token}"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
	if strings.Contains(body, raw) {
		t.Error("raw token leaked into metrics")
	}
}

func TestRouter_Auth(t *testing.T) {
	h := newTestRouter(t, RouterConfig{})

	tests := []struct {
		name       string
		method     string
		path       string
		key        string
		wantStatus int
	}{
		{"health is public", "GET", "/health", "", http.StatusOK},
		{"issue needs key", "POST", "/v1/tokens", "", http.StatusUnauthorized},
		{"issue bad key", "POST", "/v1/tokens", "wrong", http.StatusUnauthorized},
		{"admin needs key", "GET", "/admin/v1/tokens", "", http.StatusUnauthorized},
		{"admin rejects editor", "GET", "/admin/v1/tokens", editorKey, http.StatusForbidden},
		{"admin accepts admin", "GET", "/admin/v1/tokens", adminKey, http.StatusOK},
		{"settings for admin", "GET", "/admin/v1/settings", adminKey, http.StatusOK},
		{"resources for admin", "GET", "/admin/v1/resources", adminKey, http.StatusOK},
		{"unknown route", "GET", "/nope", adminKey, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := call(t, h, tt.method, tt.path, tt.key, nil); rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestRouter_ResolveRateLimit(t *testing.T) {
	h := newTestRouter(t, RouterConfig{ResolveRateLimit: 1, ResolveBurst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, call(t, h, "GET", "/preview/pvt_unknown", "", nil).Code)
	}
	if codes[0] != http.StatusNotFound || codes[1] != http.StatusNotFound || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [404 404 429]", codes)
	}

	// Authenticated endpoints are not subject to the resolve limit.
	if rec := call(t, h, "GET", "/admin/v1/settings", adminKey, nil); rec.Code != http.StatusOK {
		t.Errorf("admin status = %d", rec.Code)
	}
}

func TestRouter_AdminAllowList(t *testing.T) {
	h := newTestRouter(t, RouterConfig{AdminAllowList: []string{"10.0.0.0/8"}})

	if rec := call(t, h, "GET", "/admin/v1/settings", adminKey, nil); rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 outside allowlist", rec.Code)
	}
	if rec := call(t, h, "POST", "/v1/tokens", editorKey, handler.IssueTokenRequest{ResourceID: 42}); rec.Code != http.StatusCreated {
		t.Errorf("non-admin routes ignore the allowlist, status = %d", rec.Code)
	}
}
