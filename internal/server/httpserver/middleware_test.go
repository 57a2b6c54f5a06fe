package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/internal/server/httpserver/handler"
	"github.com/yndnr/previewshare-go/internal/telemetry/logger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp handler.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return resp.Code
}

func TestRequestID(t *testing.T) {
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logger.RequestIDFromContext(r.Context()) == "" {
			t.Error("expected request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates request ID when not provided", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))

		requestID := rec.Header().Get("X-Request-ID")
		if !strings.HasPrefix(requestID, "req-") {
			t.Errorf("expected request ID to start with 'req-', got %s", requestID)
		}
	})

	t.Run("preserves existing request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", "existing-id-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got != "existing-id-123" {
			t.Errorf("expected 'existing-id-123', got %s", got)
		}
	})

	t.Run("replaces oversized request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", strings.Repeat("x", 100))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); !strings.HasPrefix(got, "req-") {
			t.Errorf("got %s, want generated id", got)
		}
	})
}

func TestChain(t *testing.T) {
	var order []int
	mw := func(n int) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, n)
				next.ServeHTTP(w, r)
			})
		}
	}

	Chain(okHandler(), mw(1), mw(2), mw(3)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestAPIKeys_Lookup(t *testing.T) {
	keys := NewAPIKeys(map[string]domain.Principal{
		"admin-key":  {ID: "root", Role: domain.RoleAdmin},
		"editor-key": {ID: "alice", Role: domain.RoleEditor},
	})

	tests := []struct {
		key    string
		wantOK bool
		wantID string
	}{
		{"admin-key", true, "root"},
		{"editor-key", true, "alice"},
		{"editor-key ", false, ""},
		{"", false, ""},
		{"unknown", false, ""},
	}
	for _, tt := range tests {
		p, ok := keys.Lookup(tt.key)
		if ok != tt.wantOK || p.ID != tt.wantID {
			t.Errorf("Lookup(%q) = (%+v, %v), want (%q, %v)", tt.key, p, ok, tt.wantID, tt.wantOK)
		}
	}

	var nilKeys *APIKeys
	if _, ok := nilKeys.Lookup("admin-key"); ok {
		t.Error("nil table should reject every key")
	}
}

func TestAuth(t *testing.T) {
	keys := NewAPIKeys(map[string]domain.Principal{
		"editor-key": {ID: "alice", Role: domain.RoleEditor},
	})
	h := Auth(keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := handler.PrincipalFromContext(r.Context())
		if p.ID != "alice" {
			t.Errorf("principal = %+v", p)
		}
		if logger.PrincipalIDFromContext(r.Context()) != "alice" {
			t.Error("principal id should reach the log context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
		wantCode   string
	}{
		{"bearer", "Authorization", "Bearer editor-key", http.StatusOK, ""},
		{"x-api-key", "X-API-Key", "editor-key", http.StatusOK, ""},
		{"missing", "", "", http.StatusUnauthorized, domain.ErrAPIKeyMissing.Code},
		{"wrong", "Authorization", "Bearer nope", http.StatusUnauthorized, domain.ErrAPIKeyInvalid.Code},
		{"basic scheme", "Authorization", "Basic editor-key", http.StatusUnauthorized, domain.ErrAPIKeyMissing.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/tokens", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCode != "" && errorCode(t, rec) != tt.wantCode {
				t.Errorf("code = %q, want %q", errorCode(t, rec), tt.wantCode)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	keys := NewAPIKeys(map[string]domain.Principal{
		"admin-key":  {ID: "root", Role: domain.RoleAdmin},
		"editor-key": {ID: "alice", Role: domain.RoleEditor},
	})
	h := Chain(okHandler(), Auth(keys), RequireAdmin())

	for key, want := range map[string]int{
		"admin-key":  http.StatusOK,
		"editor-key": http.StatusForbidden,
	} {
		req := httptest.NewRequest("GET", "/admin/v1/tokens", nil)
		req.Header.Set("Authorization", "Bearer "+key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", key, rec.Code, want)
		}
	}
}

func TestRateLimiterRegistry(t *testing.T) {
	reg := NewRateLimiterRegistry(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	if !reg.Allow("1.1.1.1") || !reg.Allow("1.1.1.1") {
		t.Fatal("burst of 2 should pass")
	}
	if reg.Allow("1.1.1.1") {
		t.Error("third request should be limited")
	}
	if !reg.Allow("2.2.2.2") {
		t.Error("other IPs have their own bucket")
	}

	now = now.Add(time.Second)
	if !reg.Allow("1.1.1.1") {
		t.Error("bucket should refill after a second")
	}

	now = now.Add(time.Hour)
	reg.Allow("3.3.3.3")
	if reg.Len() != 1 {
		t.Errorf("idle buckets should be swept, have %d", reg.Len())
	}
}

func TestRateLimit(t *testing.T) {
	reg := NewRateLimiterRegistry(1, 1)
	h := RateLimit(reg, false)(okHandler())

	send := func(remote, xff string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/preview/x", nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("10.0.0.1:1000", ""); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := send("10.0.0.1:1001", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if errorCode(t, rec) != domain.ErrRateLimited.Code {
		t.Errorf("code = %q", errorCode(t, rec))
	}

	// Spoofed proxy headers are ignored unless trusted.
	if rec := send("10.0.0.1:1002", "9.9.9.9"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("untrusted XFF status = %d, want 429", rec.Code)
	}
}

func TestRateLimitConcurrency(t *testing.T) {
	reg := NewRateLimiterRegistry(1000, 1000)
	h := RateLimit(reg, true)(okHandler())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest("GET", "/preview/x", nil)
			req.Header.Set("X-Real-IP", "10.0.0."+string(rune('0'+i%10)))
			h.ServeHTTP(httptest.NewRecorder(), req)
		}(i)
	}
	wg.Wait()

	if reg.Len() != 10 {
		t.Errorf("tracked IPs = %d, want 10", reg.Len())
	}
}

func TestNetworkACL(t *testing.T) {
	tests := []struct {
		name       string
		allow      []string
		remote     string
		wantStatus int
	}{
		{"empty allowlist", nil, "192.168.1.100:1", http.StatusOK},
		{"single IP", []string{"192.168.1.100"}, "192.168.1.100:1", http.StatusOK},
		{"CIDR", []string{"10.0.0.0/8"}, "10.1.2.3:1", http.StatusOK},
		{"IPv6", []string{"::1"}, "[::1]:1", http.StatusOK},
		{"denied", []string{"10.0.0.0/8"}, "192.168.1.1:1", http.StatusForbidden},
		{"invalid entries skipped", []string{"bogus", "10.0.0.0/99", "10.0.0.1"}, "10.0.0.1:1", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NetworkACL(&NetworkACLConfig{AllowList: tt.allow, Logger: discardLogger()})(okHandler())
			req := httptest.NewRequest("GET", "/admin/v1/tokens", nil)
			req.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRecover(t *testing.T) {
	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, nil))

	h := Recover(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if errorCode(t, rec) != domain.ErrInternalServer.Code {
		t.Errorf("code = %q", errorCode(t, rec))
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("log = %s", buf.String())
	}
}

type fakeObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *fakeObserver) ObserveHTTP(method, route string, code int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, method+" "+route+" "+http.StatusText(code))
}

func TestAudit(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantLog string
	}{
		{"client error", http.StatusBadRequest, "client error"},
		{"server error", http.StatusInternalServerError, "completed with error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf strings.Builder
			log := slog.New(slog.NewTextHandler(&buf, nil))
			obs := &fakeObserver{}

			mux := http.NewServeMux()
			mux.Handle("GET /preview/{token}", Audit(log, obs, false)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})))

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", "/preview/pvt_secret", nil))

			if !strings.Contains(buf.String(), tt.wantLog) {
				t.Errorf("log = %s", buf.String())
			}
			if strings.Contains(buf.String(), "pvt_secret") {
				t.Error("raw path must not be logged")
			}
			want := "GET GET /preview/{token} " + http.StatusText(tt.status)
			if len(obs.calls) != 1 || obs.calls[0] != want {
				t.Errorf("observer calls = %v, want [%s]", obs.calls, want)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	wrapped.WriteHeader(http.StatusCreated)
	wrapped.WriteHeader(http.StatusInternalServerError)

	if wrapped.statusCode != http.StatusCreated {
		t.Errorf("status = %d, want first written 201", wrapped.statusCode)
	}
	if wrapped.Unwrap() != rec {
		t.Error("Unwrap should return the inner writer")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr", "192.168.1.1:12345", nil, false, "192.168.1.1"},
		{"ipv6", "[::1]:8080", nil, false, "::1"},
		{"no port", "192.168.1.1", nil, false, "192.168.1.1"},
		{"xff ignored", "192.168.1.1:1", map[string]string{"X-Forwarded-For": "10.0.0.1"}, false, "192.168.1.1"},
		{"xff trusted", "192.168.1.1:1", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, true, "10.0.0.1"},
		{"real ip trusted", "192.168.1.1:1", map[string]string{"X-Real-IP": "10.0.0.9"}, true, "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
