package httpserver

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/previewshare-go/internal/authz"
	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/internal/server/httpserver/handler"
	"github.com/yndnr/previewshare-go/internal/telemetry/logger"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID adds a unique request ID to each request.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" || len(requestID) > 64 {
				requestID = "req-" + strings.ToLower(ulid.Make().String())
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := logger.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKeys resolves bearer keys to principals. Lookups compare digests in
// constant time against every configured key.
type APIKeys struct {
	entries []apiKeyEntry
}

type apiKeyEntry struct {
	digest    [sha256.Size]byte
	principal domain.Principal
}

// NewAPIKeys builds the lookup table from key → principal pairs.
func NewAPIKeys(keys map[string]domain.Principal) *APIKeys {
	a := &APIKeys{entries: make([]apiKeyEntry, 0, len(keys))}
	for k, p := range keys {
		a.entries = append(a.entries, apiKeyEntry{digest: sha256.Sum256([]byte(k)), principal: p})
	}
	return a
}

// Lookup returns the principal owning key.
func (a *APIKeys) Lookup(key string) (domain.Principal, bool) {
	if a == nil || key == "" {
		return domain.Principal{}, false
	}
	d := sha256.Sum256([]byte(key))
	var found domain.Principal
	ok := 0
	for i := range a.entries {
		match := subtle.ConstantTimeCompare(d[:], a.entries[i].digest[:])
		if match == 1 {
			found = a.entries[i].principal
		}
		ok |= match
	}
	return found, ok == 1
}

// Auth authenticates the API key and attaches the principal.
func Auth(keys *APIKeys) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractAPIKey(r)
			if key == "" {
				writeAuthError(w, r, domain.ErrAPIKeyMissing)
				return
			}

			p, ok := keys.Lookup(key)
			if !ok {
				writeAuthError(w, r, domain.ErrAPIKeyInvalid)
				return
			}

			ctx := handler.WithPrincipal(r.Context(), p)
			ctx = logger.WithPrincipalID(ctx, p.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects principals without the admin role. It must run
// after Auth.
func RequireAdmin() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authz.RequireAdmin(handler.PrincipalFromContext(r.Context())); err != nil {
				writeAuthError(w, r, domain.ErrAdminRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiterRegistry hands out one token bucket per client IP and drops
// buckets that stayed idle for longer than the idle window.
type RateLimiterRegistry struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	lastSweep time.Time
	now       func() time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiterRegistry creates a registry allowing perSecond requests per
// IP with the given burst.
func NewRateLimiterRegistry(perSecond float64, burst int) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     10 * time.Minute,
		limiters: make(map[string]*ipLimiter),
		now:      time.Now,
	}
}

// Allow reports whether ip may make a request now.
func (r *RateLimiterRegistry) Allow(ip string) bool {
	r.mu.Lock()
	now := r.now()
	if now.Sub(r.lastSweep) > r.idle {
		for k, l := range r.limiters {
			if now.Sub(l.lastSeen) > r.idle {
				delete(r.limiters, k)
			}
		}
		r.lastSweep = now
	}
	l, ok := r.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[ip] = l
	}
	l.lastSeen = now
	r.mu.Unlock()

	return l.limiter.AllowN(now, 1)
}

// Len returns the number of tracked IPs.
func (r *RateLimiterRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

// RateLimit applies per-IP rate limiting.
func RateLimit(reg *RateLimiterRegistry, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !reg.Allow(getClientIP(r, trustProxy)) {
				w.Header().Set("Retry-After", "1")
				writeAuthError(w, r, domain.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HTTPObserver records request metrics.
type HTTPObserver interface {
	ObserveHTTP(method, route string, code int, elapsed time.Duration)
}

// Audit logs every request and feeds the observer. Routes are labelled by
// their mux pattern so raw tokens never reach logs or metric labels.
func Audit(log *slog.Logger, obs HTTPObserver, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			elapsed := time.Since(start)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			if obs != nil {
				obs.ObserveHTTP(r.Method, route, wrapped.statusCode, elapsed)
			}

			attrs := []any{
				"request_id", logger.RequestIDFromContext(r.Context()),
				"method", r.Method,
				"route", route,
				"status", wrapped.statusCode,
				"duration_ms", elapsed.Milliseconds(),
				"client_ip", getClientIP(r, trustProxy),
			}
			if p := handler.PrincipalFromContext(r.Context()); !p.Anonymous() {
				attrs = append(attrs, "principal_id", p.ID, "role", string(p.Role))
			}

			switch {
			case wrapped.statusCode >= 500:
				log.Error("request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				log.Warn("request completed with client error", attrs...)
			default:
				log.Debug("request completed", attrs...)
			}
		})
	}
}

// Recover recovers from panics and returns 500 error.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					log.Error("panic recovered",
						"request_id", logger.RequestIDFromContext(r.Context()),
						"error", err,
						"route", r.Pattern,
					)
					writeAuthError(w, r, domain.ErrInternalServer)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// NetworkACLConfig holds configuration for network ACL middleware.
type NetworkACLConfig struct {
	// AllowList is the list of allowed IP/CIDR entries.
	// Empty list means no restriction.
	AllowList []string

	// TrustProxy reads the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	// Logger for logging denied requests.
	Logger *slog.Logger
}

// NetworkACL creates a middleware that checks client IP against an allowlist.
func NetworkACL(cfg *NetworkACLConfig) Middleware {
	var networks []*net.IPNet
	var singleIPs []net.IP

	for _, entry := range cfg.AllowList {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				if cfg.Logger != nil {
					cfg.Logger.Warn("invalid CIDR in allowlist", "entry", entry, "error", err)
				}
				continue
			}
			networks = append(networks, ipNet)
		} else {
			ip := net.ParseIP(entry)
			if ip == nil {
				if cfg.Logger != nil {
					cfg.Logger.Warn("invalid IP in allowlist", "entry", entry)
				}
				continue
			}
			singleIPs = append(singleIPs, ip)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(networks) == 0 && len(singleIPs) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := getClientIP(r, cfg.TrustProxy)
			ip := net.ParseIP(clientIP)
			if ip != nil {
				for _, allowedIP := range singleIPs {
					if allowedIP.Equal(ip) {
						next.ServeHTTP(w, r)
						return
					}
				}
				for _, network := range networks {
					if network.Contains(ip) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			if cfg.Logger != nil {
				cfg.Logger.Warn("request denied by network ACL",
					"client_ip", clientIP,
					"route", r.Pattern,
				)
			}
			writeAuthError(w, r, domain.ErrAdminRequired.WithDetails("client address not allowed"))
		})
	}
}

// extractAPIKey reads the API key from headers. It supports two formats:
// 1. Authorization: Bearer <key>
// 2. X-API-Key: <key>
func extractAPIKey(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// writeAuthError writes a middleware rejection in the response envelope.
func writeAuthError(w http.ResponseWriter, r *http.Request, de *domain.DomainError) {
	resp := handler.NewErrorResponse(logger.RequestIDFromContext(r.Context()), de.Code, de.Message, nil)
	if de.Details != "" {
		resp.Details = de.Details
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", de.Code)
	w.WriteHeader(handler.ErrorCodeToHTTPStatus(de.Code))
	json.NewEncoder(w).Encode(resp)
}

// getClientIP extracts the client IP from the request. Proxy headers are
// only honoured when trustProxy is set.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}

	// Use net.SplitHostPort to correctly handle IPv6 addresses like [::1]:8080
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
