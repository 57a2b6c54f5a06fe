package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/previewshare-go/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler carries the services behind the endpoints.
	Handler handler.Config

	// APIKeys authenticates /v1 and /admin/v1 requests.
	APIKeys *APIKeys

	// Metrics serves GET /metrics. Nil disables the endpoint.
	Metrics http.Handler

	// Observer records per-route request metrics.
	Observer HTTPObserver

	// Logger for request logging.
	Logger *slog.Logger

	// ResolveRateLimit is the per-IP rate for GET /preview (requests/second).
	// 0 disables the limit.
	ResolveRateLimit float64
	ResolveBurst     int

	// AdminAllowList is the IP/CIDR allowlist for admin API (empty = no restriction).
	AdminAllowList []string

	// TrustProxy takes client IPs from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Handler.Logger == nil {
		cfg.Handler.Logger = cfg.Logger
	}
	h := handler.New(cfg.Handler)

	// Order: Recover -> RequestID -> Audit -> group middleware -> Handler
	base := []Middleware{
		Recover(cfg.Logger),
		RequestID(),
		Audit(cfg.Logger, cfg.Observer, cfg.TrustProxy),
	}
	group := func(extra ...Middleware) http.Handler {
		mws := append(append([]Middleware(nil), base...), extra...)
		return Chain(h, mws...)
	}

	mux := http.NewServeMux()

	// Health endpoints - no authentication required
	public := group()
	mux.Handle("GET /health", public)
	mux.Handle("GET /ready", public)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics, base...))
	}

	// Preview resolution - anonymous, rate limited per IP
	var resolve http.Handler = public
	if cfg.ResolveRateLimit > 0 {
		limiter := NewRateLimiterRegistry(cfg.ResolveRateLimit, cfg.ResolveBurst)
		resolve = group(RateLimit(limiter, cfg.TrustProxy))
	}
	mux.Handle("GET /preview/{token}", resolve)

	// Business API endpoints - require an API key
	business := group(Auth(cfg.APIKeys))
	mux.Handle("POST /v1/tokens", business)
	mux.Handle("POST /v1/tokens/revoke", business)
	mux.Handle("GET /v1/resources/{id}/token", business)

	// Admin API endpoints - require admin role + optional network ACL
	adminMiddlewares := []Middleware{}
	if len(cfg.AdminAllowList) > 0 {
		adminMiddlewares = append(adminMiddlewares, NetworkACL(&NetworkACLConfig{
			AllowList:  cfg.AdminAllowList,
			TrustProxy: cfg.TrustProxy,
			Logger:     cfg.Logger,
		}))
	}
	adminMiddlewares = append(adminMiddlewares, Auth(cfg.APIKeys), RequireAdmin())
	admin := group(adminMiddlewares...)

	mux.Handle("GET /admin/v1/tokens", admin)
	mux.Handle("POST /admin/v1/tokens/{id}/revoke", admin)
	mux.Handle("GET /admin/v1/settings", admin)
	mux.Handle("POST /admin/v1/settings", admin)
	mux.Handle("GET /admin/v1/resources", admin)
	mux.Handle("PUT /admin/v1/resources/{id}", admin)
	mux.Handle("DELETE /admin/v1/resources/{id}", admin)

	return mux
}
