package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

// Namespace prefixes every metric name.
const Namespace = "previewshare"

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Token lifecycle
	TokensIssued   *prometheus.CounterVec
	TokensReplaced prometheus.Counter
	TokensRevoked  prometheus.Counter
	Resolutions    *prometheus.CounterVec

	// Resolution cache
	CacheLookups *prometheus.CounterVec
	CacheErrors  *prometheus.CounterVec

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with the application, Go runtime and
// process collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tokens_issued_total",
			Help:      "Preview tokens issued, by reissue strategy.",
		}, []string{"strategy"}),
		TokensReplaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tokens_replaced_total",
			Help:      "Valid tokens revoked because a new token was issued.",
		}),
		TokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tokens_revoked_total",
			Help:      "Tokens revoked explicitly.",
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "resolutions_total",
			Help:      "Token resolutions, by outcome.",
		}, []string{"outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_lookups_total",
			Help:      "Resolution cache lookups, by result.",
		}, []string{"result"}),
		CacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_errors_total",
			Help:      "Resolution cache failures, by operation.",
		}, []string{"op"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status code.",
		}, []string{"method", "route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.reg.MustRegister(
		r.TokensIssued, r.TokensReplaced, r.TokensRevoked, r.Resolutions,
		r.CacheLookups, r.CacheErrors,
		r.RequestsTotal, r.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewCollector(),
	)
	return r
}

// Registerer exposes the registry for components that add their own
// collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Gatherer exposes the registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// TokenIssued records an issuance and the tokens it replaced.
func (r *Registry) TokenIssued(strategy domain.ReissueStrategy, replaced int) {
	r.TokensIssued.WithLabelValues(string(strategy)).Inc()
	if replaced > 0 {
		r.TokensReplaced.Add(float64(replaced))
	}
}

// TokenResolved records a resolution outcome.
func (r *Registry) TokenResolved(outcome string) {
	r.Resolutions.WithLabelValues(outcome).Inc()
}

// TokenRevoked records explicit revocations.
func (r *Registry) TokenRevoked(count int) {
	if count > 0 {
		r.TokensRevoked.Add(float64(count))
	}
}

// CacheLookup records a cache hit or miss.
func (r *Registry) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheLookups.WithLabelValues(result).Inc()
}

// CacheError records a failed cache operation.
func (r *Registry) CacheError(op string) {
	r.CacheErrors.WithLabelValues(op).Inc()
}

// ObserveHTTP records one served request.
func (r *Registry) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
