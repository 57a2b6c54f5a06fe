package config

import (
	"time"

	"github.com/yndnr/previewshare-go/internal/cache/rediscache"
	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/internal/events/natsbus"
	"github.com/yndnr/previewshare-go/internal/storage"
	"github.com/yndnr/previewshare-go/internal/telemetry/logger"
)

// ServerConfig is the root configuration for previewshare-server.
type ServerConfig struct {
	Server    ServerSection     `koanf:"server"`
	Storage   storage.Config    `koanf:"storage"`
	Cache     CacheSection      `koanf:"cache"`
	Events    EventsSection     `koanf:"events"`
	Security  SecuritySection   `koanf:"security"`
	Preview   PreviewSection    `koanf:"preview"`
	Log       logger.Config     `koanf:"log"`
	Resources []domain.Resource `koanf:"resources"`
}

// ServerSection configures the HTTP endpoint.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`

	// PublicBaseURL prefixes generated preview URLs, e.g.
	// "https://preview.example.com".
	PublicBaseURL string `koanf:"public_base_url"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	RateLimit RateLimitConfig `koanf:"rate_limit"`

	// AdminAllowList restricts /admin/v1 to these IPs or CIDRs.
	AdminAllowList []string `koanf:"admin_allow_list"`

	// TrustProxy takes client IPs from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `koanf:"trust_proxy"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr         string        `koanf:"addr"`
	TLSCertFile  string        `koanf:"tls_cert_file"`
	TLSKeyFile   string        `koanf:"tls_key_file"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// RateLimitConfig limits anonymous preview resolution per client IP.
type RateLimitConfig struct {
	// PerSecond is the sustained rate. 0 disables the limit.
	PerSecond float64 `koanf:"per_second"`
	Burst     int     `koanf:"burst"`
}

// CacheSection configures the resolution cache.
type CacheSection struct {
	// Driver is one of none, lru, redis.
	// Default: lru
	Driver string `koanf:"driver"`

	// TTL caps how long a positive resolution stays cached.
	// Default: 1h
	TTL time.Duration `koanf:"ttl"`

	// Capacity bounds the lru driver.
	Capacity int `koanf:"capacity"`

	// TombstoneTTL is how long an invalidation blocks re-warming.
	TombstoneTTL time.Duration `koanf:"tombstone_ttl"`

	Redis rediscache.Config `koanf:"redis"`
}

// EventsSection configures resource events over NATS.
type EventsSection struct {
	Enabled bool           `koanf:"enabled"`
	NATS    natsbus.Config `koanf:"nats"`
}

// SecuritySection configures secrets and API credentials.
type SecuritySection struct {
	// TokenSecret keys the token hasher. Changing it invalidates every
	// issued token.
	TokenSecret string `koanf:"token_secret"`

	APIKeys []APIKey `koanf:"api_keys"`
}

// APIKey maps a bearer key to a principal.
type APIKey struct {
	Key         string      `koanf:"key"`
	PrincipalID string      `koanf:"principal_id"`
	Role        domain.Role `koanf:"role"`
}

// PreviewSection holds the initial lifecycle settings. It is the only
// section reloaded while the server runs.
type PreviewSection struct {
	domain.Settings `koanf:",squash"`

	// StateFile persists settings changed through the admin API. Values
	// stored there win over the ones in this section at startup.
	StateFile string `koanf:"state_file"`
}

// Principals returns the API key table keyed by bearer key.
func (s *SecuritySection) Principals() map[string]domain.Principal {
	out := make(map[string]domain.Principal, len(s.APIKeys))
	for _, k := range s.APIKeys {
		out[k.Key] = domain.Principal{ID: k.PrincipalID, Role: k.Role}
	}
	return out
}
