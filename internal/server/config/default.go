package config

import (
	"time"

	"github.com/yndnr/previewshare-go/internal/cache/lru"
	"github.com/yndnr/previewshare-go/internal/cache/rediscache"
	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/internal/core/service"
	"github.com/yndnr/previewshare-go/internal/events/natsbus"
	"github.com/yndnr/previewshare-go/internal/storage"
	"github.com/yndnr/previewshare-go/internal/telemetry/logger"
)

// Cache drivers.
const (
	CacheNone  = "none"
	CacheLRU   = "lru"
	CacheRedis = "redis"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:5080"
	DefaultPublicBaseURL   = "http://127.0.0.1:5080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultRatePerSecond = 10
	DefaultRateBurst     = 20

	// MinTokenSecretLen is the shortest accepted security.token_secret.
	MinTokenSecretLen = 16
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:         DefaultHTTPAddr,
				ReadTimeout:  DefaultReadTimeout,
				WriteTimeout: DefaultWriteTimeout,
			},
			PublicBaseURL:   DefaultPublicBaseURL,
			ShutdownTimeout: DefaultShutdownTimeout,
			RateLimit: RateLimitConfig{
				PerSecond: DefaultRatePerSecond,
				Burst:     DefaultRateBurst,
			},
		},
		Storage: storage.DefaultConfig(),
		Cache: CacheSection{
			Driver:       CacheLRU,
			TTL:          service.DefaultCacheTTL,
			Capacity:     lru.DefaultCapacity,
			TombstoneTTL: lru.DefaultTombstoneTTL,
			Redis:        rediscache.DefaultConfig(),
		},
		Events: EventsSection{
			NATS: natsbus.DefaultConfig(),
		},
		Preview: PreviewSection{
			Settings: domain.DefaultSettings(),
		},
		Log: logger.DefaultConfig(),
	}
}
