package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/internal/storage"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyCache(&cfg.Cache); err != nil {
		return err
	}
	if cfg.Events.Enabled && cfg.Events.NATS.URL == "" {
		return errors.New("events.nats.url is required when events are enabled")
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	if err := cfg.Preview.Settings.Validate(); err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	if err := cfg.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return verifyResources(cfg.Resources)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http: %w", err)
		}
	}
	if cfg.PublicBaseURL != "" {
		u, err := url.Parse(cfg.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server.public_base_url %q is not an absolute URL", cfg.PublicBaseURL)
		}
	}
	if cfg.RateLimit.PerSecond < 0 || cfg.RateLimit.Burst < 0 {
		return errors.New("server.rate_limit values must not be negative")
	}
	if cfg.RateLimit.PerSecond > 0 && cfg.RateLimit.Burst == 0 {
		return errors.New("server.rate_limit.burst must be at least 1")
	}
	return nil
}

func verifyStorage(cfg *storage.Config) error {
	switch cfg.Driver {
	case storage.DriverMemory:
	case storage.DriverBadger:
		if cfg.Badger.Dir == "" && !cfg.Badger.InMemory {
			return errors.New("storage.badger.dir is required")
		}
		if cfg.Badger.Dir != "" {
			if err := os.MkdirAll(cfg.Badger.Dir, 0750); err != nil {
				return errors.New("cannot create data directory: " + err.Error())
			}
		}
	case storage.DriverPostgres:
		if cfg.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of memory, badger, postgres", cfg.Driver)
	}
	if cfg.Timeout < 0 {
		return errors.New("storage.timeout must not be negative")
	}
	return nil
}

func verifyCache(cfg *CacheSection) error {
	switch cfg.Driver {
	case CacheNone:
		return nil
	case CacheLRU:
		if cfg.Capacity < 1 {
			return errors.New("cache.capacity must be at least 1")
		}
	case CacheRedis:
		if cfg.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required")
		}
	default:
		return fmt.Errorf("cache.driver %q is not one of none, lru, redis", cfg.Driver)
	}
	if cfg.TTL <= 0 {
		return errors.New("cache.ttl must be positive")
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if len(cfg.TokenSecret) < MinTokenSecretLen {
		return fmt.Errorf("security.token_secret must be at least %d bytes", MinTokenSecretLen)
	}
	seen := make(map[string]bool, len(cfg.APIKeys))
	for i, k := range cfg.APIKeys {
		if k.Key == "" || k.PrincipalID == "" {
			return fmt.Errorf("security.api_keys[%d]: key and principal_id are required", i)
		}
		if k.Role != domain.RoleAdmin && k.Role != domain.RoleEditor {
			return fmt.Errorf("security.api_keys[%d]: unknown role %q", i, k.Role)
		}
		if seen[k.Key] {
			return fmt.Errorf("security.api_keys[%d]: duplicate key", i)
		}
		seen[k.Key] = true
	}
	return nil
}

func verifyResources(resources []domain.Resource) error {
	seen := make(map[int64]bool, len(resources))
	for i := range resources {
		if err := resources[i].Validate(); err != nil {
			return fmt.Errorf("resources[%d]: %w", i, err)
		}
		if seen[resources[i].ID] {
			return fmt.Errorf("resources[%d]: duplicate id %d", i, resources[i].ID)
		}
		seen[resources[i].ID] = true
	}
	return nil
}
