package config

import (
	"net/url"
	"strings"
)

// Sanitize returns a copy of the config with sensitive fields masked.
//
// This is used for logging configuration without exposing secrets.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Security.TokenSecret != "" {
		sanitized.Security.TokenSecret = maskSecret(sanitized.Security.TokenSecret)
	}
	if len(cfg.Security.APIKeys) > 0 {
		sanitized.Security.APIKeys = make([]APIKey, len(cfg.Security.APIKeys))
		for i, k := range cfg.Security.APIKeys {
			k.Key = maskSecret(k.Key)
			sanitized.Security.APIKeys[i] = k
		}
	}
	if sanitized.Cache.Redis.Password != "" {
		sanitized.Cache.Redis.Password = maskSecret(sanitized.Cache.Redis.Password)
	}
	sanitized.Storage.Postgres.DSN = maskDSN(sanitized.Storage.Postgres.DSN)
	sanitized.Events.NATS.URL = maskDSN(sanitized.Events.NATS.URL)

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// maskDSN hides the password of a URL-style connection string. Keyword
// style DSNs ("host=... password=...") are masked entirely.
func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "****"
	}
	return u.Redacted()
}
