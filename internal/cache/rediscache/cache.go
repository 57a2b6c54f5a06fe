// Package rediscache provides a resolution cache shared between server
// instances, backed by Redis.
//
// Key layout (prefix defaults to "ps:"):
//
//	<prefix>h:<hash>     resource ID, expires with the entry TTL
//	<prefix>r:<id>       set of cached hashes of a resource
//	<prefix>t:h:<hash>   hash tombstone
//	<prefix>t:r:<id>     resource tombstone
//
// Writes and resource invalidation run as Lua scripts touching keys that
// are not all declared, so the cache requires a single-node or sentinel
// deployment rather than Redis Cluster.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yndnr/previewshare-go/internal/infra/tlscert"
)

const (
	// DefaultPrefix namespaces every key.
	DefaultPrefix = "ps:"

	// DefaultTombstoneTTL is how long an invalidation blocks writes.
	DefaultTombstoneTTL = 5 * time.Second
)

// Config configures the Redis connection.
type Config struct {
	Addr         string        `koanf:"addr" json:"addr" yaml:"addr"`
	Password     string        `koanf:"password" json:"-" yaml:"-"`
	DB           int           `koanf:"db" json:"db" yaml:"db"`
	Prefix       string        `koanf:"prefix" json:"prefix" yaml:"prefix"`
	TombstoneTTL time.Duration `koanf:"tombstone_ttl" json:"tombstone_ttl" yaml:"tombstone_ttl"`
	DialTimeout  time.Duration `koanf:"dial_timeout" json:"dial_timeout" yaml:"dial_timeout"`

	// TLS dials with TLS; CAFile adds a private CA to the system roots.
	TLS    bool   `koanf:"tls" json:"tls" yaml:"tls"`
	CAFile string `koanf:"ca_file" json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
}

// DefaultConfig returns the default connection settings.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:6379",
		Prefix:       DefaultPrefix,
		TombstoneTTL: DefaultTombstoneTTL,
		DialTimeout:  2 * time.Second,
	}
}

var setScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[3]) == 1 or redis.call('EXISTS', KEYS[4]) == 1 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
redis.call('SADD', KEYS[2], ARGV[3])
if redis.call('PTTL', KEYS[2]) < tonumber(ARGV[2]) then
	redis.call('PEXPIRE', KEYS[2], ARGV[2])
end
return 1
`)

var invalidateResourceScript = redis.NewScript(`
redis.call('SET', KEYS[2], '1', 'PX', ARGV[1])
local hashes = redis.call('SMEMBERS', KEYS[1])
for _, h in ipairs(hashes) do
	redis.call('DEL', ARGV[2] .. h)
end
redis.call('DEL', KEYS[1])
return #hashes
`)

// Cache is a Redis-backed resolution cache.
type Cache struct {
	client  redis.UniversalClient
	prefix  string
	tombTTL time.Duration
	owned   bool
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client redis.UniversalClient, prefix string, tombstoneTTL time.Duration) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if tombstoneTTL <= 0 {
		tombstoneTTL = DefaultTombstoneTTL
	}
	return &Cache{client: client, prefix: prefix, tombTTL: tombstoneTTL}
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Cache, error) {
	opts := &redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	}
	if cfg.TLS {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host = cfg.Addr
		}
		tc, err := tlscert.ClientConfig(cfg.CAFile, host)
		if err != nil {
			return nil, fmt.Errorf("rediscache: %w", err)
		}
		opts.TLSConfig = tc
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("rediscache: ping %s: %w", cfg.Addr, err)
	}
	c := New(client, cfg.Prefix, cfg.TombstoneTTL)
	c.owned = true
	return c, nil
}

func (c *Cache) hashKey(hash string) string { return c.prefix + "h:" + hash }
func (c *Cache) resourceKey(id int64) string { return c.prefix + "r:" + strconv.FormatInt(id, 10) }
func (c *Cache) hashTombKey(hash string) string { return c.prefix + "t:h:" + hash }
func (c *Cache) resourceTombKey(id int64) string { return c.prefix + "t:r:" + strconv.FormatInt(id, 10) }

// Get returns the cached resource ID for hash.
func (c *Cache) Get(ctx context.Context, hash string) (int64, bool, error) {
	val, err := c.client.Get(ctx, c.hashKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("rediscache: get: %w", err)
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("rediscache: corrupt entry for %s: %w", hash, err)
	}
	return id, true, nil
}

// Set caches hash -> resourceID for ttl unless a tombstone blocks it.
func (c *Cache) Set(ctx context.Context, hash string, resourceID int64, ttl time.Duration) error {
	ms := ttl.Milliseconds()
	if ms <= 0 {
		return nil
	}
	keys := []string{
		c.hashKey(hash),
		c.resourceKey(resourceID),
		c.hashTombKey(hash),
		c.resourceTombKey(resourceID),
	}
	if err := setScript.Run(ctx, c.client, keys, resourceID, ms, hash).Err(); err != nil {
		return fmt.Errorf("rediscache: set: %w", err)
	}
	return nil
}

// Invalidate drops hash and blocks re-caching it for the tombstone TTL.
func (c *Cache) Invalidate(ctx context.Context, hash string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.hashTombKey(hash), "1", c.tombTTL)
		pipe.Del(ctx, c.hashKey(hash))
		return nil
	})
	if err != nil {
		return fmt.Errorf("rediscache: invalidate: %w", err)
	}
	return nil
}

// InvalidateResource drops every entry of a resource and blocks re-caching
// them for the tombstone TTL.
func (c *Cache) InvalidateResource(ctx context.Context, resourceID int64) error {
	keys := []string{c.resourceKey(resourceID), c.resourceTombKey(resourceID)}
	err := invalidateResourceScript.Run(ctx, c.client, keys, c.tombTTL.Milliseconds(), c.prefix+"h:").Err()
	if err != nil {
		return fmt.Errorf("rediscache: invalidate resource: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client if the cache opened it.
func (c *Cache) Close() error {
	if !c.owned {
		return nil
	}
	return c.client.Close()
}
