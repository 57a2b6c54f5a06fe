// Package lru provides the in-process resolution cache: a bounded LRU map
// from token hash to resource ID with per-entry TTL.
package lru

import (
	"context"
	"sync"
	"time"

	golru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultCapacity bounds the number of cached resolutions.
	DefaultCapacity = 100_000

	// DefaultTombstoneTTL is how long an invalidation blocks writes.
	DefaultTombstoneTTL = 5 * time.Second
)

// Cache is an LRU cache with TTL for token resolutions.
// Invalidations leave tombstones that make a racing Set a no-op.
type Cache struct {
	mu       sync.Mutex
	entries  *golru.Cache[string, entry]
	capacity int

	// byResource is kept in step with entries by the eviction callback.
	byResource map[int64]map[string]struct{}

	tombHashes    map[string]time.Time
	tombResources map[int64]time.Time
	tombTTL       time.Duration

	now func() time.Time
}

type entry struct {
	resourceID int64
	expiresAt  time.Time
}

// Option configures the Cache.
type Option func(*Cache)

// WithCapacity sets the maximum number of entries.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithTombstoneTTL sets how long invalidations block writes.
func WithTombstoneTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.tombTTL = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		capacity:      DefaultCapacity,
		byResource:    make(map[int64]map[string]struct{}),
		tombHashes:    make(map[string]time.Time),
		tombResources: make(map[int64]time.Time),
		tombTTL:       DefaultTombstoneTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	// Only fails for a non-positive size, which WithCapacity rules out.
	c.entries, _ = golru.NewWithEvict[string, entry](c.capacity, c.onEvict)
	return c
}

// onEvict runs synchronously inside entries' mutating calls, which are
// only made with c.mu held.
func (c *Cache) onEvict(hash string, e entry) {
	if set, ok := c.byResource[e.resourceID]; ok {
		delete(set, hash)
		if len(set) == 0 {
			delete(c.byResource, e.resourceID)
		}
	}
}

// Get returns the cached resource ID for hash and marks it recently used.
func (c *Cache) Get(_ context.Context, hash string) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(hash)
	if !ok {
		return 0, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.entries.Remove(hash)
		return 0, false, nil
	}
	return e.resourceID, true, nil
}

// Set caches hash -> resourceID for ttl. A non-positive ttl or an active
// tombstone on the hash or its resource makes Set a no-op.
func (c *Cache) Set(_ context.Context, hash string, resourceID int64, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepTombstonesLocked(now)
	if until, ok := c.tombHashes[hash]; ok && now.Before(until) {
		return nil
	}
	if until, ok := c.tombResources[resourceID]; ok && now.Before(until) {
		return nil
	}

	// Drop a previous entry first so its resource index is cleaned up.
	c.entries.Remove(hash)
	c.entries.Add(hash, entry{resourceID: resourceID, expiresAt: now.Add(ttl)})

	set, ok := c.byResource[resourceID]
	if !ok {
		set = make(map[string]struct{})
		c.byResource[resourceID] = set
	}
	set[hash] = struct{}{}
	return nil
}

// Invalidate drops hash and blocks re-caching it for the tombstone TTL.
func (c *Cache) Invalidate(_ context.Context, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Remove(hash)
	c.tombHashes[hash] = c.now().Add(c.tombTTL)
	return nil
}

// InvalidateResource drops every entry of a resource and blocks re-caching
// them for the tombstone TTL.
func (c *Cache) InvalidateResource(_ context.Context, resourceID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hashes := make([]string, 0, len(c.byResource[resourceID]))
	for hash := range c.byResource[resourceID] {
		hashes = append(hashes, hash)
	}
	for _, hash := range hashes {
		c.entries.Remove(hash)
	}
	delete(c.byResource, resourceID)
	c.tombResources[resourceID] = c.now().Add(c.tombTTL)
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Clear removes all entries and tombstones.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
	c.byResource = make(map[int64]map[string]struct{})
	c.tombHashes = make(map[string]time.Time)
	c.tombResources = make(map[int64]time.Time)
}

// sweepTombstonesLocked drops expired tombstones once they outnumber the
// capacity, keeping the maps bounded under invalidation storms.
func (c *Cache) sweepTombstonesLocked(now time.Time) {
	if len(c.tombHashes)+len(c.tombResources) <= c.capacity {
		return
	}
	for h, until := range c.tombHashes {
		if !now.Before(until) {
			delete(c.tombHashes, h)
		}
	}
	for id, until := range c.tombResources {
		if !now.Before(until) {
			delete(c.tombResources, id)
		}
	}
}
