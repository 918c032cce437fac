package extractor

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"quest-insights/internal/domain"
)

const (
	// DefaultCacheTTL is how long extracted metadata stays fresh
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheSize bounds the number of in-memory entries
	DefaultCacheSize = 1024
)

type cacheEntry struct {
	value     domain.Metadata
	expiresAt time.Time
}

// MemoryCache is a bounded in-process metadata cache keyed by exact URL.
// An entry is served only while now is before its expiry.
type MemoryCache struct {
	mu    sync.Mutex
	items *lru.Cache[string, cacheEntry]
	ttl   time.Duration
	now   func() time.Time
}

// CacheOption configures a MemoryCache
type CacheOption func(*MemoryCache)

// WithClock replaces the time source
func WithClock(now func() time.Time) CacheOption {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMemoryCache creates a cache holding up to size entries for ttl each
func NewMemoryCache(size int, ttl time.Duration, opts ...CacheOption) (*MemoryCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	items, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}

	c := &MemoryCache{
		items: items,
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Get returns the cached metadata for key if it has not expired
func (c *MemoryCache) Get(key string) (domain.Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items.Get(key)
	if !ok {
		return domain.Metadata{}, false
	}

	if !c.now().Before(entry.expiresAt) {
		c.items.Remove(key)
		return domain.Metadata{}, false
	}

	return entry.value, true
}

// Set stores meta under key, replacing any previous entry and its expiry
func (c *MemoryCache) Set(key string, meta domain.Metadata) {
	c.SetWithTTL(key, meta, c.ttl)
}

// SetWithTTL stores meta under key for ttl, capped at the cache TTL.
// A non-positive ttl means the cache TTL.
func (c *MemoryCache) SetWithTTL(key string, meta domain.Metadata, ttl time.Duration) {
	if ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Add(key, cacheEntry{
		value:     meta,
		expiresAt: c.now().Add(ttl),
	})
}

// Len reports the number of stored entries, including expired ones not yet swept
func (c *MemoryCache) Len() int {
	return c.items.Len()
}

// Sweep removes expired entries and returns how many were dropped
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.items.Keys() {
		entry, ok := c.items.Peek(key)
		if ok && !now.Before(entry.expiresAt) {
			c.items.Remove(key)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps expired entries every interval until ctx is done
func (c *MemoryCache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// expiringReader is a cache that reports how long an entry has left
type expiringReader interface {
	GetWithTTL(key string) (domain.Metadata, time.Duration, bool)
}

// expiringWriter is a cache that accepts a per-entry lifetime
type expiringWriter interface {
	SetWithTTL(key string, meta domain.Metadata, ttl time.Duration)
}

// TieredCache reads the local cache first and falls back to a shared remote one.
// Writes go to both. A remote hit is promoted with the remote entry's
// remaining lifetime, so it never outlives the original extraction's TTL.
type TieredCache struct {
	local  domain.MetadataCache
	remote domain.MetadataCache
}

// NewTieredCache combines a local and a remote cache
func NewTieredCache(local, remote domain.MetadataCache) *TieredCache {
	return &TieredCache{local: local, remote: remote}
}

// Get checks local then remote, promoting remote hits into local
func (c *TieredCache) Get(key string) (domain.Metadata, bool) {
	if meta, ok := c.local.Get(key); ok {
		return meta, true
	}

	reader, readsTTL := c.remote.(expiringReader)
	writer, writesTTL := c.local.(expiringWriter)
	if !readsTTL || !writesTTL {
		meta, ok := c.remote.Get(key)
		if ok {
			c.local.Set(key, meta)
		}
		return meta, ok
	}

	meta, remaining, ok := reader.GetWithTTL(key)
	if !ok {
		return domain.Metadata{}, false
	}

	writer.SetWithTTL(key, meta, remaining)
	return meta, true
}

// Set writes through to both tiers
func (c *TieredCache) Set(key string, meta domain.Metadata) {
	c.local.Set(key, meta)
	c.remote.Set(key, meta)
}
