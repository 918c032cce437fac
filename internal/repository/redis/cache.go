package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"quest-insights/internal/domain"
)

const (
	// metadataKeyPrefix namespaces cached metadata: metadata:<url>
	metadataKeyPrefix = "metadata:"

	// opTimeout bounds each cache round trip
	opTimeout = 500 * time.Millisecond
)

// MetadataCache is a shared metadata cache tier backed by Redis.
// Entries expire with the Redis key TTL. Any Redis error is treated as a miss.
type MetadataCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewMetadataCache creates a Redis metadata cache whose entries live for ttl
func NewMetadataCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *MetadataCache {
	return &MetadataCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// PingContext reports whether Redis is reachable
func (c *MetadataCache) PingContext(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns cached metadata for url
func (c *MetadataCache) Get(url string) (domain.Metadata, bool) {
	meta, _, ok := c.GetWithTTL(url)
	return meta, ok
}

// GetWithTTL returns cached metadata for url and how long the entry has left.
// The remaining lifetime is 0 when Redis did not report one.
func (c *MetadataCache) GetWithTTL(url string) (domain.Metadata, time.Duration, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	key := metadataKeyPrefix + url

	pipe := c.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	// Per-command errors are read below
	_, _ = pipe.Exec(ctx)

	data, err := getCmd.Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read metadata cache", "url", url, "error", err)
		}
		return domain.Metadata{}, 0, false
	}

	var meta domain.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		c.logger.Warn("Discarding malformed cache entry", "url", url, "error", err)
		return domain.Metadata{}, 0, false
	}

	remaining, err := ttlCmd.Result()
	if err != nil || remaining < 0 {
		remaining = 0
	}

	return meta, remaining, true
}

// Set stores metadata for url with the cache TTL
func (c *MetadataCache) Set(url string, meta domain.Metadata) {
	data, err := json.Marshal(meta)
	if err != nil {
		c.logger.Warn("Failed to encode cache entry", "url", url, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, metadataKeyPrefix+url, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to write metadata cache", "url", url, "error", err)
	}
}
