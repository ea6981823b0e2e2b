package venue

import (
	"context"
	"crypto/sha1"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/portfolio-engine/internal/metrics"
)

// Cache is the subset of the Redis client the cached getter uses.
// *redis.Client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedGetter wraps a Getter with a Redis read-through cache. Only
// successful bodies are cached; errors, including 404s, always go
// upstream again on the next call.
type CachedGetter struct {
	inner Getter
	rdb   Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachedGetter creates a cached wrapper around a getter.
func NewCachedGetter(inner Getter, rdb Cache, ttl time.Duration) *CachedGetter {
	return &CachedGetter{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   slog.Default().With("component", "venue_cache"),
	}
}

func (c *CachedGetter) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	key := cacheKey(path, params)

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		metrics.UpstreamCacheHits.WithLabelValues(path).Inc()
		return data, nil
	}
	if err != redis.Nil {
		// Cache trouble never fails the request.
		c.log.Warn("cache read failed", "path", path, "err", err)
	}

	body, err := c.inner.Get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, key, body, c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", "path", path, "err", err)
	}
	return body, nil
}

// cacheKey hashes the full request; url.Values.Encode sorts keys, so
// equal queries map to equal keys.
func cacheKey(path string, params url.Values) string {
	sum := sha1.Sum([]byte(path + "?" + params.Encode()))
	return fmt.Sprintf("venue:%x", sum)
}
