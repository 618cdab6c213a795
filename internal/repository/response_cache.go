package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/metrics"
)

const keyPrefix = "masjid:"

// RedisClient is the subset of the go-redis client the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redisv9.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redisv9.StatusCmd
	Del(ctx context.Context, keys ...string) *redisv9.IntCmd
}

// ResponseCache is a cache-aside store for upstream payloads. A nil
// ResponseCache, or one without a client, always calls through to the loader.
type ResponseCache struct {
	client RedisClient
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// NewResponseCache creates a cache whose entries live for ttl unless Fetch overrides it.
func NewResponseCache(client RedisClient, ttl time.Duration, logger *zap.SugaredLogger) *ResponseCache {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ResponseCache{client: client, ttl: ttl, logger: logger}
}

func (c *ResponseCache) enabled() bool {
	return c != nil && c.client != nil
}

// Fetch returns the cached value for key, or calls load and stores its result.
// cached reports whether the value came from Redis. Cache failures are logged
// and never surface to the caller; loader errors are returned unchanged and not cached.
func Fetch[T any](ctx context.Context, c *ResponseCache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (value T, cached bool, err error) {
	if !c.enabled() {
		value, err = load(ctx)
		return value, false, err
	}

	if hit, ok := getFromCache[T](ctx, c, key); ok {
		metrics.RecordCacheLookup(true)
		return hit, true, nil
	}
	metrics.RecordCacheLookup(false)

	value, err = load(ctx)
	if err != nil {
		return value, false, err
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.store(ctx, key, value, ttl)
	return value, false, nil
}

// getFromCache retrieves and decodes an entry. Misses and corrupt entries both report false.
func getFromCache[T any](ctx context.Context, c *ResponseCache, key string) (T, bool) {
	var out T
	val, err := c.client.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redisv9.Nil) {
			c.logger.Warnw("cache read failed", "key", key, "error", err)
		}
		return out, false
	}
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		c.logger.Warnw("cache entry undecodable", "key", key, "error", err)
		return out, false
	}
	return out, true
}

func (c *ResponseCache) store(ctx context.Context, key string, value any, ttl time.Duration) {
	b, err := json.Marshal(value)
	if err != nil {
		c.logger.Warnw("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, b, ttl).Err(); err != nil {
		c.logger.Warnw("cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops the given keys.
func (c *ResponseCache) Invalidate(ctx context.Context, keys ...string) error {
	if !c.enabled() || len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = keyPrefix + k
	}
	return c.client.Del(ctx, prefixed...).Err()
}
