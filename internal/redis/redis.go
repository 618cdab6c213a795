package redis

import (
	"context"
	"sync"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/config"
)

var (
	client *redisv9.Client
	once   sync.Once
)

// NewClient creates a client for the given address.
func NewClient(addr string) *redisv9.Client {
	return redisv9.NewClient(&redisv9.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// GetClient returns the process-wide client configured from redis.addr.
func GetClient() *redisv9.Client {
	once.Do(func() {
		client = NewClient(config.GetRedisAddr())
	})
	return client
}

// Ping reports whether the server answers within the context deadline.
func Ping(ctx context.Context, c *redisv9.Client) error {
	return c.Ping(ctx).Err()
}

// ResetClientForTest resets the Redis client singleton. Use only in tests.
func ResetClientForTest() {
	once = sync.Once{}
	client = nil
}
