package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type socialLink struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

type mockRedisClient struct {
	getFunc func(ctx context.Context, key string) *redisv9.StringCmd
	setFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) *redisv9.StatusCmd
}

func (m *mockRedisClient) Get(ctx context.Context, key string) *redisv9.StringCmd {
	return m.getFunc(ctx, key)
}

func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redisv9.StatusCmd {
	return m.setFunc(ctx, key, value, expiration)
}

func (m *mockRedisClient) Del(ctx context.Context, keys ...string) *redisv9.IntCmd {
	return redisv9.NewIntResult(int64(len(keys)), nil)
}

func newMiniredisCache(t *testing.T) (*ResponseCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewResponseCache(client, time.Minute, nil), mr
}

func TestFetch_MissThenHit(t *testing.T) {
	cache, mr := newMiniredisCache(t)
	ctx := context.Background()
	loads := 0
	load := func(ctx context.Context) ([]socialLink, error) {
		loads++
		return []socialLink{{Title: "Instagram", Link: "https://instagram.com/masjid"}}, nil
	}

	first, cached, err := Fetch(ctx, cache, "content:social-links", 0, load)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "Instagram", first[0].Title)

	second, cached, err := Fetch(ctx, cache, "content:social-links", 0, load)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, loads)

	assert.True(t, mr.Exists("masjid:content:social-links"))
	assert.Equal(t, time.Minute, mr.TTL("masjid:content:social-links"))
}

func TestFetch_CustomTTLAndExpiry(t *testing.T) {
	cache, mr := newMiniredisCache(t)
	ctx := context.Background()
	load := func(ctx context.Context) (string, error) { return "v", nil }

	_, _, err := Fetch(ctx, cache, "prayer:2024-03", 6*time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, mr.TTL("masjid:prayer:2024-03"))

	mr.FastForward(7 * time.Hour)
	_, cached, err := Fetch(ctx, cache, "prayer:2024-03", 6*time.Hour, load)
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestFetch_LoaderErrorNotCached(t *testing.T) {
	cache, mr := newMiniredisCache(t)
	boom := errors.New("upstream down")

	_, cached, err := Fetch(context.Background(), cache, "content:events", 0, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, cached)
	assert.False(t, mr.Exists("masjid:content:events"))
}

func TestFetch_CorruptEntryReloads(t *testing.T) {
	cache, mr := newMiniredisCache(t)
	require.NoError(t, mr.Set("masjid:content:events", "{not json"))

	v, cached, err := Fetch(context.Background(), cache, "content:events", 0, func(ctx context.Context) ([]int, error) {
		return []int{1}, nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []int{1}, v)
}

func TestFetch_RedisUnavailableFallsThrough(t *testing.T) {
	mock := &mockRedisClient{
		getFunc: func(ctx context.Context, key string) *redisv9.StringCmd {
			return redisv9.NewStringResult("", errors.New("connection refused"))
		},
		setFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) *redisv9.StatusCmd {
			return redisv9.NewStatusResult("", errors.New("connection refused"))
		},
	}
	cache := NewResponseCache(mock, time.Minute, nil)

	v, cached, err := Fetch(context.Background(), cache, "k", 0, func(ctx context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "fresh", v)
}

func TestFetch_NilCache(t *testing.T) {
	var cache *ResponseCache
	v, cached, err := Fetch(context.Background(), cache, "k", 0, func(ctx context.Context) (string, error) {
		return "direct", nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "direct", v)
	assert.NoError(t, cache.Invalidate(context.Background(), "k"))
}

func TestInvalidate(t *testing.T) {
	cache, mr := newMiniredisCache(t)
	ctx := context.Background()
	_, _, err := Fetch(ctx, cache, "content:events", 0, func(ctx context.Context) (string, error) { return "x", nil })
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx, "content:events"))
	assert.False(t, mr.Exists("masjid:content:events"))
}
