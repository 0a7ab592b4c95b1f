package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RobotsCacheImpl, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRobotsCache(client), mr
}

func TestRobotsCacheSetGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	body := []byte("User-agent: *\nDisallow: /private/")
	require.NoError(t, cache.Set(ctx, "example.com", body, time.Hour))

	got, ok, err := cache.Get(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, body, got)
}

func TestRobotsCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	_, ok, err := cache.Get(context.Background(), "unknown.example")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRobotsCacheTTLExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "example.com", []byte("User-agent: *"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRobotsCacheKeysAreNamespaced(t *testing.T) {
	cache, mr := newTestCache(t)

	require.NoError(t, cache.Set(context.Background(), "example.com", []byte("x"), time.Hour))
	assert.True(t, mr.Exists("discovery:robots:example.com"))
}

func TestRobotsCacheHostsAreIndependent(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a.example", []byte("a"), time.Hour))
	require.NoError(t, cache.Set(ctx, "b.example", []byte("b"), time.Hour))

	got, ok, err := cache.Get(ctx, "a.example")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", string(got))
}
