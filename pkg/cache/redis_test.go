package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/postroc/pkg/cache"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	c := cache.NewRedisCacheFromClient(client)

	_, hit, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists(cache.DefaultRedisPrefix+"k"))

	data, hit, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("v"), data)

	require.NoError(t, c.Delete(ctx, "k"))
	_, hit, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	c := cache.NewRedisCacheFromClient(client, cache.WithPrefix("test:"))

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Second))
	require.NoError(t, c.Set(ctx, "forever", []byte("y"), 0))
	assert.True(t, mr.Exists("test:short"))

	mr.FastForward(2 * time.Second)

	_, hit, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, hit, "entry should have expired")

	_, hit, err = c.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestRedisCache_Clear(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	c := cache.NewRedisCacheFromClient(client, cache.WithPrefix("a:"))

	for i := 0; i < 150; i++ {
		require.NoError(t, c.Set(ctx, string(rune('A'+i%26))+string(rune('0'+i/26)), []byte("x"), 0))
	}
	require.NoError(t, mr.Set("other:key", "keep"))

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, []string{"other:key"}, mr.Keys())
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cache.NewRedisCache(ctx, addr, "", 0)
	assert.Error(t, err)
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCache(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	assert.True(t, mr.Exists(cache.DefaultRedisPrefix+"k"))
	assert.NoError(t, c.Close())
}
