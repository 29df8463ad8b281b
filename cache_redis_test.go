package llmrt

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := NewRedisCache(mr.Addr(), "", 0, 5*time.Minute)
	require.NoError(t, err)
	return mr, cache
}

func TestNewRedisCache_ConnectionFailure(t *testing.T) {
	_, err := NewRedisCache("localhost:1", "", 0, time.Minute)
	assert.Error(t, err)
}

func TestNewRedisCacheWithOptions_NilRejected(t *testing.T) {
	_, err := NewRedisCacheWithOptions(nil)
	assert.Error(t, err)
}

func TestRedisCache_SetGetRoundTrip(t *testing.T) {
	_, cache := setupMiniRedis(t)
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key1", "value1", 5*time.Minute))

	val, found, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value1", val)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.TotalWrites)
}

func TestRedisCache_GetMiss(t *testing.T) {
	_, cache := setupMiniRedis(t)
	defer cache.Close()

	_, found, err := cache.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCache_KeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()

	cache, err := NewRedisCacheWithOptions(&RedisCacheOptions{
		Addrs:      []string{mr.Addr()},
		KeyPrefix:  "myapp",
		DefaultTTL: time.Minute,
	})
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Set(context.Background(), "key1", "value1", time.Minute))
	assert.True(t, mr.Exists("myapp:cache:key1"))
}

func TestRedisCache_DefaultPrefix(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	defer cache.Close()

	require.NoError(t, cache.Set(context.Background(), "key1", "value1", time.Minute))
	assert.True(t, mr.Exists("llmrt:cache:key1"))
}

func TestRedisCache_Delete(t *testing.T) {
	_, cache := setupMiniRedis(t)
	defer cache.Close()
	ctx := context.Background()

	cache.Set(ctx, "key1", "value1", time.Minute)
	require.NoError(t, cache.Delete(ctx, "key1"))

	_, found, _ := cache.Get(ctx, "key1")
	assert.False(t, found)
}

func TestRedisCache_Clear(t *testing.T) {
	_, cache := setupMiniRedis(t)
	defer cache.Close()
	ctx := context.Background()

	cache.Set(ctx, "key1", "value1", time.Minute)
	cache.Set(ctx, "key2", "value2", time.Minute)
	require.NoError(t, cache.Clear(ctx))

	_, found1, _ := cache.Get(ctx, "key1")
	_, found2, _ := cache.Get(ctx, "key2")
	assert.False(t, found1)
	assert.False(t, found2)
}

func TestRedisCache_SetNX(t *testing.T) {
	_, cache := setupMiniRedis(t)
	defer cache.Close()
	ctx := context.Background()

	ok, err := cache.SetNX(ctx, "lock", "holder-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.SetNX(ctx, "lock", "holder-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	val, _, _ := cache.Get(ctx, "lock")
	assert.Equal(t, "holder-1", val)
}

func TestRedisCache_MGetMSet(t *testing.T) {
	_, cache := setupMiniRedis(t)
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.MSet(ctx, map[string]string{"a": "1", "b": "2"}, time.Minute))

	vals, err := cache.MGet(ctx, "a", "b", "missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", ""}, vals)
}

func TestRedisCache_DeletePattern(t *testing.T) {
	_, cache := setupMiniRedis(t)
	defer cache.Close()
	ctx := context.Background()

	cache.Set(ctx, "user:1:name", "Alice", time.Minute)
	cache.Set(ctx, "user:2:name", "Bob", time.Minute)

	require.NoError(t, cache.DeletePattern(ctx, "user:1:*"))

	_, found1, _ := cache.Get(ctx, "user:1:name")
	_, found2, _ := cache.Get(ctx, "user:2:name")
	assert.False(t, found1)
	assert.True(t, found2)
}

func TestRedisCache_Ping(t *testing.T) {
	_, cache := setupMiniRedis(t)
	defer cache.Close()
	assert.NoError(t, cache.Ping(context.Background()))
}
