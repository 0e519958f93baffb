package cache

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wflowhq/engine/internal/config"
)

// redisConfigFor builds a RedisConfig pointed at a running miniredis instance.
func redisConfigFor(t *testing.T, s *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return config.RedisConfig{Host: host, Port: port}
}

// ==================== NewRedisCache Tests ====================

func TestNewRedisCache_Success(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache, err := NewRedisCache(redisConfigFor(t, s))
	require.NoError(t, err)
	assert.NotNil(t, cache)
	assert.NotNil(t, cache.Client())

	err = cache.Close()
	assert.NoError(t, err)
}

func TestNewRedisCache_WithPassword(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	s.RequireAuth("secret")

	cfg := redisConfigFor(t, s)
	cfg.Password = "secret"

	cache, err := NewRedisCache(cfg)
	require.NoError(t, err)
	assert.NotNil(t, cache)

	err = cache.Close()
	assert.NoError(t, err)
}

func TestNewRedisCache_WithDB(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cfg := redisConfigFor(t, s)
	cfg.DB = 1

	cache, err := NewRedisCache(cfg)
	require.NoError(t, err)
	assert.NotNil(t, cache)

	err = cache.Close()
	assert.NoError(t, err)
}

func TestNewRedisCache_ConnectionFailure(t *testing.T) {
	cfg := config.RedisConfig{Host: "localhost", Port: 1}

	cache, err := NewRedisCache(cfg)
	assert.Error(t, err)
	assert.Nil(t, cache)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

// ==================== Client Method Tests ====================

func TestRedisCache_Client(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	client := cache.Client()
	assert.NotNil(t, client)

	ctx := context.Background()
	err := client.Ping(ctx).Err()
	assert.NoError(t, err)
}

// ==================== Health Method Tests ====================

func TestRedisCache_Health_Success(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()
	err := cache.Health(ctx)
	assert.NoError(t, err)
}

func TestRedisCache_Health_AfterClose(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)

	err := cache.Close()
	require.NoError(t, err)

	ctx := context.Background()
	err = cache.Health(ctx)
	assert.Error(t, err)
}

// ==================== Set/Get Tests ====================

func TestRedisCache_Set_Get_Success(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	err := cache.Set(ctx, "test_key", "test_value", 0)
	require.NoError(t, err)

	value, err := cache.Get(ctx, "test_key")
	require.NoError(t, err)
	assert.Equal(t, "test_value", value)
}

func TestRedisCache_Set_WithTTL(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	err := cache.Set(ctx, "ttl_key", "ttl_value", 1*time.Second)
	require.NoError(t, err)

	value, err := cache.Get(ctx, "ttl_key")
	require.NoError(t, err)
	assert.Equal(t, "ttl_value", value)

	s.FastForward(2 * time.Second)

	_, err = cache.Get(ctx, "ttl_key")
	assert.Error(t, err)
}

func TestRedisCache_Get_NonExistentKey(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	_, err := cache.Get(ctx, "non_existent")
	assert.Error(t, err)
}

func TestRedisCache_Set_OverwriteValue(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	err := cache.Set(ctx, "key", "value1", 0)
	require.NoError(t, err)

	err = cache.Set(ctx, "key", "value2", 0)
	require.NoError(t, err)

	value, err := cache.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "value2", value)
}

// ==================== Delete Tests ====================

func TestRedisCache_Delete_Success(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	err := cache.Set(ctx, "delete_key", "value", 0)
	require.NoError(t, err)

	err = cache.Delete(ctx, "delete_key")
	require.NoError(t, err)

	_, err = cache.Get(ctx, "delete_key")
	assert.Error(t, err)
}

func TestRedisCache_Delete_NonExistentKey(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	err := cache.Delete(ctx, "non_existent")
	assert.NoError(t, err)
}

func TestRedisCache_Delete_MultipleKeys(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	err := cache.Set(ctx, "key1", "value1", 0)
	require.NoError(t, err)
	err = cache.Set(ctx, "key2", "value2", 0)
	require.NoError(t, err)
	err = cache.Set(ctx, "key3", "value3", 0)
	require.NoError(t, err)

	err = cache.Delete(ctx, "key1", "key2", "key3")
	require.NoError(t, err)

	_, err = cache.Get(ctx, "key1")
	assert.Error(t, err)
	_, err = cache.Get(ctx, "key2")
	assert.Error(t, err)
	_, err = cache.Get(ctx, "key3")
	assert.Error(t, err)
}

// ==================== Exists Tests ====================

func TestRedisCache_Exists_True(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	err := cache.Set(ctx, "exists_key", "value", 0)
	require.NoError(t, err)

	count, err := cache.Exists(ctx, "exists_key")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisCache_Exists_False(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	count, err := cache.Exists(ctx, "non_existent")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRedisCache_Exists_MultipleKeys(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	err := cache.Set(ctx, "key1", "value1", 0)
	require.NoError(t, err)
	err = cache.Set(ctx, "key2", "value2", 0)
	require.NoError(t, err)

	count, err := cache.Exists(ctx, "key1", "key2", "key3")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

// ==================== Expire Tests ====================

func TestRedisCache_Expire_Success(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	err := cache.Set(ctx, "expire_key", "value", 0)
	require.NoError(t, err)

	err = cache.Expire(ctx, "expire_key", 1*time.Second)
	require.NoError(t, err)

	value, err := cache.Get(ctx, "expire_key")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	s.FastForward(2 * time.Second)

	_, err = cache.Get(ctx, "expire_key")
	assert.Error(t, err)
}

func TestRedisCache_Expire_NonExistentKey(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	err := cache.Expire(ctx, "non_existent", 1*time.Second)
	assert.NoError(t, err)
}

// ==================== Increment/Decrement Tests ====================

func TestRedisCache_Increment_Success(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	value, err := cache.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), value)

	value, err = cache.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), value)

	value, err = cache.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(3), value)
}

func TestRedisCache_Decrement_Success(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	_, err := cache.Increment(ctx, "counter")
	require.NoError(t, err)
	_, err = cache.Increment(ctx, "counter")
	require.NoError(t, err)
	_, err = cache.Increment(ctx, "counter")
	require.NoError(t, err)

	value, err := cache.Decrement(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), value)

	value, err = cache.Decrement(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), value)
}

func TestRedisCache_Decrement_BelowZero(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	value, err := cache.Decrement(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), value)

	value, err = cache.Decrement(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(-2), value)
}

// ==================== Stats Tests ====================

func TestRedisCache_Stats_Success(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	stats := cache.Stats()
	assert.NotNil(t, stats)
	assert.IsType(t, &CacheStats{}, stats)
}

// ==================== Integration Tests ====================

func TestRedisCache_Integration_CompleteFlow(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	err := cache.Set(ctx, "user:1", "Alice", 0)
	require.NoError(t, err)
	err = cache.Set(ctx, "user:2", "Bob", 0)
	require.NoError(t, err)
	err = cache.Set(ctx, "user:3", "Charlie", 0)
	require.NoError(t, err)

	count, err := cache.Exists(ctx, "user:1", "user:2", "user:3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	value, err := cache.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", value)

	err = cache.Delete(ctx, "user:2")
	require.NoError(t, err)

	_, err = cache.Get(ctx, "user:2")
	assert.Error(t, err)

	counter, err := cache.Increment(ctx, "total_users")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counter)

	err = cache.Expire(ctx, "user:1", 1*time.Second)
	require.NoError(t, err)

	s.FastForward(2 * time.Second)

	_, err = cache.Get(ctx, "user:1")
	assert.Error(t, err)

	stats := cache.Stats()
	assert.NotNil(t, stats)
}

func TestRedisCache_Integration_ConcurrentAccess(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	cache := setupCache(t, s)
	defer cache.Close()

	ctx := context.Background()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := cache.Increment(ctx, "concurrent_counter")
			assert.NoError(t, err)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	value, err := cache.Get(ctx, "concurrent_counter")
	require.NoError(t, err)
	assert.Equal(t, "10", value)
}

// ==================== Helper Functions ====================

func setupCache(t *testing.T, s *miniredis.Miniredis) *RedisCache {
	t.Helper()
	cache, err := NewRedisCache(redisConfigFor(t, s))
	require.NoError(t, err)
	return cache
}
