package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisIdempotencyStoreWithClient(client, "")
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisIdempotencyStore_Claim(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()
	key := shared.DeliveryKey{Handler: "payroll", TenantID: uuid.New(), EventID: uuid.New()}
	redisKey := "ledger:claims:" + key.TenantID.String() + ":payroll:" + key.EventID.String()

	state, err := store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared.ClaimAcquired, state)
	assert.True(t, mr.Exists(redisKey))
	assert.Equal(t, time.Minute, mr.TTL(redisKey))

	state, err = store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared.ClaimInFlight, state)

	mr.FastForward(2 * time.Minute)
	state, err = store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared.ClaimAcquired, state, "abandoned lease expired")

	require.NoError(t, store.Release(ctx, key))
	assert.False(t, mr.Exists(redisKey))
}

func TestRedisIdempotencyStore_Complete(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()
	key := shared.DeliveryKey{Handler: "stock", TenantID: uuid.New(), EventID: uuid.New()}
	redisKey := "ledger:claims:" + key.TenantID.String() + ":stock:" + key.EventID.String()

	_, err := store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, key, 24*time.Hour))
	assert.Equal(t, 24*time.Hour, mr.TTL(redisKey))

	state, err := store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, shared.ClaimCompleted, state)

	require.NoError(t, store.Release(ctx, key))
	assert.True(t, mr.Exists(redisKey), "release keeps completed deliveries")
}

func TestRedisIdempotencyStore_ServerDown(t *testing.T) {
	store, mr := newMiniredisStore(t)
	mr.Close()

	_, err := store.Claim(context.Background(), shared.DeliveryKey{Handler: "payroll"}, time.Hour)
	assert.ErrorContains(t, err, "failed to claim delivery")
}

func redisConfigFor(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return config.RedisConfig{Host: mr.Host(), Port: port}
}

func TestIdempotencyStoreFactory_CreateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory backend", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(config.RedisConfig{}, config.IdempotencyConfig{Backend: "memory"}).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("redis backend", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, err := NewIdempotencyStoreFactory(redisConfigFor(t, mr), config.IdempotencyConfig{Backend: "redis"}).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &RedisIdempotencyStore{}, store)
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := redisConfigFor(t, mr)
		mr.Close()

		store, err := NewIdempotencyStoreFactory(cfg, config.IdempotencyConfig{Backend: "redis"}).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unreachable redis without fallback", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := redisConfigFor(t, mr)
		mr.Close()

		_, err := NewIdempotencyStoreFactory(cfg, config.IdempotencyConfig{Backend: "redis"},
			WithInMemoryFallback(false)).CreateStore(ctx)
		assert.ErrorContains(t, err, "redis required for delivery claims")
	})
}
