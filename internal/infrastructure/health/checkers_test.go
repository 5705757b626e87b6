package health_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/avatarctic/funwheel-offline/internal/infrastructure/badger"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/health"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/memory"
)

func TestRedisHealthChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hc := health.NewRedisHealthChecker(client)
	require.Equal(t, "redis", hc.Name())
	require.NoError(t, hc.Check(context.Background()))

	mr.Close()
	require.Error(t, hc.Check(context.Background()))
}

func TestBadgerHealthChecker(t *testing.T) {
	storage, err := badger.Open("")
	require.NoError(t, err)
	defer storage.Close()

	hc := health.NewBadgerHealthChecker(storage)
	require.Equal(t, "badger", hc.Name())
	require.NoError(t, hc.Check(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, hc.Check(ctx))
}

func TestCacheStorageHealthChecker(t *testing.T) {
	hc := health.NewCacheStorageHealthChecker(memory.NewCacheStorage())
	require.Equal(t, "cache_storage", hc.Name())
	require.NoError(t, hc.Check(context.Background()))
}
