package health

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/funwheel-offline/internal/core/ports"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/badger"
	infraDB "github.com/avatarctic/funwheel-offline/internal/infrastructure/db"
)

// dbHealthChecker wraps the database for health checks.
type dbHealthChecker struct{ db *infraDB.Database }

func (d *dbHealthChecker) Name() string                    { return "database" }
func (d *dbHealthChecker) Check(ctx context.Context) error { return d.db.Ping(ctx) }

// redisHealthChecker wraps the redis client for health checks.
type redisHealthChecker struct{ client redis.Cmdable }

func (r *redisHealthChecker) Name() string                    { return "redis" }
func (r *redisHealthChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }

type badgerHealthChecker struct{ storage *badger.CacheStorage }

func (b *badgerHealthChecker) Name() string                    { return "badger" }
func (b *badgerHealthChecker) Check(ctx context.Context) error { return b.storage.Healthcheck(ctx) }

// cacheStorageHealthChecker verifies generations can be enumerated.
type cacheStorageHealthChecker struct{ storage ports.CacheStorage }

func (c *cacheStorageHealthChecker) Name() string { return "cache_storage" }
func (c *cacheStorageHealthChecker) Check(ctx context.Context) error {
	_, err := c.storage.Keys(ctx)
	return err
}

// NewDBHealthChecker creates a health checker for the database.
func NewDBHealthChecker(db *infraDB.Database) ports.HealthChecker { return &dbHealthChecker{db: db} }

// NewRedisHealthChecker creates a health checker for Redis.
func NewRedisHealthChecker(client redis.Cmdable) ports.HealthChecker {
	return &redisHealthChecker{client: client}
}

// NewBadgerHealthChecker creates a health checker for the embedded BadgerDB.
func NewBadgerHealthChecker(storage *badger.CacheStorage) ports.HealthChecker {
	return &badgerHealthChecker{storage: storage}
}

// NewCacheStorageHealthChecker creates a backend-agnostic storage health checker.
func NewCacheStorageHealthChecker(storage ports.CacheStorage) ports.HealthChecker {
	return &cacheStorageHealthChecker{storage: storage}
}
