package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/funwheel-offline/configs"
	"github.com/avatarctic/funwheel-offline/internal/application/services"
	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/core/ports"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/badger"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/db"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/health"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/httpserver"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/memory"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/network"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/redis"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/repositories"
)

// runtime holds everything built from the configuration.
type runtime struct {
	cfg            *config.Config
	logger         *logrus.Logger
	storage        ports.CacheStorage
	fetcher        *network.HTTPFetcher
	manager        *services.CacheManagerService
	healthCheckers []ports.HealthChecker
	registration   ports.RegistrationRequest
	closers        []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.WithError(err).Warn("failed to close resource")
		}
	}
}

func newLogger(cfg *config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}
	return logger
}

func bootstrap() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	rt := &runtime{cfg: cfg, logger: newLogger(&cfg.Log)}

	if err := rt.openStorage(); err != nil {
		rt.Close()
		return nil, err
	}
	rt.healthCheckers = append(rt.healthCheckers, health.NewCacheStorageHealthChecker(rt.storage))

	rt.fetcher, err = network.NewHTTPFetcher(&network.HTTPFetcherConfig{
		OriginURL: cfg.Origin.URL,
		Timeout:   cfg.Origin.Timeout,
	}, &http.Client{Timeout: cfg.Origin.Timeout}, rt.logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	manifest := asset.Manifest(cfg.Cache.Manifest)
	rt.registration = ports.RegistrationRequest{
		Generation: asset.Generation(cfg.Cache.Generation),
		Manifest:   manifest,
	}
	rt.manager = services.NewCacheManagerService(rt.storage, rt.fetcher, httpserver.NewCacheObserver(), &services.CacheManagerConfig{
		Scope:                  cfg.Cache.Scope,
		FallbackPath:           cfg.Cache.FallbackPath,
		Manifest:               manifest,
		FallbackNavigationOnly: cfg.Cache.FallbackNavigationOnly,
	}, rt.logger)
	return rt, nil
}

func (r *runtime) openStorage() error {
	cfg := r.cfg
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		client, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, client.Close)
		r.storage = redis.NewCacheStorage(client, cfg.Redis.KeyPrefix)
		r.healthCheckers = append(r.healthCheckers, health.NewRedisHealthChecker(client))
		r.logger.Info("Connected to Redis successfully")
	case config.BackendBadger:
		storage, err := badger.Open(cfg.Badger.Dir)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, storage.Close)
		r.storage = storage
		r.healthCheckers = append(r.healthCheckers, health.NewBadgerHealthChecker(storage))
		r.logger.WithField("dir", cfg.Badger.Dir).Info("Opened badger cache storage")
	case config.BackendPostgres:
		database, err := db.Open(context.Background(), &cfg.Database)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, database.Close)
		version, err := database.Migrate(cfg.Database.MigrationsPath)
		if err != nil {
			return err
		}
		r.storage = repositories.NewCacheStorageRepository(database)
		r.healthCheckers = append(r.healthCheckers, health.NewDBHealthChecker(database))
		r.logger.WithField("schema_version", version).Info("Connected to database successfully")
	default:
		r.storage = memory.NewCacheStorage()
		r.logger.Warn("Using in-memory cache storage; cached generations are lost on restart")
	}
	return nil
}
