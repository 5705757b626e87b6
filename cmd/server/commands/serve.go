package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/core/ports"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/httpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the caching proxy",
	Long: `Start the caching proxy and register the configured cache generation.

Registration runs in the background: requests are proxied straight to the
origin until the generation is installed and active.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger
	cfg := rt.cfg

	logger.WithFields(map[string]interface{}{
		"origin":     rt.fetcher.Origin(),
		"generation": cfg.Cache.Generation,
		"backend":    cfg.Cache.Backend,
	}).Info("Starting funwheel-offline cache proxy...")

	httpserver.Version = Version
	server := httpserver.NewServer(&httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		TLSCertFile:    cfg.Server.TLSCertFile,
		TLSKeyFile:     cfg.Server.TLSKeyFile,
		AdminJWTSecret: cfg.Admin.JWTSecret,
	}, logger, httpserver.ServerDeps{
		CacheManager:   rt.manager,
		HealthCheckers: rt.healthCheckers,
		Registration:   rt.registration,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bootCache(ctx, rt.manager, rt.registration, cfg.Cache.RegisterOnBoot, logger)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		logger.Info("Shutting down server...")
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server exited")
	return nil
}

// bootCache resumes the configured generation from storage so a restart
// serves offline immediately, then registers it in the background.
// Serving never waits for the registration.
func bootCache(ctx context.Context, manager ports.CacheManagerService, req ports.RegistrationRequest, register bool, logger *logrus.Logger) <-chan struct{} {
	st, err := manager.Resume(ctx, req)
	switch {
	case err == nil:
		logger.WithField("generation", st.Generation).Info("Serving cache generation stored by a previous run")
	case errors.Is(err, asset.ErrNotStored):
		logger.WithError(err).Info("No stored cache generation to resume")
	default:
		logger.WithError(err).Warn("Failed to resume stored cache generation")
	}

	done := make(chan struct{})
	if !register {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		if _, err := manager.Register(ctx, req); err != nil {
			logger.WithError(err).Error("Initial cache registration failed")
		}
	}()
	return done
}
