package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/funwheel-offline/internal/core/ports"
	customMiddleware "github.com/avatarctic/funwheel-offline/internal/infrastructure/httpserver/middleware"
)

// Version is reported by the health endpoint; set at build time.
var Version = "dev"

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TLSCertFile  string
	TLSKeyFile   string
	// AdminJWTSecret mounts the /_offline admin API when non-empty.
	AdminJWTSecret string
}

type ServerDeps struct {
	CacheManager   ports.CacheManagerService
	HealthCheckers []ports.HealthChecker
	// Registration is the request used by the admin register endpoint when
	// the body omits a manifest.
	Registration ports.RegistrationRequest
}

type Server struct {
	echo           *echo.Echo
	config         *ServerConfig
	logger         *logrus.Logger
	cacheManager   ports.CacheManagerService
	registration   ports.RegistrationRequest
	middleware     *customMiddleware.MiddlewareCollection
	healthCheckers []ports.HealthChecker
}

func NewServer(serverConfig *ServerConfig, logger *logrus.Logger, deps ServerDeps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	server := &Server{
		echo:           e,
		config:         serverConfig,
		logger:         logger,
		cacheManager:   deps.CacheManager,
		registration:   deps.Registration,
		healthCheckers: deps.HealthCheckers,
		middleware: customMiddleware.NewMiddlewareCollection(
			logger,
			serverConfig.AdminJWTSecret,
			GetRequestsTotal(),
			GetRequestDuration(),
		),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}
