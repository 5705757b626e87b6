package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/core/ports"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/httpserver/helpers"
)

func (s *Server) getCacheStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.cacheManager.Status())
}

func (s *Server) listGenerations(c echo.Context) error {
	names, err := s.cacheManager.Generations(c.Request().Context())
	if err != nil {
		s.logger.WithError(err).Error("failed to list cache generations")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list cache generations")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"generations": names})
}

// registerGeneration starts installing a new generation and returns at once;
// progress is visible through the status endpoint.
func (s *Server) registerGeneration(c echo.Context) error {
	var req ports.RegistrationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Generation.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Manifest) == 0 {
		req.Manifest = append(asset.Manifest(nil), s.registration.Manifest...)
	}

	sub, _ := helpers.GetAdminSubject(c)
	log := s.logger.WithFields(logrus.Fields{"generation": req.Generation, "admin": sub})
	log.Info("generation registration requested")

	go func() {
		if _, err := s.cacheManager.Register(context.Background(), req); err != nil {
			log.WithError(err).Error("generation registration failed")
		}
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"generation": req.Generation,
		"status":     "registering",
	})
}
