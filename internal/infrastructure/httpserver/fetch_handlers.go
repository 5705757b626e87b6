package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/infrastructure/httpserver/helpers"
)

// HeaderOfflineSource tells clients where an intercepted response came from.
const HeaderOfflineSource = "X-Offline-Source"

// interceptFetch hands every request to the cache manager and writes back
// exactly one response, or a 502 when the failure propagates.
func (s *Server) interceptFetch(c echo.Context) error {
	req := helpers.AssetRequestFromContext(c)

	res, err := s.cacheManager.Fetch(c.Request().Context(), req)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"method": req.Method, "uri": req.URL}).WithError(err).Warn("intercepted request failed")
		if errors.Is(err, asset.ErrNoResponse) || errors.Is(err, asset.ErrNetwork) {
			return echo.NewHTTPError(http.StatusBadGateway, "upstream unavailable and no cached response")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve request")
	}

	resp := res.Response
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	helpers.SetFetchSource(c, string(res.Source))

	header := c.Response().Header()
	for k, values := range resp.Header {
		for _, v := range values {
			header.Add(k, v)
		}
	}
	header.Set(HeaderOfflineSource, string(res.Source))
	c.Response().WriteHeader(resp.Status)
	if resp.Body == nil || c.Request().Method == http.MethodHead {
		return nil
	}
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		s.logger.WithField("uri", req.URL).WithError(err).Debug("client went away while streaming response")
	}
	return nil
}
