package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/asset"
	"github.com/avatarctic/funwheel-offline/internal/core/domain/lifecycle"
	"github.com/avatarctic/funwheel-offline/internal/core/ports"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "The total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status", "source"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "The HTTP request latencies in seconds",
		},
		[]string{"method", "endpoint"},
	)

	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_fetch_total",
			Help: "Intercepted requests by the source that answered them",
		},
		[]string{"source"},
	)

	fetchFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_cache_fetch_failures_total",
			Help: "Intercepted requests that got neither a cached, network nor fallback response",
		},
	)

	lifecycleEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_lifecycle_events_total",
			Help: "Install and activate events by result",
		},
		[]string{"event", "result"},
	)

	activeGeneration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "offline_cache_active_generation",
			Help: "Set to 1 for the generation currently serving requests",
		},
		[]string{"generation"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(fetchTotal)
	prometheus.MustRegister(fetchFailuresTotal)
	prometheus.MustRegister(lifecycleEventsTotal)
	prometheus.MustRegister(activeGeneration)
}

// GetRequestsTotal returns the requests total metric for middleware use
func GetRequestsTotal() *prometheus.CounterVec {
	return requestsTotal
}

// GetRequestDuration returns the request duration metric for middleware use
func GetRequestDuration() *prometheus.HistogramVec {
	return requestDuration
}

type cacheMetricsObserver struct{}

// NewCacheObserver returns a ports.CacheObserver backed by the registered
// Prometheus collectors.
func NewCacheObserver() ports.CacheObserver {
	return cacheMetricsObserver{}
}

func (cacheMetricsObserver) ObserveFetch(source ports.FetchSource) {
	fetchTotal.WithLabelValues(string(source)).Inc()
}

func (cacheMetricsObserver) ObserveFetchFailure() {
	fetchFailuresTotal.Inc()
}

func (cacheMetricsObserver) ObserveLifecycle(event lifecycle.EventKind, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	lifecycleEventsTotal.WithLabelValues(string(event), result).Inc()
}

func (cacheMetricsObserver) SetActiveGeneration(previous, current asset.Generation) {
	if previous != "" && previous != current {
		activeGeneration.DeleteLabelValues(previous.String())
	}
	activeGeneration.WithLabelValues(current.String()).Set(1)
}

// LogMetricsInitialization logs that metrics have been initialized
func (s *Server) LogMetricsInitialization() {
	if s.logger != nil {
		s.logger.Info("Prometheus metrics initialized and registered")
		s.logger.WithFields(map[string]interface{}{
			"http_requests_total":                  "Counter for HTTP requests by method, endpoint, status, source",
			"http_request_duration":                "Histogram for HTTP request duration by method, endpoint",
			"offline_cache_fetch_total":            "Counter for intercepted requests by answering source",
			"offline_cache_lifecycle_events_total": "Counter for install/activate events by result",
			"metrics_endpoint":                     "/metrics",
		}).Debug("Available Prometheus metrics")
	}
}

// Metrics handler
func (s *Server) metricsHandler() http.Handler {
	return promhttp.Handler()
}

// metricsEndpoint wraps the metrics handler with logging
func (s *Server) metricsEndpoint(c echo.Context) error {
	if s.logger != nil {
		s.logger.Debug("Serving Prometheus metrics")
	}
	s.metricsHandler().ServeHTTP(c.Response(), c.Request())
	return nil
}
