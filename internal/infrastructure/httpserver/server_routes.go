package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	if s.config.AdminJWTSecret != "" {
		admin := s.echo.Group("/_offline", s.middleware.Admin.RequireAdmin())
		admin.GET("/status", s.getCacheStatus)
		admin.GET("/generations", s.listGenerations)
		admin.POST("/register", s.registerGeneration)
	}

	// every other request is intercepted by the cache manager
	s.echo.Any("/*", s.interceptFetch)
}
