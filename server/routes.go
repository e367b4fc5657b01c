package server

func (s *Server) initRoutes() {
	// Protected routes (require a verified bearer token)
	s.RegisterRouteHandler("GET "+RouteUserMe, ChainMiddleware(s.MeHandler(), append(s.APIMiddleware(), s.RequireAuth())...))
	s.RegisterRouteHandler("POST "+RouteUserPermissions, ChainMiddleware(s.PermissionsHandler(), append(s.APIMiddleware(), s.RequireAuth())...))
	s.RegisterRouteHandler("GET "+RouteAuthStatus, ChainMiddleware(s.AuthStatusHandler(), append(s.APIMiddleware(), s.RequireAuth())...))

	// Public routes
	s.RegisterRouteHandler("GET "+RoutePublicInfo, ChainMiddleware(s.PublicInfoHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
