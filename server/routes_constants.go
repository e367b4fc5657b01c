package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// User Routes (bearer token required)
	RouteUserMe          = "/api/user/me"
	RouteUserPermissions = "/api/user/permissions"

	// Auth Routes
	RouteAuthStatus = "/api/auth/status"

	// Public Routes (no credential required)
	RoutePublicInfo = "/api/public/info"
	RouteHealth     = "/healthz"
)
