package server

// Route path constants
const (
	RouteAuthLogin       = "/api/auth/login/"
	RouteAuthRefresh     = "/api/auth/refresh/"
	RouteAuthLogout      = "/api/auth/logout/"
	RouteAuthCurrentUser = "/api/auth/current-user/"

	RouteStudents = "/api/students/"

	RouteMetrics = "/metrics"
)
