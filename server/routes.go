package server

import (
	"github.com/jrsteele09/go-session-guard/users"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// Auth
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthCurrentUser, ChainMiddleware(s.CurrentUserHandler(), s.APIMiddleware(s.RequireAuth())...))

	// Protected resources
	s.RegisterRouteHandler("GET "+RouteStudents, ChainMiddleware(s.StudentsListHandler(),
		s.APIMiddleware(s.RequireAuth(), s.RequireRoles(users.RoleAdmin, users.RoleRegistrar, users.RoleAdvisor))...))

	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
}
