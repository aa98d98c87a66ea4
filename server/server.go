package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-session-guard/internal/config"
	"github.com/jrsteele09/go-session-guard/server/issuer"
	"github.com/jrsteele09/go-session-guard/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Server is the development backend: the auth endpoints the session guard
// consumes plus a sample protected resource.
type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	issuer   *issuer.Issuer
	users    users.UserRepo
	students *StudentRepo

	registry *prometheus.Registry
	requests *prometheus.CounterVec

	issuerOptions     []issuer.Option
	generatedPassword string
}

type Option func(*Server)

// WithIssuerOptions appends options to the ones derived from configuration.
func WithIssuerOptions(options ...issuer.Option) Option {
	return func(s *Server) {
		s.issuerOptions = append(s.issuerOptions, options...)
	}
}

func New(cfg config.Config, userRepo users.UserRepo, options ...Option) (*Server, error) {
	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		users:    userRepo,
		students: NewStudentRepo(),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range options {
		opt(s)
	}

	issuerOptions := append([]issuer.Option{
		issuer.WithTokenExpiry(cfg.GetAccessTokenExpiry(), cfg.GetRefreshTokenExpiry()),
		issuer.WithRefreshRotation(cfg.GetRotateRefreshTokens()),
	}, s.issuerOptions...)
	s.issuer = issuer.New(issuer.NewHMACSigner(cfg.GetSigningSecret()), userRepo, issuerOptions...)

	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.requests = promauto.With(s.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessionguard",
		Subsystem: "backend",
		Name:      "requests_total",
		Help:      "Requests served by the development backend",
	}, []string{"method", "route", "status"})

	generated, err := s.InitialiseSystem()
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to initialise the system: %w", err)
	}
	s.generatedPassword = generated

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// GeneratedAdminPassword is the bootstrap admin password when one had to be generated.
func (s *Server) GeneratedAdminPassword() string {
	return s.generatedPassword
}

// Registry exposes the collectors served on /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// RunMaintenance prunes expired revocations every interval until ctx ends.
func (s *Server) RunMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.issuer.CleanupRevokedTokens()
		}
	}
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}
