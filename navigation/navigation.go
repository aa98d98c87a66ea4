package navigation

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Default route paths.
const (
	LoginPath        = "/login"
	DashboardPath    = "/dashboard"
	UnauthorizedPath = "/unauthorized"
)

// NavigateOptions are passed to the registered router function.
// Delta is non-zero only for history moves (-1 is back).
type NavigateOptions struct {
	Replace bool
	State   any
	Delta   int
}

// NavigateFunc is the live router's imperative navigate function.
type NavigateFunc func(path string, opts NavigateOptions)

// Location performs full-page location changes when no router is registered.
type Location interface {
	Assign(path string)
	Replace(path string)
	Back()
}

// Service routes session-guard redirects to whatever router is registered.
type Service struct {
	mu       sync.RWMutex
	navigate NavigateFunc

	location         Location
	loginPath        string
	dashboardPath    string
	unauthorizedPath string
	logger           zerolog.Logger
}

type Option func(*Service)

func WithLocation(location Location) Option {
	return func(s *Service) {
		s.location = location
	}
}

func WithLoginPath(path string) Option {
	return func(s *Service) {
		s.loginPath = path
	}
}

func WithDashboardPath(path string) Option {
	return func(s *Service) {
		s.dashboardPath = path
	}
}

func WithUnauthorizedPath(path string) Option {
	return func(s *Service) {
		s.unauthorizedPath = path
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New creates a service that falls back to an in-memory History until a
// router registers itself.
func New(options ...Option) *Service {
	s := &Service{
		loginPath:        LoginPath,
		dashboardPath:    DashboardPath,
		unauthorizedPath: UnauthorizedPath,
		logger:           log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.location == nil {
		s.location = NewHistory()
	}
	return s
}

// SetNavigateFunc registers the router. A nil fn restores the location fallback.
func (s *Service) SetNavigateFunc(fn NavigateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigate = fn
}

func (s *Service) Location() Location {
	return s.location
}

func (s *Service) LoginPath() string {
	return s.loginPath
}

func (s *Service) UnauthorizedPath() string {
	return s.unauthorizedPath
}

func (s *Service) NavigateToLogin() {
	s.NavigateTo(s.loginPath)
}

func (s *Service) NavigateToDashboard() {
	s.NavigateTo(s.dashboardPath)
}

func (s *Service) NavigateToUnauthorized() {
	s.NavigateTo(s.unauthorizedPath)
}

func (s *Service) NavigateTo(path string) {
	s.logger.Debug().Str("path", path).Msg("navigate")
	if fn := s.navigateFunc(); fn != nil {
		fn(path, NavigateOptions{})
		return
	}
	s.location.Assign(path)
}

func (s *Service) GoBack() {
	if fn := s.navigateFunc(); fn != nil {
		fn("", NavigateOptions{Delta: -1})
		return
	}
	s.location.Back()
}

// Replace swaps the current entry for path. State only reaches a registered router.
func (s *Service) Replace(path string, state any) {
	s.logger.Debug().Str("path", path).Msg("navigate replace")
	if fn := s.navigateFunc(); fn != nil {
		fn(path, NavigateOptions{Replace: true, State: state})
		return
	}
	s.location.Replace(path)
}

func (s *Service) navigateFunc() NavigateFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.navigate
}
