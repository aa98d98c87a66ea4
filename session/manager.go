package session

import (
	"context"

	"github.com/jrsteele09/go-session-guard/authapi"
	"github.com/jrsteele09/go-session-guard/credentials"
	sgerrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Authenticator is the subset of the auth endpoints a login needs.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*oauth2.Token, error)
	CurrentUser(ctx context.Context, accessToken string) (*authapi.CurrentUser, error)
}

// Revoker is implemented by authenticators that can revoke a refresh token on logout.
type Revoker interface {
	Logout(ctx context.Context, refreshToken string) error
}

type Navigator interface {
	NavigateToLogin()
	NavigateToDashboard()
}

// Manager runs interactive login, logout and the reload-time restore.
type Manager struct {
	store  *credentials.Store
	auth   Authenticator
	nav    Navigator
	logger zerolog.Logger
}

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(store *credentials.Store, auth Authenticator, nav Navigator, options ...Option) *Manager {
	m := &Manager{
		store:  store,
		auth:   auth,
		nav:    nav,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Login authenticates, records tokens, credentials and roles, then opens the
// dashboard. A failure after the tokens were stored leaves the store empty.
func (m *Manager) Login(ctx context.Context, username, password string) (*authapi.CurrentUser, error) {
	tok, err := m.auth.Login(ctx, username, password)
	if err != nil {
		return nil, sgerrors.Wrapf(err, "[Manager Login] login")
	}
	if err := m.store.SetTokens(ctx, tok.AccessToken, tok.RefreshToken); err != nil {
		return nil, sgerrors.Wrapf(err, "[Manager Login] store tokens")
	}
	m.store.SetCredentials(username, password)

	user, err := m.auth.CurrentUser(ctx, tok.AccessToken)
	if err != nil {
		m.abandon(ctx)
		return nil, sgerrors.Wrapf(err, "[Manager Login] current user")
	}
	if err := m.store.SetRoles(ctx, user.Roles); err != nil {
		m.abandon(ctx)
		return nil, sgerrors.Wrapf(err, "[Manager Login] store roles")
	}

	m.logger.Info().Str("username", user.Username).Ints("roles", users.RolesToInts(user.Roles)).Msg("logged in")
	m.nav.NavigateToDashboard()
	return user, nil
}

// Logout revokes the refresh token when the backend supports it, then clears
// the session and opens the login page. Revocation failures do not stop the
// local logout.
func (m *Manager) Logout(ctx context.Context) error {
	if revoker, ok := m.auth.(Revoker); ok {
		if refresh := m.store.RefreshToken(); refresh != "" {
			if err := revoker.Logout(ctx, refresh); err != nil {
				m.logger.Warn().Err(err).Msg("refresh token revocation failed")
			}
		}
	}

	err := m.store.ClearAll(ctx)
	m.nav.NavigateToLogin()
	if err != nil {
		return sgerrors.Wrapf(err, "[Manager Logout]")
	}
	m.logger.Info().Msg("logged out")
	return nil
}

// Restore hydrates the store from persistence and reports whether a session
// was found. Only the refresh-token path can renew a restored session.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	if err := m.store.Hydrate(ctx); err != nil {
		return false, sgerrors.Wrapf(err, "[Manager Restore]")
	}
	if !m.store.IsAuthenticated() {
		return false, nil
	}
	m.logger.Debug().Msg("session restored; password fallback unavailable until the next interactive login")
	return true, nil
}

func (m *Manager) abandon(ctx context.Context) {
	if err := m.store.ClearAll(context.WithoutCancel(ctx)); err != nil {
		log.Err(err).Msg("failed to clear partial login")
	}
}
