package token

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-guard/credentials"
	sgerrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Exchanger talks to the backend's auth endpoints.
// Refresh may return an empty RefreshToken, meaning the current one stays valid.
type Exchanger interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	Login(ctx context.Context, username, password string) (*oauth2.Token, error)
}

// Store is the part of the credential store the service reads and writes.
type Store interface {
	AccessToken() string
	Snapshot() credentials.Snapshot
	SetTokens(ctx context.Context, access, refresh string) error
	ClearAll(ctx context.Context) error
}

var _ Store = (*credentials.Store)(nil)

type result struct {
	token string
	err   error
}

// Service hands out valid access tokens and runs at most one refresh at a
// time. Callers that need a token while a refresh is in flight queue up and
// receive the outcome of that refresh.
type Service struct {
	store     Store
	exchanger Exchanger
	margin    time.Duration
	nowFunc   func() time.Time
	logger    zerolog.Logger
	metrics   *metrics.Metrics

	mu         sync.Mutex
	refreshing bool
	waiters    []chan result
}

type Option func(*Service)

func WithExpiryMargin(margin time.Duration) Option {
	return func(s *Service) {
		s.margin = margin
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(store Store, exchanger Exchanger, options ...Option) *Service {
	s := &Service{
		store:     store,
		exchanger: exchanger,
		margin:    DefaultExpiryMargin,
		nowFunc:   time.Now,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// IsTokenExpired applies the service's clock and margin to raw.
func (s *Service) IsTokenExpired(raw string) bool {
	return IsExpired(raw, s.nowFunc(), s.margin)
}

// GetValidToken returns an access token that is safe to send. It returns ""
// without touching the network when no session is held.
func (s *Service) GetValidToken(ctx context.Context) (string, error) {
	access := s.store.AccessToken()
	if access == "" {
		return "", nil
	}
	if !s.IsTokenExpired(access) {
		return access, nil
	}
	s.logger.Debug().Msg("access token expired or expiring, refreshing")
	return s.RefreshStaleToken(ctx, access)
}

// RefreshAccessToken obtains a new access token, either by leading a refresh
// or by waiting for the one in flight. The exchange runs under the leader's
// context; a waiter whose context ends stops waiting without affecting it.
func (s *Service) RefreshAccessToken(ctx context.Context) (string, error) {
	return s.refresh(ctx, "")
}

// RefreshStaleToken is RefreshAccessToken for a caller that judged stale
// unusable. If the store already holds a different, unexpired token when the
// caller reaches the lock, a refresh finished in between and that token is
// returned without another exchange.
func (s *Service) RefreshStaleToken(ctx context.Context, stale string) (string, error) {
	return s.refresh(ctx, stale)
}

func (s *Service) refresh(ctx context.Context, stale string) (string, error) {
	s.mu.Lock()
	if s.refreshing {
		ch := make(chan result, 1)
		s.waiters = append(s.waiters, ch)
		s.mu.Unlock()
		s.metrics.RefreshWaiter()
		return s.wait(ctx, ch)
	}
	if stale != "" {
		if current := s.store.AccessToken(); current != stale {
			if current == "" {
				s.mu.Unlock()
				return "", sgerrors.Wrapf(sgerrors.ErrAuthenticationRequired, "[Service RefreshAccessToken] session cleared")
			}
			if !s.IsTokenExpired(current) {
				s.mu.Unlock()
				s.logger.Debug().Msg("token renewed by a concurrent refresh")
				return current, nil
			}
		}
	}
	s.refreshing = true
	s.mu.Unlock()

	res := result{err: fmt.Errorf("[Service RefreshAccessToken] exchange aborted")}
	defer func() {
		// Runs on panic too; the panic keeps unwinding after waiters are released.
		s.settle(res)
	}()

	res.token, res.err = s.exchange(ctx)
	return res.token, res.err
}

// IsRefreshing reports whether a refresh is in flight.
func (s *Service) IsRefreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshing
}

// Waiting returns the number of callers queued behind the in-flight refresh.
func (s *Service) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

func (s *Service) wait(ctx context.Context, ch chan result) (string, error) {
	select {
	case r := <-ch:
		return r.token, r.err
	case <-ctx.Done():
		s.mu.Lock()
		s.waiters = slices.DeleteFunc(s.waiters, func(w chan result) bool { return w == ch })
		s.mu.Unlock()
		return "", sgerrors.Wrapf(ctx.Err(), "[Service RefreshAccessToken] waiting for refresh")
	}
}

// settle releases every waiter with res and returns the service to idle in
// one critical section.
func (s *Service) settle(res result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.waiters {
		ch <- res
	}
	s.waiters = nil
	s.refreshing = false
}

func (s *Service) exchange(ctx context.Context) (string, error) {
	snap := s.store.Snapshot()
	var refreshErr, loginErr error

	if snap.RefreshToken != "" {
		tok, err := s.exchanger.Refresh(ctx, snap.RefreshToken)
		if err == nil {
			refresh := tokenRefresh(tok)
			if refresh == "" {
				refresh = snap.RefreshToken
			}
			if err = s.store.SetTokens(ctx, tokenAccess(tok), refresh); err == nil {
				s.metrics.Refresh(metrics.MethodRefreshToken, metrics.OutcomeSuccess)
				s.logger.Info().Bool("rotated", tokenRefresh(tok) != "").Msg("access token refreshed")
				return tokenAccess(tok), nil
			}
		}
		refreshErr = err
		s.metrics.Refresh(metrics.MethodRefreshToken, metrics.OutcomeFailure)
		s.logger.Warn().Err(err).Msg("refresh token exchange failed")
		if ctx.Err() != nil {
			return "", sgerrors.Wrapf(ctx.Err(), "[Service exchange] refresh")
		}
	}

	if snap.HasCredentials() {
		tok, err := s.exchanger.Login(ctx, snap.Username, snap.Password)
		if err == nil {
			if err = s.store.SetTokens(ctx, tokenAccess(tok), tokenRefresh(tok)); err == nil {
				s.metrics.Refresh(metrics.MethodPassword, metrics.OutcomeSuccess)
				s.logger.Info().Str("username", snap.Username).Msg("session renewed with stored credentials")
				return tokenAccess(tok), nil
			}
		}
		loginErr = err
		s.metrics.Refresh(metrics.MethodPassword, metrics.OutcomeFailure)
		s.logger.Warn().Err(err).Str("username", snap.Username).Msg("password fallback failed")
		if ctx.Err() != nil {
			return "", sgerrors.Wrapf(ctx.Err(), "[Service exchange] password login")
		}
	}

	refreshFailure := &sgerrors.RefreshError{RefreshErr: refreshErr, LoginErr: loginErr}
	s.logger.Error().Err(refreshFailure).Msg("session could not be renewed, clearing credentials")
	if err := s.store.ClearAll(context.WithoutCancel(ctx)); err != nil {
		log.Err(err).Msg("failed to clear credentials after refresh failure")
	}
	return "", refreshFailure
}

func tokenAccess(tok *oauth2.Token) string {
	if tok == nil {
		return ""
	}
	return tok.AccessToken
}

func tokenRefresh(tok *oauth2.Token) string {
	if tok == nil {
		return ""
	}
	return tok.RefreshToken
}
