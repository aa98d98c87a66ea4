package credentials

import (
	"context"
	"slices"
	"sync"

	sgerrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Snapshot is a consistent copy of every field held by a Store.
type Snapshot struct {
	AccessToken  string
	RefreshToken string
	Username     string
	Password     string
	Roles        []users.Role
}

// HasCredentials reports whether the password fallback is available.
func (s Snapshot) HasCredentials() bool {
	return s.Username != "" && s.Password != ""
}

// Store is the single source of truth for session data. Every mutation is
// flushed to the Persister before it becomes visible in memory, so the two
// copies agree after any call returns.
type Store struct {
	persister Persister
	logger    zerolog.Logger

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	username     string
	password     string
	roles        []users.Role
}

type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty store. Call Hydrate to reconstruct a persisted session.
func NewStore(persister Persister, options ...StoreOption) *Store {
	s := &Store{
		persister: persister,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Hydrate replaces the in-memory session with the persisted one. Roles
// persisted without an access token are discarded.
func (s *Store) Hydrate(ctx context.Context) error {
	p, err := s.persister.Load(ctx)
	if err != nil {
		return sgerrors.Wrapf(err, "[Store Hydrate] load")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.username, s.password = "", ""
	if p == nil {
		s.accessToken, s.refreshToken, s.roles = "", "", nil
		return nil
	}
	s.accessToken = p.AccessToken
	s.refreshToken = p.RefreshToken
	s.roles = nil
	if p.AccessToken != "" {
		s.roles = slices.Clone(p.Roles)
	}
	s.logger.Debug().Bool("authenticated", s.accessToken != "").Int("roles", len(s.roles)).Msg("session hydrated")
	return nil
}

// SetTokens writes both tokens at once. Readers observe either the previous
// pair or the new one, never a mix.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	if access == "" || refresh == "" {
		return sgerrors.Wrapf(sgerrors.ErrInvalidToken, "[Store SetTokens] access and refresh tokens are both required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.persistedLocked()
	next.AccessToken = access
	next.RefreshToken = refresh
	if err := s.persister.Save(ctx, next); err != nil {
		return sgerrors.Wrapf(err, "[Store SetTokens] save")
	}
	s.accessToken = access
	s.refreshToken = refresh
	return nil
}

// SetRoles stores the role codes of the authenticated user.
func (s *Store) SetRoles(ctx context.Context, roles []users.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken == "" {
		return sgerrors.Wrapf(sgerrors.ErrAuthenticationRequired, "[Store SetRoles] roles require an access token")
	}

	next := s.persistedLocked()
	next.Roles = slices.Clone(roles)
	if err := s.persister.Save(ctx, next); err != nil {
		return sgerrors.Wrapf(err, "[Store SetRoles] save")
	}
	s.roles = next.Roles
	return nil
}

// SetCredentials keeps the login credentials in memory for the password
// fallback. They are never persisted.
func (s *Store) SetCredentials(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.password = password
}

// ClearAll removes every field from memory and persistence. Clearing an
// already empty store is a no-op.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Memory is cleared even when persistence fails.
	s.accessToken, s.refreshToken = "", ""
	s.username, s.password = "", ""
	s.roles = nil

	if err := s.persister.Clear(ctx); err != nil {
		return sgerrors.Wrapf(err, "[Store ClearAll] clear")
	}
	return nil
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != ""
}

func (s *Store) HasValidRoles() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.roles) > 0
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Roles returns a copy of the held roles, nil when unauthenticated.
func (s *Store) Roles() []users.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.accessToken == "" {
		return nil
	}
	return slices.Clone(s.roles)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		Username:     s.username,
		Password:     s.password,
		Roles:        slices.Clone(s.roles),
	}
}

func (s *Store) persistedLocked() Persisted {
	return Persisted{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		Roles:        slices.Clone(s.roles),
	}
}
