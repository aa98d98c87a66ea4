package issuer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	sgerrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/users"
)

// Token types carried in the token_type claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the payload of both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Username  string `json:"username"`
	Roles     []int  `json:"roles"`
	TokenType string `json:"token_type"`
}

// Pair is the wire form returned by the login and refresh endpoints.
// Refresh is empty when a refresh did not rotate the refresh token.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Issuer creates and validates the backend's access and refresh tokens.
type Issuer struct {
	signer             Signer
	userRepo           users.UserRepo
	revokedCache       RevokedTokenCache
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	rotateRefresh      bool
	nowFunc            func() time.Time
}

type Option func(*Issuer)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) Option {
	return func(i *Issuer) {
		i.accessTokenExpiry = accessTokenExpiry
		i.refreshTokenExpiry = refreshTokenExpiry
	}
}

// WithRefreshRotation makes every refresh revoke the presented refresh token
// and hand out a new one.
func WithRefreshRotation(rotate bool) Option {
	return func(i *Issuer) {
		i.rotateRefresh = rotate
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) Option {
	return func(i *Issuer) {
		i.revokedCache = cache
	}
}

func New(signer Signer, userRepo users.UserRepo, options ...Option) *Issuer {
	i := &Issuer{
		signer:   signer,
		userRepo: userRepo,
	}
	for _, opt := range options {
		opt(i)
	}

	if i.accessTokenExpiry == 0 {
		i.accessTokenExpiry = 15 * time.Minute
	}
	if i.refreshTokenExpiry == 0 {
		i.refreshTokenExpiry = 24 * time.Hour
	}
	if i.nowFunc == nil {
		i.nowFunc = time.Now
	}
	if i.revokedCache == nil {
		i.revokedCache = NewInMemoryRevokedTokenCache(i.nowFunc)
	}
	return i
}

// Now is the issuer's clock.
func (i *Issuer) Now() time.Time {
	return i.nowFunc()
}

func (i *Issuer) AccessTokenExpiry() time.Duration {
	return i.accessTokenExpiry
}

// Login checks the password and issues a fresh pair.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (i *Issuer) Login(username, password string) (*Pair, *users.User, error) {
	user, err := i.userRepo.GetByUsername(strings.TrimSpace(username))
	if err != nil || !user.CheckPassword(password) {
		return nil, nil, sgerrors.ErrInvalidCredentials
	}
	if user.Blocked {
		return nil, nil, sgerrors.ErrUserBlocked
	}

	access, err := i.sign(user, TypeAccess, i.accessTokenExpiry)
	if err != nil {
		return nil, nil, sgerrors.Wrapf(err, "[Issuer Login] access token")
	}
	refresh, err := i.sign(user, TypeRefresh, i.refreshTokenExpiry)
	if err != nil {
		return nil, nil, sgerrors.Wrapf(err, "[Issuer Login] refresh token")
	}

	updated := *user
	updated.LastLogin = i.nowFunc()
	if err := i.userRepo.Upsert(&updated); err != nil {
		return nil, nil, sgerrors.Wrapf(err, "[Issuer Login] record last login")
	}
	return &Pair{Access: access, Refresh: refresh}, &updated, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (i *Issuer) Refresh(rawRefresh string) (*Pair, error) {
	claims, err := i.parse(rawRefresh, TypeRefresh)
	if err != nil {
		return nil, sgerrors.Wrapf(sgerrors.ErrInvalidRefreshToken, "[Issuer Refresh] %v", err)
	}
	if i.revokedCache.IsRevoked(claims.ID) {
		return nil, sgerrors.Wrapf(sgerrors.ErrTokenRevoked, "[Issuer Refresh]")
	}

	user, err := i.userRepo.GetByID(claims.Subject)
	if err != nil {
		return nil, sgerrors.Wrapf(sgerrors.ErrInvalidRefreshToken, "[Issuer Refresh] %v", err)
	}
	if user.Blocked {
		return nil, sgerrors.ErrUserBlocked
	}

	access, err := i.sign(user, TypeAccess, i.accessTokenExpiry)
	if err != nil {
		return nil, sgerrors.Wrapf(err, "[Issuer Refresh] access token")
	}
	pair := &Pair{Access: access}
	if !i.rotateRefresh {
		return pair, nil
	}

	if pair.Refresh, err = i.sign(user, TypeRefresh, i.refreshTokenExpiry); err != nil {
		return nil, sgerrors.Wrapf(err, "[Issuer Refresh] refresh token")
	}
	i.revokedCache.Add(claims.ID, claims.ExpiresAt.Time)
	return pair, nil
}

// ValidateAccess verifies signature, expiry and token type of an access token.
func (i *Issuer) ValidateAccess(rawAccess string) (*Claims, error) {
	claims, err := i.parse(rawAccess, TypeAccess)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, sgerrors.Wrapf(sgerrors.ErrTokenExpired, "[Issuer ValidateAccess]")
		}
		return nil, sgerrors.Wrapf(sgerrors.ErrInvalidToken, "[Issuer ValidateAccess] %v", err)
	}
	return claims, nil
}

// Revoke invalidates a refresh token until it expires.
func (i *Issuer) Revoke(rawRefresh string) error {
	claims, err := i.parse(rawRefresh, TypeRefresh)
	if err != nil {
		return sgerrors.Wrapf(sgerrors.ErrInvalidRefreshToken, "[Issuer Revoke] %v", err)
	}
	i.revokedCache.Add(claims.ID, claims.ExpiresAt.Time)
	return nil
}

// CleanupRevokedTokens removes expired entries from the revocation cache
func (i *Issuer) CleanupRevokedTokens() {
	i.revokedCache.Cleanup()
}

func (i *Issuer) sign(user *users.User, tokenType string, expiry time.Duration) (string, error) {
	now := i.nowFunc()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			ID:        uuid.New().String(),
		},
		Username:  user.Username,
		Roles:     users.RolesToInts(user.Roles),
		TokenType: tokenType,
	}
	if claims.Roles == nil {
		claims.Roles = []int{}
	}
	return i.signer.Sign(claims)
}

func (i *Issuer) parse(raw, tokenType string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, i.signer.VerificationKey,
		jwt.WithValidMethods([]string{i.signer.SigningMethod().Alg()}),
		jwt.WithTimeFunc(i.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("token_type %q, want %q", claims.TokenType, tokenType)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("token has no jti")
	}
	return claims, nil
}
