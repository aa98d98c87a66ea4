package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sgerrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/server/issuer"
	"github.com/jrsteele09/go-session-guard/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyClaims stores parsed access token claims
	ContextKeyClaims ContextKey = "claims"
)

// ClaimsFromContext returns the claims attached by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*issuer.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*issuer.Claims)
	return claims, ok
}

// RequireAuth is middleware that validates a Bearer access token
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				writeDetail(w, http.StatusUnauthorized, "Invalid Authorization header format.")
				return
			}

			claims, err := s.issuer.ValidateAccess(parts[1])
			if err != nil {
				detail := "Given token not valid for any token type"
				if errors.Is(err, sgerrors.ErrTokenExpired) {
					detail = "Token is expired"
				}
				writeDetail(w, http.StatusUnauthorized, detail)
				return
			}

			next(w, r.WithContext(context.WithValue(r.Context(), ContextKeyClaims, claims)))
		}
	}
}

// RequireRoles rejects authenticated callers holding none of roles. It must run after RequireAuth.
func (s *Server) RequireRoles(roles ...users.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
				return
			}
			held := users.RolesFromInts(claims.Roles)
			if !users.HasAnyRole(held, roles...) {
				writeDetail(w, http.StatusForbidden, "You do not have permission to perform this action.")
				return
			}
			next(w, r)
		}
	}
}
