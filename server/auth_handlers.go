package server

import (
	"errors"
	"net/http"

	sgerrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/server/issuer"
	"github.com/jrsteele09/go-session-guard/users"
	"github.com/rs/zerolog/log"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Username == "" || req.Password == "" {
			writeDetail(w, http.StatusBadRequest, "Username and password are required.")
			return
		}

		pair, user, err := s.issuer.Login(req.Username, req.Password)
		switch {
		case errors.Is(err, sgerrors.ErrInvalidCredentials), errors.Is(err, sgerrors.ErrUserBlocked):
			writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
			return
		case err != nil:
			log.Error().Err(err).Msg("[LoginHandler] issue tokens")
			writeDetail(w, http.StatusInternalServerError, "internal server error")
			return
		}

		log.Debug().Str("username", user.Username).Msg("login")
		writeJSON(w, http.StatusOK, pair)
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Refresh == "" {
			writeDetail(w, http.StatusBadRequest, "Refresh token is required.")
			return
		}

		pair, err := s.issuer.Refresh(req.Refresh)
		if err != nil {
			log.Debug().Err(err).Msg("[RefreshHandler] rejected")
			writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired")
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

// LogoutHandler revokes the posted refresh token. Unknown or expired tokens are not an error.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := s.issuer.Revoke(req.Refresh); err != nil {
			log.Debug().Err(err).Msg("[LogoutHandler] nothing to revoke")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) CurrentUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		user, err := s.userFromClaims(claims)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func (s *Server) userFromClaims(claims *issuer.Claims) (*users.User, error) {
	if claims == nil {
		return nil, sgerrors.ErrAuthenticationRequired
	}
	user, err := s.users.GetByID(claims.Subject)
	if err != nil {
		return nil, err
	}
	if user.Blocked {
		return nil, sgerrors.ErrUserBlocked
	}
	return user, nil
}
