package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	sgerrors "github.com/jrsteele09/go-session-guard/internal/errors"
)

// DefaultExpiryMargin is how long before exp a token is already treated as expired.
const DefaultExpiryMargin = 5 * time.Minute

// ExpiresAt decodes the exp claim of a JWT. The signature is not verified;
// only the backend can do that.
func ExpiresAt(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, sgerrors.Wrapf(sgerrors.ErrInvalidToken, "[ExpiresAt] empty token")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, sgerrors.Wrapf(sgerrors.ErrInvalidToken, "[ExpiresAt] %v", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, sgerrors.Wrapf(sgerrors.ErrInvalidToken, "[ExpiresAt] %v", err)
	}
	if exp == nil {
		return time.Time{}, sgerrors.Wrapf(sgerrors.ErrInvalidToken, "[ExpiresAt] no exp claim")
	}
	return exp.Time, nil
}

// IsExpired reports whether raw should no longer be sent at now. A token is
// expired unless its exp lies strictly after now+margin; tokens whose exp
// cannot be read are expired.
func IsExpired(raw string, now time.Time, margin time.Duration) bool {
	exp, err := ExpiresAt(raw)
	if err != nil {
		return true
	}
	return !exp.After(now.Add(margin))
}
