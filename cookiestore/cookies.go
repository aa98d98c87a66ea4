package cookiestore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-session-guard/credentials"
	"github.com/jrsteele09/go-session-guard/users"
)

// Cookie names of the persisted session.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
	RolesCookie        = "userRoles"
)

// Cookies encodes the persisted session as SameSite=Strict session cookies.
// Empty fields produce no cookie. Roles are a query-escaped JSON array of integers.
func Cookies(p credentials.Persisted) ([]*http.Cookie, error) {
	cookies := make([]*http.Cookie, 0, 3)
	if p.AccessToken != "" {
		cookies = append(cookies, newCookie(AccessTokenCookie, p.AccessToken))
	}
	if p.RefreshToken != "" {
		cookies = append(cookies, newCookie(RefreshTokenCookie, p.RefreshToken))
	}
	if p.Roles != nil {
		value, err := EncodeRoles(p.Roles)
		if err != nil {
			return nil, err
		}
		cookies = append(cookies, newCookie(RolesCookie, value))
	}
	return cookies, nil
}

// FromCookies decodes the session cookies, ignoring unrelated ones.
func FromCookies(cookies []*http.Cookie) (credentials.Persisted, error) {
	var p credentials.Persisted
	for _, c := range cookies {
		switch c.Name {
		case AccessTokenCookie:
			p.AccessToken = c.Value
		case RefreshTokenCookie:
			p.RefreshToken = c.Value
		case RolesCookie:
			roles, err := DecodeRoles(c.Value)
			if err != nil {
				return credentials.Persisted{}, err
			}
			p.Roles = roles
		}
	}
	return p, nil
}

// EncodeRoles renders role codes the way the userRoles cookie carries them.
func EncodeRoles(roles []users.Role) (string, error) {
	raw, err := json.Marshal(users.RolesToInts(roles))
	if err != nil {
		return "", fmt.Errorf("[cookiestore EncodeRoles] encode: %w", err)
	}
	return url.QueryEscape(string(raw)), nil
}

func DecodeRoles(value string) ([]users.Role, error) {
	raw, err := url.QueryUnescape(value)
	if err != nil {
		return nil, fmt.Errorf("[cookiestore DecodeRoles] unescape: %w", err)
	}
	var codes []int
	if err := json.Unmarshal([]byte(raw), &codes); err != nil {
		return nil, fmt.Errorf("[cookiestore DecodeRoles] decode: %w", err)
	}
	if codes == nil {
		codes = []int{}
	}
	return users.RolesFromInts(codes), nil
}

func newCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
	}
}
