package config

import (
	"strings"
	"time"
)

type API struct{}

var _ APIConfig = API{}

// GetAPIBaseURL returns the backend origin without a trailing slash (e.g. "https://api.example.com")
func (API) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv("API_BASE_URL", "http://localhost:8080"), "/")
}

func (API) GetLoginPath() string {
	return GetEnv("API_LOGIN_PATH", "/api/auth/login/")
}

func (API) GetRefreshPath() string {
	return GetEnv("API_REFRESH_PATH", "/api/auth/refresh/")
}

func (API) GetLogoutPath() string {
	return GetEnv("API_LOGOUT_PATH", "/api/auth/logout/")
}

func (API) GetCurrentUserPath() string {
	return GetEnv("API_CURRENT_USER_PATH", "/api/auth/current-user/")
}

func (API) GetRequestTimeout() time.Duration {
	return GetDuration("REQUEST_TIMEOUT", 30*time.Second)
}
