package config

import "time"

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	BackendConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

// APIConfig locates the backend the session guard talks to.
type APIConfig interface {
	GetAPIBaseURL() string
	GetLoginPath() string
	GetRefreshPath() string
	GetLogoutPath() string
	GetCurrentUserPath() string
	GetRequestTimeout() time.Duration
}

// SessionConfig controls token freshness and where the session is persisted.
type SessionConfig interface {
	GetExpiryMargin() time.Duration
	GetSessionStore() string
	GetCookieFile() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisPrefix() string
	GetSessionKey() string
}

// BackendConfig is only read by the development backend.
type BackendConfig interface {
	GetSigningSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRotateRefreshTokens() bool
	GetAdminUsername() string
	GetAdminPassword() string
}

type mainConfig struct {
	EnvVars
	API
	Session
	Backend
}

func New() Config {
	return mainConfig{}
}
