package config

import "time"

type Backend struct{}

var _ BackendConfig = Backend{}

func (Backend) GetSigningSecret() string {
	return GetEnv("JWT_SECRET", "dev-only-secret-change-me")
}

func (Backend) GetAccessTokenExpiry() time.Duration {
	return GetDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (Backend) GetRefreshTokenExpiry() time.Duration {
	return GetDuration("REFRESH_TOKEN_EXPIRY", 24*time.Hour)
}

func (Backend) GetRotateRefreshTokens() bool {
	return GetBool("ROTATE_REFRESH_TOKENS", false)
}

func (Backend) GetAdminUsername() string {
	return GetEnv("ADMIN_USERNAME", "admin")
}

// GetAdminPassword is empty unless set; the bootstrap then generates one.
func (Backend) GetAdminPassword() string {
	return GetEnv("ADMIN_PASSWORD", "")
}
