package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-session-guard/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TOKEN_EXPIRY_MARGIN", "")
	t.Setenv("API_BASE_URL", "")

	c := config.New()
	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, 5*time.Minute, c.GetExpiryMargin())
	require.Equal(t, "http://localhost:8080", c.GetAPIBaseURL())
	require.Equal(t, "/api/auth/refresh/", c.GetRefreshPath())
	require.Equal(t, config.SessionStoreFile, c.GetSessionStore())
}

func TestOverrides(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("API_BASE_URL", "https://api.example.com/")
	t.Setenv("TOKEN_EXPIRY_MARGIN", "90s")
	t.Setenv("ROTATE_REFRESH_TOKENS", "true")

	c := config.New()
	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, "https://api.example.com", c.GetAPIBaseURL())
	require.Equal(t, 90*time.Second, c.GetExpiryMargin())
	require.True(t, c.GetRotateRefreshTokens())
}

func TestMalformedDurationFallsBack(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	require.Equal(t, 30*time.Second, config.New().GetRequestTimeout())
}
