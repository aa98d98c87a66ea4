package config

import "time"

const (
	SessionStoreFile   = "file"
	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

type Session struct{}

var _ SessionConfig = Session{}

// GetExpiryMargin is how long before its exp claim an access token is already treated as expired.
func (Session) GetExpiryMargin() time.Duration {
	return GetDuration("TOKEN_EXPIRY_MARGIN", 5*time.Minute)
}

func (Session) GetSessionStore() string {
	return GetEnv("SESSION_STORE", SessionStoreFile)
}

func (Session) GetCookieFile() string {
	return GetEnv("COOKIE_FILE", "./data/session.cookies")
}

func (Session) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Session) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Session) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "sessionguard:")
}

// GetSessionKey names the session inside shared storage (one Redis hash per key).
func (Session) GetSessionKey() string {
	return GetEnv("SESSION_KEY", "default")
}
