package main

import (
	"fmt"

	"github.com/jrsteele09/go-session-guard/cookiestore"
	"github.com/jrsteele09/go-session-guard/credentials"
	credentialsrepofake "github.com/jrsteele09/go-session-guard/credentials/repofake"
	"github.com/jrsteele09/go-session-guard/credentials/redisstore"
	"github.com/jrsteele09/go-session-guard/internal/config"
	"github.com/redis/go-redis/v9"
)

// newPersister selects where the session survives between invocations.
// The returned close func releases any connection the persister holds.
func newPersister(c config.SessionConfig) (credentials.Persister, func() error, error) {
	noop := func() error { return nil }

	switch c.GetSessionStore() {
	case config.SessionStoreFile:
		return cookiestore.NewFileStore(c.GetCookieFile()), noop, nil
	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
		})
		return redisstore.New(client, c.GetRedisPrefix(), c.GetSessionKey()), client.Close, nil
	case config.SessionStoreMemory:
		return credentialsrepofake.NewFakePersister(), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown session store %q (want %s, %s or %s)",
		c.GetSessionStore(), config.SessionStoreFile, config.SessionStoreRedis, config.SessionStoreMemory)
}
