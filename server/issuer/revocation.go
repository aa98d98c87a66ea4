package issuer

import (
	"sync"
	"time"
)

// RevokedTokenCache records revoked refresh token ids until the tokens would
// have expired anyway.
type RevokedTokenCache interface {
	Add(jti string, exp time.Time)
	IsRevoked(jti string) bool
	Cleanup() // Remove expired entries
	Len() int
}

// InMemoryRevokedTokenCache is a mutex-guarded map of jti to expiry
type InMemoryRevokedTokenCache struct {
	revoked map[string]time.Time
	nowFunc func() time.Time
	mu      sync.RWMutex
}

func NewInMemoryRevokedTokenCache(now func() time.Time) *InMemoryRevokedTokenCache {
	if now == nil {
		now = time.Now
	}
	return &InMemoryRevokedTokenCache{
		revoked: make(map[string]time.Time),
		nowFunc: now,
	}
}

func (c *InMemoryRevokedTokenCache) Add(jti string, exp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
}

func (c *InMemoryRevokedTokenCache) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

func (c *InMemoryRevokedTokenCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
}

func (c *InMemoryRevokedTokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.revoked)
}
