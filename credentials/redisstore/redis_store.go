package redisstore

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-session-guard/cookiestore"
	"github.com/jrsteele09/go-session-guard/credentials"
	"github.com/redis/go-redis/v9"
)

// Store persists a session as one Redis hash keyed by prefix and session key.
// The hash fields use the cookie names of the cookie store.
type Store struct {
	client redis.Cmdable
	key    string
}

var _ credentials.Persister = (*Store)(nil)

func New(client redis.Cmdable, prefix, sessionKey string) *Store {
	return &Store{
		client: client,
		key:    prefix + sessionKey,
	}
}

// Key returns the Redis key holding the session.
func (s *Store) Key() string {
	return s.key
}

func (s *Store) Load(ctx context.Context) (*credentials.Persisted, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("[redisstore Load] hgetall %s: %w", s.key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	p := credentials.Persisted{
		AccessToken:  fields[cookiestore.AccessTokenCookie],
		RefreshToken: fields[cookiestore.RefreshTokenCookie],
	}
	if raw, ok := fields[cookiestore.RolesCookie]; ok {
		roles, err := cookiestore.DecodeRoles(raw)
		if err != nil {
			return nil, fmt.Errorf("[redisstore Load] %w", err)
		}
		p.Roles = roles
	}
	if p.IsEmpty() {
		return nil, nil
	}
	return &p, nil
}

// Save replaces the hash inside MULTI/EXEC so no reader sees a partial session.
func (s *Store) Save(ctx context.Context, p credentials.Persisted) error {
	if p.IsEmpty() {
		return s.Clear(ctx)
	}

	values := make(map[string]any, 3)
	if p.AccessToken != "" {
		values[cookiestore.AccessTokenCookie] = p.AccessToken
	}
	if p.RefreshToken != "" {
		values[cookiestore.RefreshTokenCookie] = p.RefreshToken
	}
	if p.Roles != nil {
		encoded, err := cookiestore.EncodeRoles(p.Roles)
		if err != nil {
			return fmt.Errorf("[redisstore Save] %w", err)
		}
		values[cookiestore.RolesCookie] = encoded
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.HSet(ctx, s.key, values)
		return nil
	})
	if err != nil {
		return fmt.Errorf("[redisstore Save] exec %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("[redisstore Clear] del %s: %w", s.key, err)
	}
	return nil
}
