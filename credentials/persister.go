package credentials

import (
	"context"

	"github.com/jrsteele09/go-session-guard/users"
)

// Persisted is the durable form of a session. Username and password are
// never part of it.
type Persisted struct {
	AccessToken  string
	RefreshToken string
	Roles        []users.Role
}

// IsEmpty reports whether nothing worth persisting is held.
func (p Persisted) IsEmpty() bool {
	return p.AccessToken == "" && p.RefreshToken == "" && len(p.Roles) == 0
}

// Persister is the durable backing of a Store (cookies, a cookie file, Redis).
// Load returns nil, nil when nothing is stored. Clear on empty storage is a no-op.
// Save replaces the whole persisted form in one step.
type Persister interface {
	Load(ctx context.Context) (*Persisted, error)
	Save(ctx context.Context, p Persisted) error
	Clear(ctx context.Context) error
}
