package auth

import (
	"context"
	"time"
)

// Identity is a verified player behind a session token.
type Identity struct {
	AccountID uint64
	Username  string
}

// Grant is returned by Register/Login: the identity plus a fresh opaque token.
type Grant struct {
	Identity
	Token     string
	ExpiresAt time.Time
}

// Service is the identity contract consumed by the gateway and HTTP handlers.
// A session token is the only credential the game layer ever sees.
type Service interface {
	Register(ctx context.Context, username, password string) (Grant, error)
	Login(ctx context.Context, username, password string) (Grant, error)
	ResolveSession(ctx context.Context, token string) (Identity, bool)
	Logout(ctx context.Context, token string)
	Close() error
}
