package auth

import (
	"fmt"
	"os"
	"strings"
	"time"

	"jass-lite/apps/server/internal/dbutil"
)

const (
	AuthModeMemory = "memory"
	AuthModeSQLite = "sqlite"
	AuthModeDB     = "db"
)

func authModeFromEnv() string {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	switch raw {
	case "", AuthModeDB, "postgres", "postgresql":
		return AuthModeDB
	case AuthModeSQLite, "local", "sqlite3":
		return AuthModeSQLite
	case AuthModeMemory, "mem":
		return AuthModeMemory
	default:
		return raw
	}
}

func authSessionTTLFromEnv() time.Duration {
	ttl := dbutil.EnvDuration("AUTH_SESSION_TTL", defaultSessionTTL)
	if ttl <= 0 {
		return defaultSessionTTL
	}
	return ttl
}

// NewServiceFromEnv picks the backend named by AUTH_MODE and returns it with the resolved mode.
func NewServiceFromEnv() (Service, string, error) {
	mode := authModeFromEnv()

	switch mode {
	case AuthModeDB:
		manager, err := NewPostgresManagerFromEnv()
		if err != nil {
			return nil, mode, fmt.Errorf("postgres auth: %w", err)
		}
		return manager, mode, nil
	case AuthModeSQLite:
		manager, err := NewSQLiteManagerFromEnv()
		if err != nil {
			return nil, mode, fmt.Errorf("sqlite auth: %w", err)
		}
		return manager, mode, nil
	case AuthModeMemory:
		return NewManager(authSessionTTLFromEnv()), mode, nil
	default:
		return nil, mode, fmt.Errorf("invalid AUTH_MODE %q (supported: %s, %s, %s)", mode, AuthModeMemory, AuthModeSQLite, AuthModeDB)
	}
}
