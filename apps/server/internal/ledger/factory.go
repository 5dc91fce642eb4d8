package ledger

import (
	"fmt"
	"strings"
)

const defaultRecentLimit = 50

// NewServiceFromEnv follows the auth backend: memory keeps history in process,
// sqlite shares the local database file, anything else goes to Postgres.
func NewServiceFromEnv(authMode string) (Service, string, error) {
	mode := strings.ToLower(strings.TrimSpace(authMode))
	switch mode {
	case "memory", "mem":
		return NewMemoryService(defaultRecentLimit), "memory", nil
	case "sqlite", "local", "sqlite3":
		service, err := NewSQLiteServiceFromEnv()
		if err != nil {
			return nil, "", fmt.Errorf("sqlite ledger: %w", err)
		}
		return service, "sqlite", nil
	default:
		service, err := NewPostgresServiceFromEnv()
		if err != nil {
			return nil, "", fmt.Errorf("postgres ledger: %w", err)
		}
		return service, "postgres", nil
	}
}
