package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"jass-lite/apps/server/internal/dbutil"

	"golang.org/x/crypto/bcrypt"
)

const defaultLocalDBName = "jass_local.db"

// SQLiteManager persists accounts and sessions in a local SQLite file.
type SQLiteManager struct {
	db         *sql.DB
	sessionTTL time.Duration
}

func NewSQLiteManagerFromEnv() (*SQLiteManager, error) {
	dbPath, err := dbutil.LocalPath(defaultLocalDBName, "AUTH_LOCAL_DATABASE_PATH", "LOCAL_DATABASE_PATH")
	if err != nil {
		return nil, err
	}
	return NewSQLiteManager(dbPath, authSessionTTLFromEnv())
}

func NewSQLiteManager(dbPath string, sessionTTL time.Duration) (*SQLiteManager, error) {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	db, err := dbutil.OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()
	if err := dbutil.Exec(ctx, db, sqliteAuthSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteManager{db: db, sessionTTL: sessionTTL}, nil
}

func (m *SQLiteManager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *SQLiteManager) Register(ctx context.Context, username, password string) (Grant, error) {
	if err := validateCredentials(username, password); err != nil {
		return Grant{}, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return Grant{}, err
	}
	name := normalizeUsername(username)

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return Grant{}, err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	res, err := tx.ExecContext(ctx, `
INSERT INTO players (username, password_hash, created_at_ms, last_login_at_ms)
VALUES (?, ?, ?, ?)
`, name, string(hash), nowMs, nowMs)
	if err != nil {
		if dbutil.IsSQLiteUniqueViolation(err) {
			return Grant{}, ErrUsernameTaken
		}
		return Grant{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Grant{}, err
	}

	grant, err := m.issueSessionTx(ctx, tx, Identity{AccountID: uint64(id), Username: name}, nowMs)
	if err != nil {
		return Grant{}, err
	}
	if err := tx.Commit(); err != nil {
		return Grant{}, err
	}
	return grant, nil
}

func (m *SQLiteManager) Login(ctx context.Context, username, password string) (Grant, error) {
	name := normalizeUsername(username)
	if name == "" || password == "" {
		return Grant{}, ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		id   uint64
		hash string
	)
	err := m.db.QueryRowContext(ctx, `SELECT id, password_hash FROM players WHERE username = ?`, name).Scan(&id, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Grant{}, ErrInvalidCredentials
		}
		return Grant{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Grant{}, ErrInvalidCredentials
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return Grant{}, err
	}
	defer tx.Rollback()

	nowMs := time.Now().UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx, `UPDATE players SET last_login_at_ms = ? WHERE id = ?`, nowMs, id); err != nil {
		return Grant{}, err
	}
	grant, err := m.issueSessionTx(ctx, tx, Identity{AccountID: id, Username: name}, nowMs)
	if err != nil {
		return Grant{}, err
	}
	if err := tx.Commit(); err != nil {
		return Grant{}, err
	}
	return grant, nil
}

func (m *SQLiteManager) ResolveSession(ctx context.Context, token string) (Identity, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	nowMs := time.Now().UTC().UnixMilli()
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return Identity{}, false
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
UPDATE player_sessions
SET last_seen_at_ms = ?,
    expires_at_ms = ?
WHERE token = ?
  AND revoked_at_ms IS NULL
  AND expires_at_ms > ?
`, nowMs, nowMs+m.sessionTTL.Milliseconds(), token, nowMs)
	if err != nil {
		return Identity{}, false
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return Identity{}, false
	}

	var ident Identity
	err = tx.QueryRowContext(ctx, `
SELECT p.id, p.username
FROM player_sessions AS s
JOIN players AS p ON p.id = s.player_id
WHERE s.token = ?
`, token).Scan(&ident.AccountID, &ident.Username)
	if err != nil {
		return Identity{}, false
	}
	if err := tx.Commit(); err != nil {
		return Identity{}, false
	}
	return ident, true
}

func (m *SQLiteManager) Logout(ctx context.Context, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	_, _ = m.db.ExecContext(ctx, `
UPDATE player_sessions
SET revoked_at_ms = ?
WHERE token = ?
  AND revoked_at_ms IS NULL
`, time.Now().UTC().UnixMilli(), token)
}

func (m *SQLiteManager) issueSessionTx(ctx context.Context, tx *sql.Tx, ident Identity, nowMs int64) (Grant, error) {
	expiresAtMs := nowMs + m.sessionTTL.Milliseconds()
	for i := 0; i < 5; i++ {
		token := mustToken()
		if _, err := tx.ExecContext(ctx, `
INSERT INTO player_sessions (token, player_id, issued_at_ms, expires_at_ms, last_seen_at_ms)
VALUES (?, ?, ?, ?, ?)
`, token, ident.AccountID, nowMs, expiresAtMs, nowMs); err != nil {
			if dbutil.IsSQLiteUniqueViolation(err) {
				continue
			}
			return Grant{}, err
		}
		return Grant{Identity: ident, Token: token, ExpiresAt: time.UnixMilli(expiresAtMs)}, nil
	}
	return Grant{}, fmt.Errorf("failed to generate unique session token")
}

var sqliteAuthSchema = []string{
	`
CREATE TABLE IF NOT EXISTS players (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL,
    last_login_at_ms INTEGER
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_players_username ON players(username)`,
	`
CREATE TABLE IF NOT EXISTS player_sessions (
    token TEXT PRIMARY KEY,
    player_id INTEGER NOT NULL,
    issued_at_ms INTEGER NOT NULL,
    expires_at_ms INTEGER NOT NULL,
    revoked_at_ms INTEGER,
    last_seen_at_ms INTEGER NOT NULL,
    FOREIGN KEY(player_id) REFERENCES players(id) ON DELETE CASCADE
)`,
	`CREATE INDEX IF NOT EXISTS idx_player_sessions_player ON player_sessions(player_id, expires_at_ms DESC)`,
}
