package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultSessionTTL = 7 * 24 * time.Hour
	tokenBytes        = 32
	dbTimeout         = 5 * time.Second
)

var (
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.-]{2,31}$`)

// Manager keeps players and tokens in process memory. Used for tests and single-binary runs.
type Manager struct {
	mu sync.Mutex

	nextAccountID uint64
	sessionTTL    time.Duration
	now           func() time.Time

	sessions map[string]sessionRecord
	accounts map[uint64]accountRecord
	byName   map[string]uint64
}

type sessionRecord struct {
	AccountID uint64
	ExpiresAt time.Time
}

type accountRecord struct {
	Username     string
	PasswordHash []byte
	LastLoginAt  time.Time
}

func NewManager(sessionTTL time.Duration) *Manager {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &Manager{
		nextAccountID: 1000,
		sessionTTL:    sessionTTL,
		now:           time.Now,
		sessions:      make(map[string]sessionRecord),
		accounts:      make(map[uint64]accountRecord),
		byName:        make(map[string]uint64),
	}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateCredentials(username, password string) error {
	if !usernamePattern.MatchString(strings.TrimSpace(username)) {
		return ErrInvalidUsername
	}
	// bcrypt ignores bytes past 72
	if len(password) < 6 || len(password) > 72 {
		return ErrInvalidPassword
	}
	return nil
}

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func (m *Manager) issueLocked(accountID uint64, now time.Time) Grant {
	token := mustToken()
	expires := now.Add(m.sessionTTL)
	m.sessions[token] = sessionRecord{AccountID: accountID, ExpiresAt: expires}
	return Grant{
		Identity:  Identity{AccountID: accountID, Username: m.accounts[accountID].Username},
		Token:     token,
		ExpiresAt: expires,
	}
}

func (m *Manager) Register(_ context.Context, username, password string) (Grant, error) {
	if err := validateCredentials(username, password); err != nil {
		return Grant{}, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return Grant{}, err
	}
	name := normalizeUsername(username)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byName[name]; taken {
		return Grant{}, ErrUsernameTaken
	}
	m.nextAccountID++
	id := m.nextAccountID
	now := m.now()
	m.accounts[id] = accountRecord{Username: name, PasswordHash: hash, LastLoginAt: now}
	m.byName[name] = id
	return m.issueLocked(id, now), nil
}

func (m *Manager) Login(_ context.Context, username, password string) (Grant, error) {
	name := normalizeUsername(username)
	if name == "" || password == "" {
		return Grant{}, ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byName[name]
	if !ok {
		return Grant{}, ErrInvalidCredentials
	}
	acct := m.accounts[id]
	if bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)) != nil {
		return Grant{}, ErrInvalidCredentials
	}
	now := m.now()
	acct.LastLoginAt = now
	m.accounts[id] = acct
	return m.issueLocked(id, now), nil
}

// ResolveSession validates token and slides its expiry forward.
func (m *Manager) ResolveSession(_ context.Context, token string) (Identity, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[token]
	if !ok {
		return Identity{}, false
	}
	now := m.now()
	if !now.Before(rec.ExpiresAt) {
		delete(m.sessions, token)
		return Identity{}, false
	}
	rec.ExpiresAt = now.Add(m.sessionTTL)
	m.sessions[token] = rec
	return Identity{AccountID: rec.AccountID, Username: m.accounts[rec.AccountID].Username}, true
}

func (m *Manager) Logout(_ context.Context, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
}

func (m *Manager) Close() error { return nil }

func mustToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
