package lobby

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"jass-lite/apps/server/internal/dbutil"
	"jass-lite/apps/server/internal/ledger"
	"jass-lite/apps/server/internal/session"
	"jass-lite/jass"

	"github.com/google/uuid"
)

const (
	defaultTargetScore = 1000
	playersPerMatch    = jass.NumSeats
)

var ErrAlreadyInMatch = errors.New("player already in a match")

// Lobby queues searching players and owns the registry of live sessions.
type Lobby struct {
	mu       sync.RWMutex
	queue    []session.Binding
	sessions map[string]*session.Session
	byPlayer map[uint64]*session.Session

	cfg      session.Config
	recorder ledger.Recorder
	newID    func() string
}

// ConfigFromEnv reads JASS_TARGET_SCORE, JASS_MAX_ROUNDS and JASS_NEXT_ROUND_DELAY.
func ConfigFromEnv() session.Config {
	return session.Config{
		Rules: jass.Config{
			TargetScore: dbutil.EnvInt("JASS_TARGET_SCORE", defaultTargetScore),
			MaxRounds:   dbutil.EnvInt("JASS_MAX_ROUNDS", 0),
		},
		NextRoundDelay: dbutil.EnvDuration("JASS_NEXT_ROUND_DELAY", session.DefaultNextRoundDelay),
	}
}

func New(cfg session.Config, recorder ledger.Recorder) *Lobby {
	if recorder == nil {
		recorder = ledger.Discard
	}
	return &Lobby{
		sessions: make(map[string]*session.Session),
		byPlayer: make(map[uint64]*session.Session),
		cfg:      cfg,
		recorder: recorder,
		newID:    uuid.NewString,
	}
}

// Search queues b. Once four players are waiting the first four are seated in
// arrival order and their session is started. It returns the queue length
// after the call and the new session, if one was formed.
func (l *Lobby) Search(b session.Binding, send session.Sender) (int, *session.Session, error) {
	l.mu.Lock()
	if _, busy := l.byPlayer[b.Player.ID]; busy {
		l.mu.Unlock()
		return 0, nil, ErrAlreadyInMatch
	}
	for i, q := range l.queue {
		if q.Player.ID == b.Player.ID {
			// refresh the token, keep the position
			l.queue[i] = b
			n := len(l.queue)
			l.mu.Unlock()
			return n, nil, nil
		}
	}
	l.queue = append(l.queue, b)
	if len(l.queue) < playersPerMatch {
		n := len(l.queue)
		l.mu.Unlock()
		log.Printf("[Lobby] Player %d (%s) searching, queue=%d", b.Player.ID, b.Player.Username, n)
		return n, nil, nil
	}

	var seats [jass.NumSeats]session.Binding
	copy(seats[:], l.queue[:playersPerMatch])
	l.queue = append([]session.Binding(nil), l.queue[playersPerMatch:]...)

	id := l.newID()
	s, err := session.New(id, seats, l.cfg, send, l.recorder)
	if err != nil {
		l.queue = append(seats[:], l.queue...)
		l.mu.Unlock()
		return 0, nil, fmt.Errorf("create session: %w", err)
	}
	s.AddCloseHook(l.unregister)
	l.sessions[id] = s
	for _, seat := range seats {
		l.byPlayer[seat.Player.ID] = s
	}
	n := len(l.queue)
	l.mu.Unlock()

	log.Printf("[Lobby] Match %s formed: %s, %s, %s, %s", id,
		seats[0].Player.Username, seats[1].Player.Username, seats[2].Player.Username, seats[3].Player.Username)
	if err := s.Start(); err != nil {
		return n, nil, fmt.Errorf("start session: %w", err)
	}
	return n, s, nil
}

// Cancel removes playerID from the queue. It reports whether the player was queued.
func (l *Lobby) Cancel(playerID uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, q := range l.queue {
		if q.Player.ID == playerID {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			log.Printf("[Lobby] Player %d left the queue, queue=%d", playerID, len(l.queue))
			return true
		}
	}
	return false
}

// Leave drops playerID from the queue and tears down any match they are seated in.
func (l *Lobby) Leave(playerID uint64) {
	l.Cancel(playerID)
	if s := l.SessionFor(playerID); s != nil {
		if err := s.PlayerLeft(playerID); err != nil && !errors.Is(err, session.ErrSessionClosed) {
			log.Printf("[Lobby] Player %d leave match %s: %v", playerID, s.ID, err)
		}
	}
}

// SessionFor returns the live session playerID is seated in, or nil.
func (l *Lobby) SessionFor(playerID uint64) *session.Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byPlayer[playerID]
}

func (l *Lobby) GetSession(id string) *session.Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessions[id]
}

func (l *Lobby) QueueLength() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.queue)
}

// ListSessions returns the ids of all live sessions.
func (l *Lobby) ListSessions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.sessions))
	for id := range l.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown closes every live session and waits for their actors to stop.
func (l *Lobby) Shutdown(timeout time.Duration) {
	l.mu.RLock()
	live := make([]*session.Session, 0, len(l.sessions))
	for _, s := range l.sessions {
		live = append(live, s)
	}
	l.mu.RUnlock()

	deadline := time.After(timeout)
	for _, s := range live {
		if err := s.Close("server_shutdown"); err != nil {
			log.Printf("[Lobby] Close match %s: %v", s.ID, err)
		}
		select {
		case <-s.Done():
		case <-deadline:
			log.Printf("[Lobby] Shutdown timed out")
			return
		}
	}
}

func (l *Lobby) unregister(info session.CloseInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.sessions[info.MatchID]
	delete(l.sessions, info.MatchID)
	for _, p := range info.Players {
		if l.byPlayer[p.ID] == s {
			delete(l.byPlayer, p.ID)
		}
	}
	log.Printf("[Lobby] Match %s closed (aborted=%v reason=%s), live=%d", info.MatchID, info.Aborted, info.Reason, len(l.sessions))
}
