package lobby

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"jass-lite/apps/server/internal/codec"
	"jass-lite/apps/server/internal/session"
	"jass-lite/jass"
)

type sink struct {
	mu     sync.Mutex
	frames map[uint64][]*codec.ServerEnvelope
}

func (s *sink) send(playerID uint64, data []byte) {
	env, err := codec.DecodeServer(data)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[playerID] = append(s.frames[playerID], env)
}

func (s *sink) has(playerID uint64, typ codec.MessageType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, env := range s.frames[playerID] {
		if env.Type == typ {
			return true
		}
	}
	return false
}

func binding(id uint64) session.Binding {
	return session.Binding{
		Player: jass.Player{ID: id, Username: fmt.Sprintf("player%d", id)},
		Token:  fmt.Sprintf("tok-%d", id),
	}
}

func newTestLobby() (*Lobby, *sink) {
	l := New(session.Config{Rules: jass.Config{MaxRounds: 1}}, nil)
	n := 0
	l.newID = func() string {
		n++
		return fmt.Sprintf("match_%d", n)
	}
	return l, &sink{frames: make(map[uint64][]*codec.ServerEnvelope)}
}

func TestSearchFormsMatchOfFour(t *testing.T) {
	l, out := newTestLobby()

	for id := uint64(1); id <= 3; id++ {
		n, s, err := l.Search(binding(id), out.send)
		if err != nil || s != nil || n != int(id) {
			t.Fatalf("search %d: n=%d s=%v err=%v", id, n, s, err)
		}
	}
	// searching twice keeps the position
	if n, _, _ := l.Search(binding(2), out.send); n != 3 {
		t.Fatalf("repeat search queue = %d", n)
	}

	n, s, err := l.Search(binding(4), out.send)
	if err != nil || s == nil {
		t.Fatalf("fourth search: s=%v err=%v", s, err)
	}
	if n != 0 || s.ID != "match_1" {
		t.Fatalf("queue=%d id=%s", n, s.ID)
	}
	for id := uint64(1); id <= 4; id++ {
		if l.SessionFor(id) != s {
			t.Fatalf("player %d not mapped to the session", id)
		}
		if !out.has(id, codec.TypeGameFound) {
			t.Fatalf("player %d got no GameFound", id)
		}
	}
	players := s.Players()
	if players[0].ID != 1 || players[3].ID != 4 {
		t.Fatalf("seating order = %+v", players)
	}

	if _, _, err := l.Search(binding(1), out.send); !errors.Is(err, ErrAlreadyInMatch) {
		t.Fatalf("seated player search: got %v", err)
	}
}

func TestCancelRemovesFromQueue(t *testing.T) {
	l, out := newTestLobby()
	l.Search(binding(1), out.send)
	l.Search(binding(2), out.send)

	if !l.Cancel(1) {
		t.Fatalf("cancel of queued player returned false")
	}
	if l.Cancel(1) {
		t.Fatalf("second cancel returned true")
	}
	if l.QueueLength() != 1 {
		t.Fatalf("queue = %d", l.QueueLength())
	}
}

func TestLeaveAbortsMatchAndUnregisters(t *testing.T) {
	l, out := newTestLobby()
	var s *session.Session
	for id := uint64(1); id <= 4; id++ {
		_, formed, err := l.Search(binding(id), out.send)
		if err != nil {
			t.Fatalf("search %d: %v", id, err)
		}
		if formed != nil {
			s = formed
		}
	}

	l.Leave(2)
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not stop")
	}
	deadline := time.Now().Add(2 * time.Second)
	for l.SessionFor(1) != nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if l.SessionFor(1) != nil || l.GetSession(s.ID) != nil {
		t.Fatalf("closed session still registered")
	}
	if !out.has(1, codec.TypeMatchAborted) || out.has(2, codec.TypeMatchAborted) {
		t.Fatalf("abort notification mismatch")
	}

	// players can search again once the match is gone
	if _, _, err := l.Search(binding(1), out.send); err != nil {
		t.Fatalf("search after abort: %v", err)
	}
}

func TestShutdownClosesSessions(t *testing.T) {
	l, out := newTestLobby()
	for id := uint64(1); id <= 4; id++ {
		l.Search(binding(id), out.send)
	}
	if len(l.ListSessions()) != 1 {
		t.Fatalf("sessions = %v", l.ListSessions())
	}
	l.Shutdown(2 * time.Second)
	deadline := time.Now().Add(2 * time.Second)
	for len(l.ListSessions()) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(l.ListSessions()) != 0 {
		t.Fatalf("sessions after shutdown = %v", l.ListSessions())
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("JASS_TARGET_SCORE", "2500")
	t.Setenv("JASS_MAX_ROUNDS", "12")
	t.Setenv("JASS_NEXT_ROUND_DELAY", "750ms")
	cfg := ConfigFromEnv()
	if cfg.Rules.TargetScore != 2500 || cfg.Rules.MaxRounds != 12 || cfg.NextRoundDelay != 750*time.Millisecond {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("JASS_TARGET_SCORE", "")
	t.Setenv("JASS_NEXT_ROUND_DELAY", "soon")
	cfg = ConfigFromEnv()
	if cfg.Rules.TargetScore != defaultTargetScore || cfg.NextRoundDelay != session.DefaultNextRoundDelay {
		t.Fatalf("defaults = %+v", cfg)
	}
}
