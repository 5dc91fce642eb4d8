package session

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"jass-lite/apps/server/internal/ledger"
	"jass-lite/card"
	"jass-lite/jass"
)

var ErrSessionClosed = errors.New("session closed")

const (
	DefaultNextRoundDelay = 3 * time.Second

	tickInterval   = 100 * time.Millisecond
	eventQueueSize = 64
)

// Session owns one match. Every inbound action is applied by a single actor
// goroutine, one at a time, including the messages it produces.
type Session struct {
	ID  string
	cfg Config

	mu       sync.RWMutex
	match    *jass.Match
	seats    [jass.NumSeats]Binding
	started  bool
	closed   bool
	stopOnce sync.Once

	events chan Event
	done   chan struct{}

	serverSeq   uint64
	nextRoundAt time.Time

	// Per-seat correlation state for duplicate suppression.
	lastRequest [jass.NumSeats]uint64
	lastReply   [jass.NumSeats][]byte

	send       Sender
	recorder   ledger.Recorder
	closeHooks []CloseHook
	closeInfo  CloseInfo
}

type Config struct {
	Rules jass.Config
	// NextRoundDelay is the pause between a round summary and the next deal.
	NextRoundDelay time.Duration
}

// Binding ties a seat to an authenticated player and the session token they joined with.
type Binding struct {
	Player jass.Player
	Token  string
}

// Sender delivers an encoded frame to a player. It must not block.
type Sender func(playerID uint64, data []byte)

type EventType int

const (
	EventStart EventType = iota
	EventChooseGameMode
	EventPlayCard
	EventConnLost
	EventClose
)

type Event struct {
	Type      EventType
	RequestID uint64
	PlayerID  uint64
	Token     string
	Mode      jass.GameMode
	Trump     card.Suit
	Card      card.Card
	Reason    string
	Timestamp time.Time
	Response  chan error
}

// CloseInfo is passed to close hooks once the actor has stopped.
type CloseInfo struct {
	MatchID string
	Players [jass.NumSeats]jass.Player
	Aborted bool
	Reason  string
}

type CloseHook func(info CloseInfo)

func New(id string, seats [jass.NumSeats]Binding, cfg Config, send Sender, recorder ledger.Recorder) (*Session, error) {
	var players [jass.NumSeats]jass.Player
	for seat, b := range seats {
		players[seat] = b.Player
	}
	match, err := jass.NewMatch(id, players, cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("new match: %w", err)
	}
	if cfg.NextRoundDelay < 0 {
		cfg.NextRoundDelay = 0
	}
	if send == nil {
		send = func(uint64, []byte) {}
	}
	if recorder == nil {
		recorder = ledger.Discard
	}

	s := &Session{
		ID:       id,
		cfg:      cfg,
		match:    match,
		seats:    seats,
		events:   make(chan Event, eventQueueSize),
		done:     make(chan struct{}),
		send:     send,
		recorder: recorder,
	}
	go s.run()

	log.Printf("[Session %s] Created (target=%d, maxRounds=%d)", id, cfg.Rules.TargetScore, cfg.Rules.MaxRounds)
	return s, nil
}

func (s *Session) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-s.events:
			err := s.handleEvent(event)
			if event.Response != nil {
				event.Response <- err
			}
		case <-ticker.C:
			s.tick()
		}
		if s.IsClosed() {
			s.finish()
			return
		}
	}
}

func (s *Session) finish() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.mu.RLock()
	hooks := append([]CloseHook(nil), s.closeHooks...)
	info := s.closeInfo
	s.mu.RUnlock()
	for _, hook := range hooks {
		hook(info)
	}
	log.Printf("[Session %s] Actor stopped (aborted=%v reason=%s)", s.ID, info.Aborted, info.Reason)
}

func (s *Session) handleEvent(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	switch e.Type {
	case EventStart:
		return s.handleStart()
	case EventChooseGameMode:
		return s.handleChooseGameMode(e)
	case EventPlayCard:
		return s.handlePlayCard(e)
	case EventConnLost:
		return s.handleConnLost(e.PlayerID)
	case EventClose:
		s.abortLocked(e.Reason, "", jass.InvalidSeat)
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

func (s *Session) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.nextRoundAt.IsZero() {
		return
	}
	if time.Now().Before(s.nextRoundAt) {
		return
	}
	if err := s.startRoundLocked(); err != nil {
		log.Printf("[Session %s] delayed round start failed: %v", s.ID, err)
	}
}

// SubmitEvent hands e to the actor and waits until it has been applied.
func (s *Session) SubmitEvent(e Event) error {
	e.Timestamp = time.Now()
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	if s.IsClosed() {
		return ErrSessionClosed
	}

	select {
	case s.events <- e:
	case <-s.done:
		return ErrSessionClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-s.done:
		// the final event is answered before done closes
		select {
		case err := <-e.Response:
			return err
		default:
			return ErrSessionClosed
		}
	}
}

func (s *Session) Start() error {
	return s.SubmitEvent(Event{Type: EventStart})
}

func (s *Session) ChooseGameMode(requestID, playerID uint64, token string, mode jass.GameMode, trump card.Suit) error {
	return s.SubmitEvent(Event{
		Type:      EventChooseGameMode,
		RequestID: requestID,
		PlayerID:  playerID,
		Token:     token,
		Mode:      mode,
		Trump:     trump,
	})
}

func (s *Session) PlayCard(requestID, playerID uint64, token string, c card.Card) error {
	return s.SubmitEvent(Event{
		Type:      EventPlayCard,
		RequestID: requestID,
		PlayerID:  playerID,
		Token:     token,
		Card:      c,
	})
}

// PlayerLeft tears the match down; the other seats get MatchAborted.
func (s *Session) PlayerLeft(playerID uint64) error {
	return s.SubmitEvent(Event{Type: EventConnLost, PlayerID: playerID})
}

func (s *Session) Close(reason string) error {
	err := s.SubmitEvent(Event{Type: EventClose, Reason: reason})
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

func (s *Session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Done is closed once the actor has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Snapshot() jass.Snapshot {
	return s.match.Snapshot()
}

func (s *Session) Players() [jass.NumSeats]jass.Player {
	return s.match.Players()
}

// AddCloseHook registers a callback run on the actor goroutine after it stops.
func (s *Session) AddCloseHook(hook CloseHook) {
	if hook == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeHooks = append(s.closeHooks, hook)
}

func (s *Session) seatOf(playerID uint64) (jass.Seat, bool) {
	if playerID == 0 {
		return jass.InvalidSeat, false
	}
	return s.match.SeatOf(playerID)
}

func (s *Session) tokenMatches(seat jass.Seat, token string) bool {
	bound := s.seats[seat].Token
	if bound == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(bound), []byte(token)) == 1
}

// duplicateLocked reports whether requestID was already seen for seat. A repeat
// of the last request gets the cached reply again; an older one is dropped.
func (s *Session) duplicateLocked(seat jass.Seat, requestID uint64) bool {
	if requestID == 0 {
		return false
	}
	last := s.lastRequest[seat]
	switch {
	case requestID == last:
		if data := s.lastReply[seat]; data != nil {
			s.send(s.seats[seat].Player.ID, data)
		}
		log.Printf("[Session %s] seat %d repeated request %d", s.ID, seat+1, requestID)
		return true
	case requestID < last:
		log.Printf("[Session %s] seat %d sent stale request %d (last %d)", s.ID, seat+1, requestID, last)
		return true
	}
	s.lastRequest[seat] = requestID
	s.lastReply[seat] = nil
	return false
}

func (s *Session) username(seat jass.Seat) string {
	if !seat.Valid() {
		return ""
	}
	return s.seats[seat].Player.Username
}

func (s *Session) closeLocked(aborted bool, reason string) {
	s.closed = true
	s.nextRoundAt = time.Time{}
	s.closeInfo = CloseInfo{
		MatchID: s.ID,
		Players: s.match.Players(),
		Aborted: aborted,
		Reason:  reason,
	}
}
