package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"jass-lite/apps/server/internal/codec"
	"jass-lite/apps/server/internal/ledger"
	"jass-lite/card"
	"jass-lite/jass"
)

type outbox struct {
	mu     sync.Mutex
	frames map[uint64][]*codec.ServerEnvelope
	raw    map[uint64][][]byte
}

func newOutbox() *outbox {
	return &outbox{
		frames: make(map[uint64][]*codec.ServerEnvelope),
		raw:    make(map[uint64][][]byte),
	}
}

func (o *outbox) send(playerID uint64, data []byte) {
	env, err := codec.DecodeServer(data)
	if err != nil {
		panic(err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frames[playerID] = append(o.frames[playerID], env)
	o.raw[playerID] = append(o.raw[playerID], append([]byte(nil), data...))
}

func (o *outbox) count(playerID uint64) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.frames[playerID])
}

func (o *outbox) ofType(playerID uint64, typ codec.MessageType) []*codec.ServerEnvelope {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*codec.ServerEnvelope
	for _, env := range o.frames[playerID] {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func (o *outbox) last(playerID uint64) *codec.ServerEnvelope {
	o.mu.Lock()
	defer o.mu.Unlock()
	frames := o.frames[playerID]
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1]
}

func (o *outbox) lastRawOfType(playerID uint64, typ codec.MessageType) []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	frames := o.frames[playerID]
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Type == typ {
			return o.raw[playerID][i]
		}
	}
	return nil
}

func (o *outbox) lastRaw(playerID uint64) []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	raw := o.raw[playerID]
	if len(raw) == 0 {
		return nil
	}
	return raw[len(raw)-1]
}

// syncRecorder applies records immediately so tests can inspect them.
type syncRecorder struct {
	svc *ledger.MemoryService
}

func (r syncRecorder) RecordMatch(rec ledger.MatchRecord) {
	_ = r.svc.RecordMatch(context.Background(), rec)
}
func (r syncRecorder) RecordDeck(rec ledger.DeckRecord) {
	_ = r.svc.RecordDeck(context.Background(), rec)
}
func (r syncRecorder) RecordTrick(rec ledger.TrickRecord) {
	_ = r.svc.RecordTrick(context.Background(), rec)
}
func (r syncRecorder) RecordRound(rec ledger.RoundRecord) {
	_ = r.svc.RecordRound(context.Background(), rec)
}
func (r syncRecorder) RecordMatchEnd(rec ledger.MatchEndRecord) {
	_ = r.svc.RecordMatchEnd(context.Background(), rec)
}
func (r syncRecorder) AppendEvent(rec ledger.EventRecord) {
	_ = r.svc.AppendEvent(context.Background(), rec)
}

type harness struct {
	s     *Session
	out   *outbox
	store *ledger.MemoryService
	seats [jass.NumSeats]Binding
	reqID uint64
}

func testBindings() [jass.NumSeats]Binding {
	return [jass.NumSeats]Binding{
		{Player: jass.Player{ID: 101, Username: "anna"}, Token: "tok-anna"},
		{Player: jass.Player{ID: 102, Username: "beat"}, Token: "tok-beat"},
		{Player: jass.Player{ID: 103, Username: "chris"}, Token: "tok-chris"},
		{Player: jass.Player{ID: 104, Username: "dora"}, Token: "tok-dora"},
	}
}

// newHarness deals the catalog in order: seat one holds every heart, seat two
// every diamond, seat three every spade and seat four every club.
func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	if cfg.Rules.DeckOverride == nil {
		cfg.Rules.DeckOverride = card.FullDeck()
	}
	h := &harness{
		out:   newOutbox(),
		store: ledger.NewMemoryService(10),
		seats: testBindings(),
	}
	s, err := New("m_test", h.seats, cfg, h.out.send, syncRecorder{svc: h.store})
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	t.Cleanup(func() { _ = s.Close("test done") })
	h.s = s
	if err := s.Start(); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	return h
}

func (h *harness) id(seat jass.Seat) uint64 { return h.seats[seat].Player.ID }

func (h *harness) nextID() uint64 {
	h.reqID++
	return h.reqID
}

func (h *harness) choose(seat jass.Seat, mode jass.GameMode, trump card.Suit) error {
	return h.s.ChooseGameMode(h.nextID(), h.id(seat), h.seats[seat].Token, mode, trump)
}

func (h *harness) play(seat jass.Seat, c card.Card) error {
	return h.s.PlayCard(h.nextID(), h.id(seat), h.seats[seat].Token, c)
}

// playOutRound plays the first legal card for whoever is on turn until the round closes.
func (h *harness) playOutRound(t *testing.T) {
	t.Helper()
	for h.s.Snapshot().Phase == jass.PhasePlaying {
		seat := h.s.Snapshot().ActionSeat
		legal := h.s.match.LegalCards(seat)
		if len(legal) == 0 {
			t.Fatalf("seat %v has no legal card", seat)
		}
		if err := h.play(seat, legal[0]); err != nil {
			t.Fatalf("seat %v play %v err: %v", seat, legal[0], err)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func decode[T any](t *testing.T, env *codec.ServerEnvelope) T {
	t.Helper()
	var v T
	if err := env.DecodePayload(&v); err != nil {
		t.Fatalf("decode %s: %v", env.Type, err)
	}
	return v
}
