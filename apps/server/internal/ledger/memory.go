package ledger

import (
	"context"
	"encoding/base64"
	"sort"
	"strings"
	"sync"
)

// MemoryService keeps history in process memory. Used with AUTH_MODE=memory and in tests.
type MemoryService struct {
	mu          sync.Mutex
	recentLimit int

	matches map[string]*memMatch
	order   []string
}

type memMatch struct {
	rec    MatchRecord
	end    *MatchEndRecord
	decks  map[string]DeckRecord
	tricks []TrickRecord
	rounds []RoundRecord
	events map[uint64]EventRecord
}

func NewMemoryService(recentLimit int) *MemoryService {
	return &MemoryService{
		recentLimit: recentLimit,
		matches:     make(map[string]*memMatch),
	}
}

func (s *MemoryService) Close() error { return nil }

func (s *MemoryService) matchLocked(id string) (*memMatch, error) {
	m, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *MemoryService) RecordMatch(_ context.Context, rec MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.matches[rec.MatchID]; exists {
		return nil
	}
	s.matches[rec.MatchID] = &memMatch{
		rec:    rec,
		decks:  make(map[string]DeckRecord),
		events: make(map[uint64]EventRecord),
	}
	s.order = append(s.order, rec.MatchID)
	return nil
}

func (s *MemoryService) RecordDeck(_ context.Context, rec DeckRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.matchLocked(rec.MatchID)
	if err != nil {
		return err
	}
	m.decks[rec.RoundID] = rec
	return nil
}

func (s *MemoryService) RecordTrick(_ context.Context, rec TrickRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.matchLocked(rec.MatchID)
	if err != nil {
		return err
	}
	m.tricks = append(m.tricks, rec)
	return nil
}

func (s *MemoryService) RecordRound(_ context.Context, rec RoundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.matchLocked(rec.MatchID)
	if err != nil {
		return err
	}
	m.rounds = append(m.rounds, rec)
	return nil
}

func (s *MemoryService) RecordMatchEnd(_ context.Context, rec MatchEndRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.matchLocked(rec.MatchID)
	if err != nil {
		return err
	}
	if m.end != nil {
		return ErrNotFound
	}
	m.end = &rec
	return nil
}

func (s *MemoryService) AppendEvent(_ context.Context, rec EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.matchLocked(rec.MatchID)
	if err != nil {
		return err
	}
	if _, dup := m.events[rec.Seq]; !dup {
		m.events[rec.Seq] = rec
	}
	return nil
}

func (s *MemoryService) ListRecent(_ context.Context, accountID uint64, limit int) ([]HistoryItem, error) {
	limit = clampLimit(limit, s.recentLimit)

	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]HistoryItem, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(items) < limit; i-- {
		m := s.matches[s.order[i]]
		seat := -1
		for _, p := range m.rec.Players {
			if p.AccountID == accountID {
				seat = p.Seat
			}
		}
		if seat < 0 {
			continue
		}
		item := HistoryItem{
			MatchID:   m.rec.MatchID,
			StartedAt: m.rec.StartedAt,
			Seat:      seat,
			Team:      m.rec.Players[seat].Team,
			Players:   append([]PlayerRef(nil), m.rec.Players[:]...),
		}
		if m.end != nil {
			ended := m.end.EndedAt
			item.EndedAt = &ended
			item.Totals = m.end.Totals
			item.WinningTeam = m.end.WinningTeam
			item.Rounds = m.end.Rounds
			item.Aborted = m.end.Aborted
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *MemoryService) GetMatchEvents(_ context.Context, accountID uint64, matchID string) ([]EventItem, error) {
	if strings.TrimSpace(matchID) == "" {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	member := false
	for _, p := range m.rec.Players {
		member = member || p.AccountID == accountID
	}
	if !member || len(m.events) == 0 {
		return nil, ErrNotFound
	}

	events := make([]EventItem, 0, len(m.events))
	for _, e := range m.events {
		item := EventItem{
			Seq:         e.Seq,
			EventType:   e.EventType,
			EnvelopeB64: base64.StdEncoding.EncodeToString(e.Envelope),
		}
		if e.ServerTsMs != 0 {
			ts := e.ServerTsMs
			item.ServerTsMs = &ts
		}
		events = append(events, item)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	return events, nil
}

// Rounds returns the recorded round results of a match, for tests and tools.
func (s *MemoryService) Rounds(matchID string) []RoundRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.matches[matchID]; ok {
		return append([]RoundRecord(nil), m.rounds...)
	}
	return nil
}

// Tricks returns the recorded tricks of a match.
func (s *MemoryService) Tricks(matchID string) []TrickRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.matches[matchID]; ok {
		return append([]TrickRecord(nil), m.tricks...)
	}
	return nil
}

// Deck returns the recorded deal of a round.
func (s *MemoryService) Deck(matchID, roundID string) (DeckRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.matches[matchID]; ok {
		d, found := m.decks[roundID]
		return d, found
	}
	return DeckRecord{}, false
}

// End returns the match end record, if any.
func (s *MemoryService) End(matchID string) (MatchEndRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.matches[matchID]; ok && m.end != nil {
		return *m.end, true
	}
	return MatchEndRecord{}, false
}
