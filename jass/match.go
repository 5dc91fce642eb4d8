package jass

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"jass-lite/card"
)

// Match drives rounds between two fixed teams until an end condition.
type Match struct {
	cfg Config
	rng *rand.Rand

	mu sync.Mutex

	id      string
	players [NumSeats]Player
	phase   Phase

	round   *Round
	results []RoundResult
	totals  [2]int
}

// RoundStart is what the coordinator needs to announce a freshly dealt round.
type RoundStart struct {
	RoundID string
	Number  int
	Chooser Seat
	Hands   [NumSeats]card.CardList
}

func NewMatch(id string, players [NumSeats]Player, cfg Config) (*Match, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("empty match id")
	}
	seenIDs := make(map[uint64]bool, NumSeats)
	seenNames := make(map[string]bool, NumSeats)
	for seat, p := range players {
		name := strings.ToLower(strings.TrimSpace(p.Username))
		if p.ID == 0 || name == "" {
			return nil, fmt.Errorf("seat %d has no authenticated player", seat+1)
		}
		if seenIDs[p.ID] || seenNames[name] {
			return nil, ErrDuplicatePlayer
		}
		seenIDs[p.ID] = true
		seenNames[name] = true
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Match{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		id:      id,
		players: players,
		phase:   PhaseWaiting,
	}, nil
}

func (m *Match) ID() string { return m.id }

func (m *Match) Players() [NumSeats]Player { return m.players }

func (m *Match) Player(seat Seat) (Player, bool) {
	if !seat.Valid() {
		return Player{}, false
	}
	return m.players[seat], true
}

// SeatOf resolves the seat bound to playerID.
func (m *Match) SeatOf(playerID uint64) (Seat, bool) {
	for seat, p := range m.players {
		if p.ID == playerID {
			return Seat(seat), true
		}
	}
	return InvalidSeat, false
}

// StartRound deals a new round. The chooser rotates one seat per round, starting at seat one.
func (m *Match) StartRound() (*RoundStart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseMatchEnd:
		return nil, ErrMatchEnded
	case PhaseWaiting, PhaseRoundEnd:
	default:
		return nil, ErrWrongPhase
	}

	hands, err := Deal(m.rng, m.cfg.DeckOverride)
	if err != nil {
		return nil, err
	}
	number := len(m.results) + 1
	chooser := Seat((number - 1) % NumSeats)
	m.round = newRound(fmt.Sprintf("%s_r%d", m.id, number), number, chooser, hands)
	m.phase = PhaseChooseMode

	return &RoundStart{
		RoundID: m.round.ID,
		Number:  number,
		Chooser: chooser,
		Hands:   hands,
	}, nil
}

func (m *Match) ChooseGameMode(seat Seat, mode GameMode, trump card.Suit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !seat.Valid() {
		return ErrUnknownPlayer
	}
	if m.phase == PhaseMatchEnd {
		return ErrMatchEnded
	}
	if m.round == nil {
		return ErrWrongPhase
	}
	if seat != m.round.Chooser {
		return ErrNotAuthorized
	}
	if m.phase != PhaseChooseMode {
		return ErrWrongPhase
	}
	if err := m.round.ChooseGameMode(seat, mode, trump); err != nil {
		return err
	}
	m.phase = PhasePlaying
	return nil
}

func (m *Match) PlayCard(seat Seat, c card.Card) (*PlayOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !seat.Valid() {
		return nil, ErrUnknownPlayer
	}
	if m.phase == PhaseMatchEnd {
		return nil, ErrMatchEnded
	}
	if m.phase != PhasePlaying || m.round == nil {
		return nil, ErrWrongPhase
	}

	out, err := m.round.Play(seat, c)
	if err != nil {
		return nil, err
	}
	if !out.RoundComplete {
		return out, nil
	}

	res := m.round.result()
	if res.Points[TeamOne]+res.Points[TeamTwo] != RoundPointPool {
		return nil, ErrInvalidState(fmt.Sprintf("round points %v do not sum to %d", res.Points, RoundPointPool))
	}
	for team := range m.totals {
		m.totals[team] += res.Points[team] + res.Bonus[team]
	}
	res.Totals = m.totals
	m.results = append(m.results, *res)
	out.Result = res

	if m.matchOverLocked() {
		m.phase = PhaseMatchEnd
		out.MatchOver = true
	} else {
		m.phase = PhaseRoundEnd
	}
	return out, nil
}

func (m *Match) matchOverLocked() bool {
	if m.cfg.MaxRounds > 0 && len(m.results) >= m.cfg.MaxRounds {
		return true
	}
	if m.cfg.TargetScore > 0 {
		for _, total := range m.totals {
			if total >= m.cfg.TargetScore {
				return true
			}
		}
	}
	return false
}

// End closes the match regardless of its phase.
func (m *Match) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = PhaseMatchEnd
}

func (m *Match) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Match) Totals() [2]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals
}

// Winner is the team with the higher total, TeamNone on a tie.
func (m *Match) Winner() Team {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.totals[TeamOne] > m.totals[TeamTwo]:
		return TeamOne
	case m.totals[TeamTwo] > m.totals[TeamOne]:
		return TeamTwo
	}
	return TeamNone
}

func (m *Match) Results() []RoundResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RoundResult(nil), m.results...)
}

func (m *Match) Hand(seat Seat) []card.Card {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.round == nil {
		return nil
	}
	return m.round.Hand(seat)
}

func (m *Match) LegalCards(seat Seat) []card.Card {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.round == nil || m.phase != PhasePlaying {
		return nil
	}
	return m.round.LegalCards(seat)
}
