package jass

import "jass-lite/card"

type PlayerSnapshot struct {
	ID        uint64
	Username  string
	Seat      Seat
	Team      Team
	HandCards []card.Card
}

type TrickSnapshot struct {
	ID     uint64
	Leader Seat
	Plays  []Play
	Winner Seat
}

type Snapshot struct {
	MatchID string
	Phase   Phase

	RoundID     string
	RoundNumber int
	Chooser     Seat
	Mode        GameMode
	Trump       card.Suit
	ActionSeat  Seat

	// Trick is the open trick, or the last resolved one between tricks.
	Trick *TrickSnapshot
	// OpenTrickID is the id of the trick awaiting plays, 0 if none.
	OpenTrickID  uint64
	TricksPlayed int
	RoundPoints  [2]int
	Totals       [2]int

	Players []PlayerSnapshot
}

func (m *Match) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		MatchID:    m.id,
		Phase:      m.phase,
		Chooser:    InvalidSeat,
		ActionSeat: InvalidSeat,
		Trump:      card.SuitInvalid,
		Totals:     m.totals,
	}
	r := m.round
	if r != nil {
		s.RoundID = r.ID
		s.RoundNumber = r.Number
		s.Chooser = r.Chooser
		s.Mode = r.Mode
		s.Trump = r.Trump
		s.RoundPoints = r.points
		s.TricksPlayed = len(r.tricks)
		if m.phase == PhaseChooseMode {
			s.ActionSeat = r.Chooser
		} else {
			s.ActionSeat = r.Turn()
		}
		if r.current != nil {
			s.OpenTrickID = r.current.ID
		}
		t := r.current
		if (t == nil || len(t.Plays) == 0) && len(r.tricks) > 0 {
			t = r.tricks[len(r.tricks)-1]
		}
		if t != nil {
			s.Trick = &TrickSnapshot{
				ID:     t.ID,
				Leader: t.Leader,
				Plays:  append([]Play(nil), t.Plays...),
				Winner: t.Winner,
			}
		}
	}

	for seat, p := range m.players {
		ps := PlayerSnapshot{
			ID:       p.ID,
			Username: p.Username,
			Seat:     Seat(seat),
			Team:     Seat(seat).Team(),
		}
		if r != nil {
			ps.HandCards = r.Hand(Seat(seat))
		}
		s.Players = append(s.Players, ps)
	}
	return s
}
