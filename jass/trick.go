package jass

import "jass-lite/card"

// Play is one card laid by one seat.
type Play struct {
	Seat Seat
	Card card.Card
}

type TrickState byte

const (
	TrickEmpty TrickState = iota
	TrickOnePlayed
	TrickTwoPlayed
	TrickThreePlayed
	TrickResolved
)

// Trick holds up to four plays starting at Leader. Once resolved it is never mutated.
type Trick struct {
	ID     uint64
	Leader Seat
	Plays  []Play
	Winner Seat
	Points int
}

func newTrick(id uint64, leader Seat) *Trick {
	return &Trick{
		ID:     id,
		Leader: leader,
		Plays:  make([]Play, 0, NumSeats),
		Winner: InvalidSeat,
	}
}

func (t *Trick) State() TrickState {
	if t.Winner != InvalidSeat {
		return TrickResolved
	}
	return TrickState(len(t.Plays))
}

func (t *Trick) Resolved() bool {
	return t.State() == TrickResolved
}

// LeadSuit is the suit of the first card, or SuitInvalid for an empty trick.
func (t *Trick) LeadSuit() card.Suit {
	if len(t.Plays) == 0 {
		return card.SuitInvalid
	}
	return t.Plays[0].Card.Suit()
}

// NextSeat is the seat expected to act: the leader for an empty trick, otherwise
// the seat after the last player. InvalidSeat once resolved.
func (t *Trick) NextSeat() Seat {
	if t.Resolved() || len(t.Plays) >= NumSeats {
		return InvalidSeat
	}
	if len(t.Plays) == 0 {
		return t.Leader
	}
	return t.Plays[len(t.Plays)-1].Seat.Next()
}

func (t *Trick) clone() *Trick {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Plays = append([]Play(nil), t.Plays...)
	return &cp
}

func (t *Trick) resolve(mode GameMode, trump card.Suit) {
	t.Winner = TrickWinner(t.Plays, mode, trump)
	t.Points = TrickPoints(t.Plays, mode, trump)
}
