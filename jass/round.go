package jass

import "jass-lite/card"

// Round is one deal played out over nine tricks under a single game mode.
type Round struct {
	ID      string
	Number  int
	Chooser Seat
	Mode    GameMode
	Trump   card.Suit

	hands   [NumSeats]card.CardList
	tricks  []*Trick
	current *Trick
	points  [2]int
}

// RoundResult is the closed score of a finished round.
type RoundResult struct {
	RoundID string
	Number  int
	Chooser Seat
	Mode    GameMode
	Trump   card.Suit
	// Points sums to RoundPointPool.
	Points [2]int
	// Matsch is the team that took every trick, TeamNone otherwise.
	Matsch Team
	Bonus  [2]int
	// Totals are the cumulative match totals after this round.
	Totals [2]int
}

// PlayOutcome describes an accepted play and the transitions it caused.
type PlayOutcome struct {
	Seat          Seat
	Card          card.Card
	Trick         *Trick
	TrickResolved bool
	NextSeat      Seat
	RoundComplete bool
	Result        *RoundResult
	MatchOver     bool
}

func newRound(id string, number int, chooser Seat, hands [NumSeats]card.CardList) *Round {
	r := &Round{
		ID:      id,
		Number:  number,
		Chooser: chooser,
		Trump:   card.SuitInvalid,
	}
	for seat := range hands {
		r.hands[seat] = hands[seat].Clone()
	}
	return r
}

func (r *Round) trickID(idx int) uint64 {
	return uint64((r.Number-1)*HandSize + idx + 1)
}

// ChooseGameMode fixes mode and trump and opens the first trick, led by the chooser.
func (r *Round) ChooseGameMode(seat Seat, mode GameMode, trump card.Suit) error {
	if seat != r.Chooser {
		return ErrNotAuthorized
	}
	if r.Mode != ModeNone {
		return ErrWrongPhase
	}
	if !mode.Valid() {
		return ErrInvalidGameMode
	}
	if mode == ModeTrumpf && !trump.Valid() {
		return ErrMissingTrumpSuit
	}
	if mode != ModeTrumpf {
		trump = card.SuitInvalid
	}
	r.Mode = mode
	r.Trump = trump
	r.current = newTrick(r.trickID(0), r.Chooser)
	return nil
}

// Play validates and applies seat playing c into the current trick.
func (r *Round) Play(seat Seat, c card.Card) (*PlayOutcome, error) {
	if r.Mode == ModeNone || r.IsComplete() {
		return nil, ErrWrongPhase
	}
	if r.current == nil || r.current.Resolved() {
		return nil, ErrInvalidState("play on a resolved trick")
	}
	if seat != r.current.NextSeat() {
		return nil, ErrNotYourTurn
	}
	hand := r.hands[seat]
	if !hand.Contains(c) {
		return nil, ErrCardNotInHand
	}
	if err := checkFollowSuit(hand, c, r.current, r.Mode, r.Trump); err != nil {
		return nil, err
	}

	r.hands[seat].Remove(c)
	r.current.Plays = append(r.current.Plays, Play{Seat: seat, Card: c})

	out := &PlayOutcome{Seat: seat, Card: c}
	if len(r.current.Plays) < NumSeats {
		out.Trick = r.current.clone()
		out.NextSeat = r.current.NextSeat()
		return out, nil
	}

	trick := r.current
	trick.resolve(r.Mode, r.Trump)
	r.tricks = append(r.tricks, trick)
	if r.IsComplete() {
		trick.Points += LastTrickBonus
	}
	r.points[trick.Winner.Team()] += trick.Points

	out.Trick = trick.clone()
	out.TrickResolved = true
	if r.IsComplete() {
		if len(r.tricks) != HandSize {
			return nil, ErrInvalidState("round ended with wrong trick count")
		}
		r.current = nil
		out.RoundComplete = true
		out.NextSeat = InvalidSeat
		return out, nil
	}
	r.current = newTrick(r.trickID(len(r.tricks)), trick.Winner)
	out.NextSeat = trick.Winner
	return out, nil
}

// IsComplete is true once every hand is empty.
func (r *Round) IsComplete() bool {
	for _, h := range r.hands {
		if len(h) > 0 {
			return false
		}
	}
	return true
}

func (r *Round) result() *RoundResult {
	res := &RoundResult{
		RoundID: r.ID,
		Number:  r.Number,
		Chooser: r.Chooser,
		Mode:    r.Mode,
		Trump:   r.Trump,
		Points:  r.points,
		Matsch:  TeamNone,
	}
	won := [2]int{}
	for _, t := range r.tricks {
		won[t.Winner.Team()]++
	}
	for _, team := range []Team{TeamOne, TeamTwo} {
		if won[team] == HandSize {
			res.Matsch = team
			res.Bonus[team] = MatschBonus
		}
	}
	return res
}

func (r *Round) Hand(seat Seat) []card.Card {
	if !seat.Valid() {
		return nil
	}
	return r.hands[seat].Clone()
}

func (r *Round) Points() [2]int {
	return r.points
}

// Turn is the seat expected to act next.
func (r *Round) Turn() Seat {
	if r.current == nil {
		return InvalidSeat
	}
	return r.current.NextSeat()
}

// LegalCards lists the cards seat may play now; nil when it is not seat's turn.
func (r *Round) LegalCards(seat Seat) []card.Card {
	if r.current == nil || seat != r.current.NextSeat() {
		return nil
	}
	return legalCards(r.hands[seat], r.current, r.Mode, r.Trump)
}
