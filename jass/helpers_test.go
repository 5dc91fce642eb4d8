package jass

import (
	"testing"

	"jass-lite/card"
)

// deckWith builds a DeckOverride where the given seats hold the listed cards
// and the rest of the catalog fills the remaining slots in catalog order.
func deckWith(t *testing.T, fixed map[Seat][]string) []card.Card {
	t.Helper()

	used := make(map[card.Card]bool, card.DeckSize)
	var hands [NumSeats][]card.Card
	for seat, strs := range fixed {
		if len(strs) > HandSize {
			t.Fatalf("seat %v has %d cards", seat, len(strs))
		}
		for _, s := range strs {
			c, err := card.Parse(s)
			if err != nil {
				t.Fatalf("parse %q: %v", s, err)
			}
			if used[c] {
				t.Fatalf("card %v listed twice", c)
			}
			used[c] = true
			hands[seat] = append(hands[seat], c)
		}
	}
	var rest []card.Card
	for _, c := range card.FullDeck() {
		if !used[c] {
			rest = append(rest, c)
		}
	}
	for seat := range hands {
		for len(hands[seat]) < HandSize {
			hands[seat] = append(hands[seat], rest[0])
			rest = rest[1:]
		}
	}
	out := make([]card.Card, 0, card.DeckSize)
	for _, h := range hands {
		out = append(out, h...)
	}
	return out
}

func testPlayers() [NumSeats]Player {
	return [NumSeats]Player{
		{ID: 10001, Username: "anna"},
		{ID: 10002, Username: "beat"},
		{ID: 10003, Username: "chris"},
		{ID: 10004, Username: "dora"},
	}
}

func newTestMatch(t *testing.T, cfg Config) *Match {
	t.Helper()
	m, err := NewMatch("m_test", testPlayers(), cfg)
	if err != nil {
		t.Fatalf("NewMatch err: %v", err)
	}
	if _, err := m.StartRound(); err != nil {
		t.Fatalf("StartRound err: %v", err)
	}
	return m
}

func mustPlay(t *testing.T, m *Match, seat Seat, s string) *PlayOutcome {
	t.Helper()
	out, err := m.PlayCard(seat, card.MustParse(s))
	if err != nil {
		t.Fatalf("%v play %s err: %v", seat, s, err)
	}
	return out
}

func expectCode(t *testing.T, err error, want RejectCode) {
	t.Helper()
	code, ok := RejectCodeOf(err)
	if !ok {
		t.Fatalf("expected rule error %s, got %v", want, err)
	}
	if code != want {
		t.Fatalf("expected %s, got %s", want, code)
	}
}

// playOutRound plays the first legal card for whoever is on turn until the round ends.
func playOutRound(t *testing.T, m *Match) *PlayOutcome {
	t.Helper()
	var last *PlayOutcome
	for i := 0; i < NumSeats*HandSize; i++ {
		snap := m.Snapshot()
		seat := snap.ActionSeat
		legal := m.LegalCards(seat)
		if len(legal) == 0 {
			t.Fatalf("no legal cards for %v at play %d", seat, i)
		}
		out, err := m.PlayCard(seat, legal[0])
		if err != nil {
			t.Fatalf("play %d by %v err: %v", i, seat, err)
		}
		last = out
	}
	if last == nil || !last.RoundComplete {
		t.Fatalf("expected round to complete after 36 plays")
	}
	return last
}
