package card

import (
	"fmt"
	"strings"
)

// Suit 花色. Ids match the persisted suit catalog (1:hearts .. 4:clubs).
type Suit byte

const (
	SuitInvalid Suit = iota
	Hearts
	Diamonds
	Spades
	Clubs
)

// Suits lists every playable suit in catalog order.
var Suits = []Suit{Hearts, Diamonds, Spades, Clubs}

func (s Suit) Valid() bool {
	return s >= Hearts && s <= Clubs
}

// Key is the lowercase catalog key used on the wire.
func (s Suit) Key() string {
	switch s {
	case Hearts:
		return "hearts"
	case Diamonds:
		return "diamonds"
	case Spades:
		return "spades"
	case Clubs:
		return "clubs"
	}
	return ""
}

func (s Suit) String() string {
	switch s {
	case Hearts:
		return "♥️"
	case Diamonds:
		return "♦️"
	case Spades:
		return "♠️"
	case Clubs:
		return "♣️"
	}
	return "?"
}

// ParseSuit accepts a catalog key ("hearts") or its first letter ("h").
func ParseSuit(raw string) (Suit, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "hearts", "h":
		return Hearts, nil
	case "diamonds", "d":
		return Diamonds, nil
	case "spades", "s":
		return Spades, nil
	case "clubs", "c":
		return Clubs, nil
	}
	return SuitInvalid, fmt.Errorf("invalid suit: %q", raw)
}
