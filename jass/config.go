package jass

import (
	"fmt"

	"jass-lite/card"
)

type Config struct {
	// Match ends once a team's cumulative total reaches TargetScore (0 disables).
	TargetScore int
	// Match ends after MaxRounds rounds (0 disables).
	MaxRounds int

	// RNG seed (0 => time-based)
	Seed int64
	// DeckOverride deals these 36 cards in order (seat i gets cards 9i..9i+8)
	// instead of shuffling. Every round uses the same order.
	DeckOverride []card.Card
}

func (c Config) validate() error {
	if c.TargetScore < 0 {
		return fmt.Errorf("TargetScore must be >= 0")
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("MaxRounds must be >= 0")
	}
	if c.DeckOverride != nil {
		if err := validateDeck(c.DeckOverride); err != nil {
			return fmt.Errorf("invalid DeckOverride: %w", err)
		}
	}
	return nil
}

func validateDeck(cards []card.Card) error {
	if len(cards) != card.DeckSize {
		return fmt.Errorf("expected %d cards, got %d", card.DeckSize, len(cards))
	}
	seen := make(map[card.Card]bool, card.DeckSize)
	for _, c := range cards {
		if !c.Valid() {
			return fmt.Errorf("invalid card %v", c)
		}
		if seen[c] {
			return fmt.Errorf("duplicate card %v", c)
		}
		seen[c] = true
	}
	return nil
}
