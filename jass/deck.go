package jass

import (
	"math/rand"

	"jass-lite/card"
)

// Deal partitions the 36-card catalog into four disjoint 9-card hands.
// Hand i belongs to seat i. With a non-nil override the cards are dealt in
// the given order; otherwise the catalog is shuffled with rng.
func Deal(rng *rand.Rand, override []card.Card) ([NumSeats]card.CardList, error) {
	var hands [NumSeats]card.CardList

	var deck card.CardList
	if override != nil {
		if err := validateDeck(override); err != nil {
			return hands, err
		}
		deck.Init(override)
	} else {
		deck = card.FullDeck()
		deck.Shuffle(rng)
	}

	for seat := 0; seat < NumSeats; seat++ {
		cards, ok := deck.PopCards(HandSize)
		if !ok {
			return hands, ErrInvalidState("deck exhausted while dealing")
		}
		hands[seat] = cards
	}
	if deck.Count() != 0 {
		return hands, ErrInvalidState("cards left over after dealing")
	}
	return hands, nil
}
