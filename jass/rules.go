package jass

import "jass-lite/card"

// checkFollowSuit enforces the follow-suit rule for c played from hand into trick.
//
// A card of the lead suit is always legal, as is a trump under Trumpf. Any other
// card is legal only when the hand holds no card of the lead suit, where the
// trump jack does not count: a seat is never forced to give it up.
func checkFollowSuit(hand card.CardList, c card.Card, trick *Trick, mode GameMode, trump card.Suit) error {
	lead := trick.LeadSuit()
	if lead == card.SuitInvalid {
		return nil
	}
	if c.Suit() == lead {
		return nil
	}
	if isTrump(c, mode, trump) {
		return nil
	}
	for _, held := range hand {
		if held.Suit() != lead {
			continue
		}
		if isTrump(held, mode, trump) && held.Rank() == card.Jack {
			continue
		}
		return ErrIllegalSuit
	}
	return nil
}

// legalCards projects which cards of hand may be played next into trick.
func legalCards(hand card.CardList, trick *Trick, mode GameMode, trump card.Suit) []card.Card {
	out := make([]card.Card, 0, len(hand))
	for _, c := range hand {
		if checkFollowSuit(hand, c, trick, mode, trump) == nil {
			out = append(out, c)
		}
	}
	return out
}
