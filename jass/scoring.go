package jass

import "jass-lite/card"

const (
	LastTrickBonus = 5
	MatschBonus    = 100
	// RoundPointPool is the sum of all card points plus the last trick bonus, in every mode.
	RoundPointPool = 157
)

// CardPoints is the score value of c under the given mode and trump suit.
func CardPoints(c card.Card, mode GameMode, trump card.Suit) int {
	info := c.Rank().Info()
	switch mode {
	case ModeTrumpf:
		if c.Suit() == trump {
			switch c.Rank() {
			case card.Jack:
				return 20
			case card.Nine:
				return 14
			}
		}
		return info.PointsTrumpf
	case ModeObeAbe:
		return info.PointsObeAbe
	case ModeUndeUfe:
		return info.PointsUndeUfe
	}
	return 0
}

// trumpOrder ranks trump cards: jack above nine above ace, king, queen, ten, eight, seven, six.
// Distinct from the points table.
var trumpOrder = map[card.Rank]int{
	card.Six:   1,
	card.Seven: 2,
	card.Eight: 3,
	card.Ten:   4,
	card.Queen: 5,
	card.King:  6,
	card.Ace:   7,
	card.Nine:  8,
	card.Jack:  9,
}

// strength orders cards of the same suit; higher wins.
func strength(c card.Card, mode GameMode, trump card.Suit) int {
	if mode == ModeTrumpf && c.Suit() == trump {
		return trumpOrder[c.Rank()]
	}
	if mode == ModeUndeUfe {
		return int(card.Ace) + 1 - int(c.Rank())
	}
	return int(c.Rank())
}

func isTrump(c card.Card, mode GameMode, trump card.Suit) bool {
	return mode == ModeTrumpf && c.Suit() == trump
}

// beats reports whether challenger takes the trick from current.
func beats(challenger, current card.Card, mode GameMode, trump card.Suit) bool {
	ct, cur := isTrump(challenger, mode, trump), isTrump(current, mode, trump)
	switch {
	case ct && !cur:
		return true
	case !ct && cur:
		return false
	}
	if challenger.Suit() != current.Suit() {
		return false
	}
	return strength(challenger, mode, trump) > strength(current, mode, trump)
}

// TrickWinner returns the seat whose card takes the trick.
func TrickWinner(plays []Play, mode GameMode, trump card.Suit) Seat {
	if len(plays) == 0 {
		return InvalidSeat
	}
	best := plays[0]
	for _, p := range plays[1:] {
		if beats(p.Card, best.Card, mode, trump) {
			best = p
		}
	}
	return best.Seat
}

// TrickPoints sums the card points of the plays.
func TrickPoints(plays []Play, mode GameMode, trump card.Suit) int {
	total := 0
	for _, p := range plays {
		total += CardPoints(p.Card, mode, trump)
	}
	return total
}
