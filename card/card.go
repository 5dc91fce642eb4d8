package card

import (
	"fmt"
	"strings"
)

// Card 牌枚举
//
// 编码规则:
// - 高4位: 花色 (1:Hearts, 2:Diamonds, 3:Spades, 4:Clubs)
// - 低4位: 点数 (1:6, 2:7 .. 5:10, 6:J, 7:Q, 8:K, 9:A)
type Card byte

const (
	CardInvalid Card = 0
	CardRear    Card = 0xFF
)

// DeckSize is the number of cards in a Jass deck.
const DeckSize = 36

// New builds a card from suit and rank; CardInvalid if either is out of range.
func New(s Suit, r Rank) Card {
	if !s.Valid() || !r.Valid() {
		return CardInvalid
	}
	return Card(byte(s)<<4 | byte(r))
}

func (c Card) Suit() Suit {
	return Suit(c >> 4)
}

func (c Card) Rank() Rank {
	if c == CardInvalid || c == CardRear {
		return RankInvalid
	}
	return Rank(c & 0x0F)
}

func (c Card) Valid() bool {
	return c.Suit().Valid() && c.Rank().Valid()
}

// ID is the catalog card id: (suit-1)*9 + rank, in 1..36.
func (c Card) ID() int {
	if !c.Valid() {
		return 0
	}
	return (int(c.Suit())-1)*len(Ranks) + int(c.Rank())
}

// FromID is the inverse of Card.ID.
func FromID(id int) (Card, error) {
	if id < 1 || id > DeckSize {
		return CardInvalid, fmt.Errorf("invalid card id: %d", id)
	}
	idx := id - 1
	return New(Suit(idx/len(Ranks)+1), Rank(idx%len(Ranks)+1)), nil
}

func (c Card) String() string {
	if c == CardInvalid {
		return "Invalid"
	}
	if c == CardRear {
		return "Rear"
	}
	return fmt.Sprintf("%s%s", c.Suit(), c.Rank())
}

// Parse converts strings like "Jh", "10s", "Tc" or "Ad" to a Card.
func Parse(cardStr string) (Card, error) {
	cardStr = strings.TrimSpace(cardStr)
	if len(cardStr) < 2 {
		return CardInvalid, fmt.Errorf("invalid card string: %s", cardStr)
	}

	suit, err := ParseSuit(cardStr[len(cardStr)-1:])
	if err != nil {
		return CardInvalid, err
	}

	var rank Rank
	switch strings.ToUpper(cardStr[:len(cardStr)-1]) {
	case "6":
		rank = Six
	case "7":
		rank = Seven
	case "8":
		rank = Eight
	case "9":
		rank = Nine
	case "T", "10":
		rank = Ten
	case "J":
		rank = Jack
	case "Q":
		rank = Queen
	case "K":
		rank = King
	case "A":
		rank = Ace
	default:
		return CardInvalid, fmt.Errorf("invalid rank: %s", cardStr[:len(cardStr)-1])
	}
	return New(suit, rank), nil
}

// MustParse is Parse for literals in tests and tables.
func MustParse(cardStr string) Card {
	c, err := Parse(cardStr)
	if err != nil {
		panic(err)
	}
	return c
}

// FullDeck returns the 36-card catalog in id order.
func FullDeck() CardList {
	out := make(CardList, 0, DeckSize)
	for _, s := range Suits {
		for _, r := range Ranks {
			out = append(out, New(s, r))
		}
	}
	return out
}
