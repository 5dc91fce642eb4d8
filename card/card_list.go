package card

import "math/rand"

type CardList []Card

func (ds *CardList) Init(cards []Card) {
	*ds = make([]Card, len(cards))
	copy(*ds, cards)
}

// Count 获取总牌数
func (ds CardList) Count() int {
	return len(ds)
}

func (ds CardList) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(ds), func(i, j int) {
		ds[i], ds[j] = ds[j], ds[i]
	})
}

func (ds *CardList) Add(cards ...Card) {
	*ds = append(*ds, cards...)
}

func (ds *CardList) PopCards(size int) ([]Card, bool) {
	if size > ds.Count() {
		return nil, false
	}
	cards := make([]Card, size)
	copy(cards, (*ds)[:size])
	*ds = (*ds)[size:]
	return cards, true
}

func (ds CardList) Contains(c Card) bool {
	for _, cc := range ds {
		if cc == c {
			return true
		}
	}
	return false
}

// Remove drops the first occurrence of c and reports whether it was present.
func (ds *CardList) Remove(c Card) bool {
	for i, cc := range *ds {
		if cc == c {
			*ds = append((*ds)[:i], (*ds)[i+1:]...)
			return true
		}
	}
	return false
}

// OfSuit returns the cards of suit s, preserving order.
func (ds CardList) OfSuit(s Suit) CardList {
	var out CardList
	for _, c := range ds {
		if c.Suit() == s {
			out = append(out, c)
		}
	}
	return out
}

func (ds CardList) IDs() []int {
	out := make([]int, 0, len(ds))
	for _, c := range ds {
		out = append(out, c.ID())
	}
	return out
}

func (ds CardList) Clone() CardList {
	if ds == nil {
		return nil
	}
	return append(CardList{}, ds...)
}
