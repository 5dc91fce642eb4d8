package card

// Rank 点数. Ids match the persisted rank catalog: 1 is the six, 6 is the jack, 9 is the ace.
type Rank byte

const (
	RankInvalid Rank = iota
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// Ranks lists every rank from lowest to highest natural order.
var Ranks = []Rank{Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

// RankInfo is one row of the rank catalog. The three point columns are the
// values a card of this rank scores in a non-trump suit under Trumpf, under
// Obe-abe and under Unde-ufe. Trump-suit overrides live in the rules engine.
type RankInfo struct {
	ID            Rank
	Key           string
	PointsTrumpf  int
	PointsObeAbe  int
	PointsUndeUfe int
}

var rankTable = [...]RankInfo{
	Six:   {ID: Six, Key: "6", PointsTrumpf: 0, PointsObeAbe: 0, PointsUndeUfe: 11},
	Seven: {ID: Seven, Key: "7", PointsTrumpf: 0, PointsObeAbe: 0, PointsUndeUfe: 0},
	Eight: {ID: Eight, Key: "8", PointsTrumpf: 0, PointsObeAbe: 8, PointsUndeUfe: 8},
	Nine:  {ID: Nine, Key: "9", PointsTrumpf: 0, PointsObeAbe: 0, PointsUndeUfe: 0},
	Ten:   {ID: Ten, Key: "10", PointsTrumpf: 10, PointsObeAbe: 10, PointsUndeUfe: 10},
	Jack:  {ID: Jack, Key: "jack", PointsTrumpf: 2, PointsObeAbe: 2, PointsUndeUfe: 2},
	Queen: {ID: Queen, Key: "queen", PointsTrumpf: 3, PointsObeAbe: 3, PointsUndeUfe: 3},
	King:  {ID: King, Key: "king", PointsTrumpf: 4, PointsObeAbe: 4, PointsUndeUfe: 4},
	Ace:   {ID: Ace, Key: "ace", PointsTrumpf: 11, PointsObeAbe: 11, PointsUndeUfe: 0},
}

func (r Rank) Valid() bool {
	return r >= Six && r <= Ace
}

// Info returns the catalog row; the zero RankInfo for invalid ranks.
func (r Rank) Info() RankInfo {
	if !r.Valid() {
		return RankInfo{}
	}
	return rankTable[r]
}

func (r Rank) Key() string {
	return r.Info().Key
}

func (r Rank) String() string {
	switch r {
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	case RankInvalid:
		return "?"
	}
	return r.Key()
}
