package codec

// MessageType tags every frame on the wire. Inbound and outbound share the
// namespace; ChooseGameMode names both the client's choice and the server's
// request-to-act.
type MessageType string

const (
	// client -> server
	TypeSearchGame       MessageType = "SearchGame"
	TypeCancelSearchGame MessageType = "CancelSearchGame"
	TypeChooseGameMode   MessageType = "ChooseGameMode"
	TypePlayCard         MessageType = "PlayCard"
	TypeLogout           MessageType = "Logout"

	// server -> client
	TypeSearchStatus      MessageType = "SearchStatus"
	TypeGameFound         MessageType = "GameFound"
	TypeDeck              MessageType = "Deck"
	TypeBroadcastGameMode MessageType = "BroadcastGameMode"
	TypeBroadcastTurn     MessageType = "BroadcastTurn"
	TypeYourTurn          MessageType = "YourTurn"
	TypePlayedCard        MessageType = "PlayedCard"
	TypeTrickResult       MessageType = "TrickResult"
	TypeRoundSummary      MessageType = "RoundSummary"
	TypeMatchSummary      MessageType = "MatchSummary"
	TypeMatchAborted      MessageType = "MatchAborted"
	TypeError             MessageType = "Error"
)

type CardRef struct {
	ID   int    `json:"id"`
	Suit string `json:"suit"`
	Rank string `json:"rank"`
}

type SeatInfo struct {
	PlayerID uint64 `json:"playerId"`
	Username string `json:"username"`
	Seat     int    `json:"seat"`
	TeamID   int    `json:"teamId"`
}

type PlayRef struct {
	Username string  `json:"username"`
	Seat     int     `json:"seat"`
	Card     CardRef `json:"card"`
}

type SearchStatus struct {
	Searching bool `json:"searching"`
	Queued    int  `json:"queued"`
}

type GameFound struct {
	GameID   string     `json:"gameId"`
	Players  []SeatInfo `json:"players"`
	YourSeat int        `json:"yourSeat"`
}

type Deck struct {
	RoundID     string    `json:"roundId"`
	RoundNumber int       `json:"roundNumber"`
	Cards       []CardRef `json:"cards"`
}

// RequestGameMode goes to the chooser only; its wire type is ChooseGameMode.
type RequestGameMode struct {
	RoundID     string `json:"roundId"`
	RoundNumber int    `json:"roundNumber"`
}

type BroadcastGameMode struct {
	RoundID   string `json:"roundId"`
	Mode      string `json:"mode"`
	TrumpSuit string `json:"trumpSuit,omitempty"`
	Chooser   string `json:"chooser"`
	Leader    string `json:"leader"`
}

type BroadcastTurn struct {
	TurnID         uint64    `json:"turnId"`
	LeaderUsername string    `json:"leaderUsername"`
	CardsSoFar     []PlayRef `json:"cardsSoFar"`
	NextUsername   string    `json:"nextUsername,omitempty"`
}

type YourTurn struct {
	TurnID     uint64    `json:"turnId"`
	LegalCards []CardRef `json:"legalCards"`
}

type PlayedCard struct {
	Accepted bool     `json:"accepted"`
	Code     string   `json:"code,omitempty"`
	Card     *CardRef `json:"card,omitempty"`
}

type TrickResult struct {
	TurnID         uint64 `json:"turnId"`
	WinnerUsername string `json:"winnerUsername"`
	Points         int    `json:"points"`
	TeamScores     [2]int `json:"teamScores"`
}

type RoundSummary struct {
	RoundID     string `json:"roundId"`
	RoundNumber int    `json:"roundNumber"`
	Mode        string `json:"mode"`
	TrumpSuit   string `json:"trumpSuit,omitempty"`
	Points      [2]int `json:"points"`
	// MatschTeam is the 1-based team that took every trick, 0 if none.
	MatschTeam int    `json:"matschTeam,omitempty"`
	Bonus      [2]int `json:"bonus"`
	Totals     [2]int `json:"totals"`
}

type MatchSummary struct {
	Totals [2]int `json:"totals"`
	// WinningTeam is 1-based, 0 on a tie.
	WinningTeam int `json:"winningTeam"`
	Rounds      int `json:"rounds"`
}

type MatchAborted struct {
	Reason   string `json:"reason"`
	Username string `json:"username,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
