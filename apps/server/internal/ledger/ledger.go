package ledger

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// PlayerRef is one seat binding of a recorded match.
type PlayerRef struct {
	AccountID uint64 `json:"account_id"`
	Username  string `json:"username"`
	Seat      int    `json:"seat"`
	Team      int    `json:"team"`
}

type MatchRecord struct {
	MatchID   string
	Players   [4]PlayerRef
	StartedAt time.Time
}

// DeckRecord is the deal of one round, card ids per seat.
type DeckRecord struct {
	MatchID     string
	RoundID     string
	RoundNumber int
	Chooser     int
	Hands       [4][]int
}

type PlayRecord struct {
	Seat   int `json:"seat"`
	CardID int `json:"card_id"`
}

type TrickRecord struct {
	MatchID string
	RoundID string
	TrickID uint64
	Leader  int
	Plays   []PlayRecord
	Winner  int
	Points  int
}

type RoundRecord struct {
	MatchID     string
	RoundID     string
	RoundNumber int
	Chooser     int
	Mode        string
	TrumpSuit   string
	Points      [2]int
	Bonus       [2]int
	MatschTeam  int
	Totals      [2]int
	EndedAt     time.Time
}

type MatchEndRecord struct {
	MatchID     string
	Totals      [2]int
	WinningTeam int
	Rounds      int
	Aborted     bool
	Reason      string
	EndedAt     time.Time
}

// EventRecord is one outbound envelope, already encoded for storage.
type EventRecord struct {
	MatchID    string
	Seq        uint64
	EventType  string
	Envelope   []byte
	ServerTsMs int64
}

type HistoryItem struct {
	MatchID     string      `json:"match_id"`
	StartedAt   time.Time   `json:"started_at"`
	EndedAt     *time.Time  `json:"ended_at,omitempty"`
	Seat        int         `json:"seat"`
	Team        int         `json:"team"`
	Totals      [2]int      `json:"totals"`
	WinningTeam int         `json:"winning_team"`
	Rounds      int         `json:"rounds"`
	Aborted     bool        `json:"aborted"`
	Players     []PlayerRef `json:"players"`
}

type EventItem struct {
	Seq         uint64 `json:"seq"`
	EventType   string `json:"event_type"`
	EnvelopeB64 string `json:"envelope_b64"`
	ServerTsMs  *int64 `json:"server_ts_ms,omitempty"`
}

// Service is the durable match history. Game sessions never read from it.
type Service interface {
	RecordMatch(ctx context.Context, rec MatchRecord) error
	RecordDeck(ctx context.Context, rec DeckRecord) error
	RecordTrick(ctx context.Context, rec TrickRecord) error
	RecordRound(ctx context.Context, rec RoundRecord) error
	RecordMatchEnd(ctx context.Context, rec MatchEndRecord) error
	AppendEvent(ctx context.Context, rec EventRecord) error

	// ListRecent returns the matches accountID took part in, newest first.
	ListRecent(ctx context.Context, accountID uint64, limit int) ([]HistoryItem, error)
	// GetMatchEvents returns the event stream of a match accountID played in.
	GetMatchEvents(ctx context.Context, accountID uint64, matchID string) ([]EventItem, error)
	Close() error
}

// Recorder is the write-behind port a session writes to. Calls never block on storage.
type Recorder interface {
	RecordMatch(rec MatchRecord)
	RecordDeck(rec DeckRecord)
	RecordTrick(rec TrickRecord)
	RecordRound(rec RoundRecord)
	RecordMatchEnd(rec MatchEndRecord)
	AppendEvent(rec EventRecord)
}

type discard struct{}

func (discard) RecordMatch(MatchRecord)       {}
func (discard) RecordDeck(DeckRecord)         {}
func (discard) RecordTrick(TrickRecord)       {}
func (discard) RecordRound(RoundRecord)       {}
func (discard) RecordMatchEnd(MatchEndRecord) {}
func (discard) AppendEvent(EventRecord)       {}

// Discard drops everything.
var Discard Recorder = discard{}

func clampLimit(limit, ceiling int) int {
	if ceiling <= 0 {
		ceiling = defaultRecentLimit
	}
	if limit <= 0 || limit > ceiling {
		return ceiling
	}
	return limit
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
