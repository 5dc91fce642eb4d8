package jass

import (
	"fmt"
	"strings"
)

// Seat is a fixed player position, 0..3 (player one..player four).
type Seat uint8

const (
	SeatOne Seat = iota
	SeatTwo
	SeatThree
	SeatFour

	InvalidSeat Seat = 255
)

const NumSeats = 4

// HandSize is the number of cards each seat is dealt, and the number of tricks per round.
const HandSize = 9

func (s Seat) Valid() bool { return s < NumSeats }

// Next is the seat acting after s.
func (s Seat) Next() Seat { return (s + 1) % NumSeats }

// Team is fixed by seat: seats one and three play against seats two and four.
func (s Seat) Team() Team {
	if !s.Valid() {
		return TeamNone
	}
	if s%2 == 0 {
		return TeamOne
	}
	return TeamTwo
}

func (s Seat) String() string {
	if !s.Valid() {
		return "none"
	}
	return fmt.Sprintf("seat%d", s+1)
}

type Team int8

const (
	TeamNone Team = -1
	TeamOne  Team = 0
	TeamTwo  Team = 1
)

// ID is the 1-based team id used on the wire (0 for TeamNone).
func (t Team) ID() int {
	if t == TeamNone {
		return 0
	}
	return int(t) + 1
}

type GameMode byte

const (
	ModeNone GameMode = iota
	ModeTrumpf
	ModeObeAbe
	ModeUndeUfe
)

var GameModeDictionary = map[GameMode]string{
	ModeNone:    "NONE",
	ModeTrumpf:  "TRUMPF",
	ModeObeAbe:  "OBE_ABE",
	ModeUndeUfe: "UNDE_UFE",
}

func (m GameMode) String() string {
	if name, ok := GameModeDictionary[m]; ok {
		return name
	}
	return "UNKNOWN"
}

func (m GameMode) Valid() bool {
	return m == ModeTrumpf || m == ModeObeAbe || m == ModeUndeUfe
}

func ParseGameMode(raw string) (GameMode, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TRUMPF", "TRUMP":
		return ModeTrumpf, nil
	case "OBE_ABE", "OBEABE":
		return ModeObeAbe, nil
	case "UNDE_UFE", "UNDEUFE", "ONDEUFE":
		return ModeUndeUfe, nil
	}
	return ModeNone, fmt.Errorf("unsupported game mode %q", raw)
}

// Phase 比赛阶段
type Phase byte

const (
	PhaseWaiting    Phase = 0
	PhaseChooseMode Phase = 1
	PhasePlaying    Phase = 2
	PhaseRoundEnd   Phase = 3
	PhaseMatchEnd   Phase = 4
)

var PhaseDictionary = map[Phase]string{
	PhaseWaiting:    "waiting",
	PhaseChooseMode: "choose_mode",
	PhasePlaying:    "playing",
	PhaseRoundEnd:   "round_end",
	PhaseMatchEnd:   "match_end",
}

func (p Phase) String() string {
	if name, ok := PhaseDictionary[p]; ok {
		return name
	}
	return "unknown"
}

// Player is an authenticated identity bound to a seat for the match lifetime.
type Player struct {
	ID       uint64
	Username string
}
