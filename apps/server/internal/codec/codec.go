package codec

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jass-lite/card"
	"jass-lite/jass"
)

// ProtocolError marks a frame that could not be understood. It never touches game state.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Reason }

func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// ClientEnvelope is the raw inbound frame.
type ClientEnvelope struct {
	ID      uint64          `json:"id"`
	Type    MessageType     `json:"type"`
	Token   string          `json:"token,omitempty"`
	MatchID string          `json:"matchId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound is the closed set of client actions.
type Inbound interface {
	inbound()
}

type SearchGame struct{}

type CancelSearchGame struct{}

type Logout struct{}

type ChooseGameMode struct {
	Mode  jass.GameMode
	Trump card.Suit
}

type PlayCard struct {
	Card card.Card
}

func (SearchGame) inbound()       {}
func (CancelSearchGame) inbound() {}
func (Logout) inbound()           {}
func (ChooseGameMode) inbound()   {}
func (PlayCard) inbound()         {}

// Request is a decoded inbound frame.
type Request struct {
	ID      uint64
	Token   string
	MatchID string
	Body    Inbound
}

type chooseGameModeWire struct {
	Mode      string `json:"mode"`
	TrumpSuit string `json:"trumpSuit,omitempty"`
}

type playCardWire struct {
	CardID int `json:"cardId"`
}

// DecodeClient parses and validates one inbound frame. An unknown game mode
// string decodes to jass.ModeNone so the round can reject it with a rule code.
func DecodeClient(data []byte) (*Request, error) {
	var env ClientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, protocolErrorf("invalid json: %v", err)
	}
	if env.ID == 0 {
		return nil, protocolErrorf("missing correlation id")
	}
	req := &Request{ID: env.ID, Token: strings.TrimSpace(env.Token), MatchID: env.MatchID}

	switch env.Type {
	case TypeSearchGame:
		req.Body = SearchGame{}
	case TypeCancelSearchGame:
		req.Body = CancelSearchGame{}
	case TypeLogout:
		req.Body = Logout{}
	case TypeChooseGameMode:
		var w chooseGameModeWire
		if err := unmarshalPayload(env.Payload, &w); err != nil {
			return nil, err
		}
		mode, err := jass.ParseGameMode(w.Mode)
		if err != nil {
			mode = jass.ModeNone
		}
		trump := card.SuitInvalid
		if strings.TrimSpace(w.TrumpSuit) != "" {
			if trump, err = card.ParseSuit(w.TrumpSuit); err != nil {
				return nil, protocolErrorf("%v", err)
			}
		}
		req.Body = ChooseGameMode{Mode: mode, Trump: trump}
	case TypePlayCard:
		var w playCardWire
		if err := unmarshalPayload(env.Payload, &w); err != nil {
			return nil, err
		}
		c, err := card.FromID(w.CardID)
		if err != nil {
			return nil, protocolErrorf("%v", err)
		}
		req.Body = PlayCard{Card: c}
	default:
		return nil, protocolErrorf("unknown message type %q", env.Type)
	}
	return req, nil
}

func unmarshalPayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return protocolErrorf("missing payload")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return protocolErrorf("invalid payload: %v", err)
	}
	return nil
}

// EncodeClient builds an inbound frame; used by clients and tests.
func EncodeClient(id uint64, token, matchID string, body Inbound) ([]byte, error) {
	env := ClientEnvelope{ID: id, Token: token, MatchID: matchID}
	var payload any
	switch b := body.(type) {
	case SearchGame:
		env.Type = TypeSearchGame
	case CancelSearchGame:
		env.Type = TypeCancelSearchGame
	case Logout:
		env.Type = TypeLogout
	case ChooseGameMode:
		env.Type = TypeChooseGameMode
		w := chooseGameModeWire{Mode: b.Mode.String()}
		if b.Trump.Valid() {
			w.TrumpSuit = b.Trump.Key()
		}
		payload = w
	case PlayCard:
		env.Type = TypePlayCard
		payload = playCardWire{CardID: b.Card.ID()}
	default:
		return nil, fmt.Errorf("unsupported inbound %T", body)
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// ServerEnvelope is every outbound frame.
type ServerEnvelope struct {
	Seq     uint64          `json:"seq"`
	ReplyTo uint64          `json:"replyTo,omitempty"`
	MatchID string          `json:"matchId,omitempty"`
	TsMs    int64           `json:"tsMs"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WrapServerEnvelope stamps payload with the session header fields.
func WrapServerEnvelope(matchID string, seq, replyTo uint64, payload any) (*ServerEnvelope, error) {
	env := &ServerEnvelope{
		Seq:     seq,
		ReplyTo: replyTo,
		MatchID: matchID,
		TsMs:    time.Now().UnixMilli(),
	}

	switch payload.(type) {
	case *SearchStatus:
		env.Type = TypeSearchStatus
	case *GameFound:
		env.Type = TypeGameFound
	case *Deck:
		env.Type = TypeDeck
	case *RequestGameMode:
		env.Type = TypeChooseGameMode
	case *BroadcastGameMode:
		env.Type = TypeBroadcastGameMode
	case *BroadcastTurn:
		env.Type = TypeBroadcastTurn
	case *YourTurn:
		env.Type = TypeYourTurn
	case *PlayedCard:
		env.Type = TypePlayedCard
	case *TrickResult:
		env.Type = TypeTrickResult
	case *RoundSummary:
		env.Type = TypeRoundSummary
	case *MatchSummary:
		env.Type = TypeMatchSummary
	case *MatchAborted:
		env.Type = TypeMatchAborted
	case *ErrorResponse:
		env.Type = TypeError
	default:
		return nil, fmt.Errorf("unsupported outbound payload %T", payload)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	env.Payload = raw
	return env, nil
}

func (e *ServerEnvelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeServer parses an outbound frame on the client side.
func DecodeServer(data []byte) (*ServerEnvelope, error) {
	var env ServerEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, protocolErrorf("invalid json: %v", err)
	}
	if env.Type == "" {
		return nil, protocolErrorf("missing message type")
	}
	return &env, nil
}

// DecodePayload unmarshals the envelope payload into dst.
func (e *ServerEnvelope) DecodePayload(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return protocolErrorf("invalid %s payload: %v", e.Type, err)
	}
	return nil
}

// Helper conversion functions

func CardToRef(c card.Card) CardRef {
	return CardRef{ID: c.ID(), Suit: c.Suit().Key(), Rank: c.Rank().Key()}
}

func CardsToRefs(cards []card.Card) []CardRef {
	out := make([]CardRef, len(cards))
	for i, c := range cards {
		out[i] = CardToRef(c)
	}
	return out
}

func SuitKey(s card.Suit) string {
	if !s.Valid() {
		return ""
	}
	return s.Key()
}

// TeamID is the 1-based wire id of a team, 0 for none.
func TeamID(t jass.Team) int {
	if t == jass.TeamNone {
		return 0
	}
	return t.ID()
}
