package jass

import "errors"

// RejectCode names why an action was refused. Codes are stable wire values.
type RejectCode string

const (
	CodeNotYourTurn      RejectCode = "NOT_YOUR_TURN"
	CodeCardNotInHand    RejectCode = "CARD_NOT_IN_HAND"
	CodeIllegalSuit      RejectCode = "ILLEGAL_SUIT"
	CodeNotAuthorized    RejectCode = "NOT_AUTHORIZED"
	CodeMissingTrumpSuit RejectCode = "MISSING_TRUMP_SUIT"
	CodeUnknownPlayer    RejectCode = "UNKNOWN_PLAYER"
	CodeWrongPhase       RejectCode = "WRONG_PHASE"
	CodeInvalidGameMode  RejectCode = "INVALID_GAME_MODE"
)

// RuleError is a rejected action. The acting seat gets the code; nothing is broadcast.
type RuleError struct {
	Code RejectCode
}

func (e RuleError) Error() string { return "rule violation: " + string(e.Code) }

var (
	ErrNotYourTurn      = RuleError{Code: CodeNotYourTurn}
	ErrCardNotInHand    = RuleError{Code: CodeCardNotInHand}
	ErrIllegalSuit      = RuleError{Code: CodeIllegalSuit}
	ErrNotAuthorized    = RuleError{Code: CodeNotAuthorized}
	ErrMissingTrumpSuit = RuleError{Code: CodeMissingTrumpSuit}
	ErrUnknownPlayer    = RuleError{Code: CodeUnknownPlayer}
	ErrWrongPhase       = RuleError{Code: CodeWrongPhase}
	ErrInvalidGameMode  = RuleError{Code: CodeInvalidGameMode}
)

var (
	ErrDuplicatePlayer = errors.New("players must be distinct")
	ErrMatchEnded      = errors.New("match already ended")
)

// InvalidStateError is an invariant violation; the session owning the match must be torn down.
type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }

// RejectCodeOf extracts the reject code of a RuleError, if err is one.
func RejectCodeOf(err error) (RejectCode, bool) {
	var re RuleError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return "", false
}

// IsStateError reports whether err is fatal to the match.
func IsStateError(err error) bool {
	var se InvalidStateError
	return errors.As(err, &se)
}
