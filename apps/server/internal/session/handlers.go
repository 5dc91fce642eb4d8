package session

import (
	"errors"
	"log"
	"time"

	"jass-lite/apps/server/internal/codec"
	"jass-lite/apps/server/internal/ledger"
	"jass-lite/jass"
)

// rejectedCode answers authorization failures without saying which check failed.
const rejectedCode = "REJECTED"

func (s *Session) handleStart() error {
	if s.started {
		return nil
	}
	s.started = true

	var refs [jass.NumSeats]ledger.PlayerRef
	for seat, b := range s.seats {
		refs[seat] = ledger.PlayerRef{
			AccountID: b.Player.ID,
			Username:  b.Player.Username,
			Seat:      seat,
			Team:      codec.TeamID(jass.Seat(seat).Team()),
		}
	}
	s.recorder.RecordMatch(ledger.MatchRecord{MatchID: s.ID, Players: refs, StartedAt: time.Now()})

	infos := s.seatInfos()
	for seat := range s.seats {
		s.sendToSeat(jass.Seat(seat), &codec.GameFound{GameID: s.ID, Players: infos, YourSeat: seat})
	}
	log.Printf("[Session %s] Match started: %s & %s vs %s & %s", s.ID,
		s.username(jass.SeatOne), s.username(jass.SeatThree), s.username(jass.SeatTwo), s.username(jass.SeatFour))
	return s.startRoundLocked()
}

func (s *Session) startRoundLocked() error {
	s.nextRoundAt = time.Time{}
	start, err := s.match.StartRound()
	if err != nil {
		return s.failLocked(err)
	}

	var hands [jass.NumSeats][]int
	for seat := range start.Hands {
		hands[seat] = start.Hands[seat].IDs()
	}
	s.recorder.RecordDeck(ledger.DeckRecord{
		MatchID:     s.ID,
		RoundID:     start.RoundID,
		RoundNumber: start.Number,
		Chooser:     int(start.Chooser),
		Hands:       hands,
	})

	for seat := range s.seats {
		s.sendToSeat(jass.Seat(seat), &codec.Deck{
			RoundID:     start.RoundID,
			RoundNumber: start.Number,
			Cards:       codec.CardsToRefs(start.Hands[seat]),
		})
	}
	s.sendToSeat(start.Chooser, &codec.RequestGameMode{RoundID: start.RoundID, RoundNumber: start.Number})
	log.Printf("[Session %s] Round %d dealt, chooser seat %d", s.ID, start.Number, start.Chooser+1)
	return nil
}

func (s *Session) handleChooseGameMode(e Event) error {
	seat, ok := s.seatOf(e.PlayerID)
	if !ok {
		s.replyToPlayer(e.PlayerID, e.RequestID, &codec.ErrorResponse{
			Code:    string(jass.CodeUnknownPlayer),
			Message: "player is not part of this match",
		})
		return jass.ErrUnknownPlayer
	}
	if s.duplicateLocked(seat, e.RequestID) {
		return nil
	}
	if !s.tokenMatches(seat, e.Token) {
		log.Printf("[Session %s] Dropped game mode from seat %d: token mismatch", s.ID, seat+1)
		return jass.ErrNotAuthorized
	}

	if err := s.match.ChooseGameMode(seat, e.Mode, e.Trump); err != nil {
		if errors.Is(err, jass.ErrNotAuthorized) {
			log.Printf("[Session %s] Dropped game mode from seat %d: not the chooser", s.ID, seat+1)
			return err
		}
		if code, ok := jass.RejectCodeOf(err); ok {
			log.Printf("[Session %s] Game mode from seat %d rejected: %s", s.ID, seat+1, code)
			s.reply(seat, e.RequestID, &codec.ErrorResponse{Code: string(code), Message: err.Error()})
			return err
		}
		return s.failLocked(err)
	}

	snap := s.match.Snapshot()
	log.Printf("[Session %s] Seat %d chose %s %s", s.ID, seat+1, snap.Mode, codec.SuitKey(snap.Trump))
	s.broadcastReplyLocked(seat, e.RequestID, &codec.BroadcastGameMode{
		RoundID:   snap.RoundID,
		Mode:      snap.Mode.String(),
		TrumpSuit: codec.SuitKey(snap.Trump),
		Chooser:   s.username(seat),
		Leader:    s.username(snap.ActionSeat),
	})
	s.broadcastLocked(&codec.BroadcastTurn{
		TurnID:         snap.OpenTrickID,
		LeaderUsername: s.username(snap.ActionSeat),
		CardsSoFar:     []codec.PlayRef{},
		NextUsername:   s.username(snap.ActionSeat),
	})
	s.promptLocked(snap.ActionSeat)
	return nil
}

func (s *Session) handlePlayCard(e Event) error {
	seat, ok := s.seatOf(e.PlayerID)
	if !ok {
		s.replyToPlayer(e.PlayerID, e.RequestID, &codec.PlayedCard{Code: string(jass.CodeUnknownPlayer)})
		return jass.ErrUnknownPlayer
	}
	if s.duplicateLocked(seat, e.RequestID) {
		return nil
	}
	if !s.tokenMatches(seat, e.Token) {
		log.Printf("[Session %s] Rejected play from seat %d: token mismatch", s.ID, seat+1)
		s.reply(seat, e.RequestID, &codec.PlayedCard{Code: rejectedCode})
		return jass.ErrNotAuthorized
	}

	out, err := s.match.PlayCard(seat, e.Card)
	if err != nil {
		if code, ok := jass.RejectCodeOf(err); ok {
			log.Printf("[Session %s] Play %s by seat %d rejected: %s", s.ID, e.Card, seat+1, code)
			s.reply(seat, e.RequestID, &codec.PlayedCard{Code: string(code)})
			return err
		}
		return s.failLocked(err)
	}

	ref := codec.CardToRef(out.Card)
	s.reply(seat, e.RequestID, &codec.PlayedCard{Accepted: true, Card: &ref})
	s.broadcastLocked(&codec.BroadcastTurn{
		TurnID:         out.Trick.ID,
		LeaderUsername: s.username(out.Trick.Leader),
		CardsSoFar:     s.playRefs(out.Trick.Plays),
		NextUsername:   s.username(out.NextSeat),
	})

	if out.TrickResolved {
		s.resolveTrickLocked(out.Trick)
	}
	if !out.RoundComplete {
		s.promptLocked(out.NextSeat)
		return nil
	}

	s.finishRoundLocked(out.Result)
	if out.MatchOver {
		s.finishMatchLocked()
		return nil
	}
	if s.cfg.NextRoundDelay <= 0 {
		return s.startRoundLocked()
	}
	s.nextRoundAt = time.Now().Add(s.cfg.NextRoundDelay)
	return nil
}

func (s *Session) resolveTrickLocked(trick *jass.Trick) {
	snap := s.match.Snapshot()
	s.broadcastLocked(&codec.TrickResult{
		TurnID:         trick.ID,
		WinnerUsername: s.username(trick.Winner),
		Points:         trick.Points,
		TeamScores:     snap.RoundPoints,
	})

	plays := make([]ledger.PlayRecord, 0, len(trick.Plays))
	for _, p := range trick.Plays {
		plays = append(plays, ledger.PlayRecord{Seat: int(p.Seat), CardID: p.Card.ID()})
	}
	s.recorder.RecordTrick(ledger.TrickRecord{
		MatchID: s.ID,
		RoundID: snap.RoundID,
		TrickID: trick.ID,
		Leader:  int(trick.Leader),
		Plays:   plays,
		Winner:  int(trick.Winner),
		Points:  trick.Points,
	})
}

func (s *Session) finishRoundLocked(res *jass.RoundResult) {
	if res == nil {
		return
	}
	s.broadcastLocked(&codec.RoundSummary{
		RoundID:     res.RoundID,
		RoundNumber: res.Number,
		Mode:        res.Mode.String(),
		TrumpSuit:   codec.SuitKey(res.Trump),
		Points:      res.Points,
		MatschTeam:  codec.TeamID(res.Matsch),
		Bonus:       res.Bonus,
		Totals:      res.Totals,
	})
	s.recorder.RecordRound(ledger.RoundRecord{
		MatchID:     s.ID,
		RoundID:     res.RoundID,
		RoundNumber: res.Number,
		Chooser:     int(res.Chooser),
		Mode:        res.Mode.String(),
		TrumpSuit:   codec.SuitKey(res.Trump),
		Points:      res.Points,
		Bonus:       res.Bonus,
		MatschTeam:  codec.TeamID(res.Matsch),
		Totals:      res.Totals,
		EndedAt:     time.Now(),
	})
	log.Printf("[Session %s] Round %d scored %v (bonus %v), totals %v", s.ID, res.Number, res.Points, res.Bonus, res.Totals)
}

func (s *Session) finishMatchLocked() {
	totals := s.match.Totals()
	winner := codec.TeamID(s.match.Winner())
	rounds := len(s.match.Results())

	s.broadcastLocked(&codec.MatchSummary{Totals: totals, WinningTeam: winner, Rounds: rounds})
	s.recorder.RecordMatchEnd(ledger.MatchEndRecord{
		MatchID:     s.ID,
		Totals:      totals,
		WinningTeam: winner,
		Rounds:      rounds,
		EndedAt:     time.Now(),
	})
	log.Printf("[Session %s] Match over after %d rounds, totals %v", s.ID, rounds, totals)
	s.closeLocked(false, "completed")
}

func (s *Session) handleConnLost(playerID uint64) error {
	seat, ok := s.seatOf(playerID)
	if !ok {
		return nil
	}
	log.Printf("[Session %s] Seat %d (%s) disconnected", s.ID, seat+1, s.username(seat))
	s.abortLocked("player_disconnected", s.username(seat), seat)
	return nil
}

// abortLocked ends the match early and notifies every seat except skip.
func (s *Session) abortLocked(reason, username string, skip jass.Seat) {
	if reason == "" {
		reason = "closed"
	}
	s.match.End()
	s.fanOutLocked(&codec.MatchAborted{Reason: reason, Username: username}, jass.InvalidSeat, 0, skip)

	totals := s.match.Totals()
	s.recorder.RecordMatchEnd(ledger.MatchEndRecord{
		MatchID:     s.ID,
		Totals:      totals,
		WinningTeam: codec.TeamID(s.match.Winner()),
		Rounds:      len(s.match.Results()),
		Aborted:     true,
		Reason:      reason,
		EndedAt:     time.Now(),
	})
	log.Printf("[Session %s] Match aborted: %s", s.ID, reason)
	s.closeLocked(true, reason)
}

// failLocked handles an error that is not a rule rejection. The match cannot
// continue, so the session is torn down.
func (s *Session) failLocked(err error) error {
	if jass.IsStateError(err) {
		log.Printf("[Session %s] Broken match state: %v", s.ID, err)
	} else {
		log.Printf("[Session %s] Unexpected error: %v", s.ID, err)
	}
	s.abortLocked("internal_error", "", jass.InvalidSeat)
	return err
}

func (s *Session) promptLocked(seat jass.Seat) {
	if !seat.Valid() {
		return
	}
	snap := s.match.Snapshot()
	s.sendToSeat(seat, &codec.YourTurn{
		TurnID:     snap.OpenTrickID,
		LegalCards: codec.CardsToRefs(s.match.LegalCards(seat)),
	})
}

func (s *Session) seatInfos() []codec.SeatInfo {
	infos := make([]codec.SeatInfo, 0, jass.NumSeats)
	for seat, b := range s.seats {
		infos = append(infos, codec.SeatInfo{
			PlayerID: b.Player.ID,
			Username: b.Player.Username,
			Seat:     seat,
			TeamID:   codec.TeamID(jass.Seat(seat).Team()),
		})
	}
	return infos
}

func (s *Session) playRefs(plays []jass.Play) []codec.PlayRef {
	out := make([]codec.PlayRef, 0, len(plays))
	for _, p := range plays {
		out = append(out, codec.PlayRef{
			Username: s.username(p.Seat),
			Seat:     int(p.Seat),
			Card:     codec.CardToRef(p.Card),
		})
	}
	return out
}
