package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"jass-lite/apps/server/internal/codec"
	"jass-lite/card"
	"jass-lite/jass"
)

func TestStartAnnouncesMatchAndDeals(t *testing.T) {
	h := newHarness(t, Config{Rules: jass.Config{MaxRounds: 1}})

	for seat := jass.SeatOne; seat < jass.NumSeats; seat++ {
		found := h.out.ofType(h.id(seat), codec.TypeGameFound)
		if len(found) != 1 {
			t.Fatalf("seat %v got %d GameFound", seat, len(found))
		}
		gf := decode[codec.GameFound](t, found[0])
		if gf.GameID != "m_test" || gf.YourSeat != int(seat) || len(gf.Players) != 4 {
			t.Fatalf("seat %v GameFound = %+v", seat, gf)
		}
		if gf.Players[1].TeamID != 2 || gf.Players[2].TeamID != 1 {
			t.Fatalf("teams = %+v", gf.Players)
		}

		decks := h.out.ofType(h.id(seat), codec.TypeDeck)
		if len(decks) != 1 {
			t.Fatalf("seat %v got %d decks", seat, len(decks))
		}
		deck := decode[codec.Deck](t, decks[0])
		if deck.RoundID != "m_test_r1" || len(deck.Cards) != jass.HandSize {
			t.Fatalf("seat %v deck = %+v", seat, deck)
		}
	}

	if got := h.out.ofType(h.id(jass.SeatOne), codec.TypeChooseGameMode); len(got) != 1 {
		t.Fatalf("chooser got %d mode requests", len(got))
	}
	for _, seat := range []jass.Seat{jass.SeatTwo, jass.SeatThree, jass.SeatFour} {
		if got := h.out.ofType(h.id(seat), codec.TypeChooseGameMode); len(got) != 0 {
			t.Fatalf("seat %v should not be asked to choose", seat)
		}
	}

	deck, ok := h.store.Deck("m_test", "m_test_r1")
	if !ok {
		t.Fatalf("deck not recorded")
	}
	if deck.Hands[1][0] != card.MustParse("6d").ID() {
		t.Fatalf("recorded seat two hand = %v", deck.Hands[1])
	}
}

func TestChooseGameModeFromNonChooserIsDropped(t *testing.T) {
	h := newHarness(t, Config{Rules: jass.Config{MaxRounds: 1}})

	before := make(map[uint64]int)
	for seat := jass.SeatOne; seat < jass.NumSeats; seat++ {
		before[h.id(seat)] = h.out.count(h.id(seat))
	}

	err := h.choose(jass.SeatTwo, jass.ModeObeAbe, card.SuitInvalid)
	if !errors.Is(err, jass.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	for id, n := range before {
		if h.out.count(id) != n {
			t.Fatalf("player %d received frames after a dropped choice", id)
		}
	}
	snap := h.s.Snapshot()
	if snap.Mode != jass.ModeNone || snap.Phase != jass.PhaseChooseMode {
		t.Fatalf("mode=%v phase=%v after dropped choice", snap.Mode, snap.Phase)
	}
}

func TestChooseGameModeFromNonChooserDuringPlayIsDropped(t *testing.T) {
	h := newHarness(t, Config{Rules: jass.Config{MaxRounds: 1}})
	if err := h.choose(jass.SeatOne, jass.ModeTrumpf, card.Spades); err != nil {
		t.Fatalf("choose err: %v", err)
	}
	n := h.out.count(h.id(jass.SeatTwo))

	err := h.choose(jass.SeatTwo, jass.ModeObeAbe, card.SuitInvalid)
	if !errors.Is(err, jass.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if h.out.count(h.id(jass.SeatTwo)) != n {
		t.Fatalf("non-chooser was answered: %s", h.out.last(h.id(jass.SeatTwo)).Type)
	}
	snap := h.s.Snapshot()
	if snap.Mode != jass.ModeTrumpf || snap.Trump != card.Spades {
		t.Fatalf("mode=%v trump=%v after dropped choice", snap.Mode, snap.Trump)
	}

	// the chooser repeating the choice still learns the phase is over
	err = h.choose(jass.SeatOne, jass.ModeObeAbe, card.SuitInvalid)
	if code, _ := jass.RejectCodeOf(err); code != jass.CodeWrongPhase {
		t.Fatalf("chooser repeat: got %v", err)
	}
}

func TestChooseGameModeWithStaleTokenIsDropped(t *testing.T) {
	h := newHarness(t, Config{Rules: jass.Config{MaxRounds: 1}})
	n := h.out.count(h.id(jass.SeatOne))

	err := h.s.ChooseGameMode(h.nextID(), h.id(jass.SeatOne), "stale", jass.ModeObeAbe, card.SuitInvalid)
	if !errors.Is(err, jass.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if h.out.count(h.id(jass.SeatOne)) != n {
		t.Fatalf("stale token must not be answered")
	}
	if h.s.Snapshot().Mode != jass.ModeNone {
		t.Fatalf("mode set by stale token")
	}
}

func TestChooseGameModeMissingTrumpReplies(t *testing.T) {
	h := newHarness(t, Config{Rules: jass.Config{MaxRounds: 1}})

	err := h.choose(jass.SeatOne, jass.ModeTrumpf, card.SuitInvalid)
	if code, _ := jass.RejectCodeOf(err); code != jass.CodeMissingTrumpSuit {
		t.Fatalf("expected MISSING_TRUMP_SUIT, got %v", err)
	}
	last := h.out.last(h.id(jass.SeatOne))
	if last.Type != codec.TypeError || last.ReplyTo != h.reqID {
		t.Fatalf("reply = %+v", last)
	}
	if resp := decode[codec.ErrorResponse](t, last); resp.Code != string(jass.CodeMissingTrumpSuit) {
		t.Fatalf("reply code = %q", resp.Code)
	}
	if got := h.out.ofType(h.id(jass.SeatTwo), codec.TypeBroadcastGameMode); len(got) != 0 {
		t.Fatalf("rejected choice was broadcast")
	}
}

func TestChooseGameModeBroadcastsAndPromptsLeader(t *testing.T) {
	h := newHarness(t, Config{Rules: jass.Config{MaxRounds: 1}})

	if err := h.choose(jass.SeatOne, jass.ModeTrumpf, card.Spades); err != nil {
		t.Fatalf("choose err: %v", err)
	}
	reqID := h.reqID

	var seq uint64
	for seat := jass.SeatOne; seat < jass.NumSeats; seat++ {
		got := h.out.ofType(h.id(seat), codec.TypeBroadcastGameMode)
		if len(got) != 1 {
			t.Fatalf("seat %v got %d BroadcastGameMode", seat, len(got))
		}
		bgm := decode[codec.BroadcastGameMode](t, got[0])
		if bgm.Mode != "TRUMPF" || bgm.TrumpSuit != card.Spades.Key() || bgm.Leader != "anna" {
			t.Fatalf("seat %v BroadcastGameMode = %+v", seat, bgm)
		}
		wantReply := uint64(0)
		if seat == jass.SeatOne {
			wantReply = reqID
		}
		if got[0].ReplyTo != wantReply {
			t.Fatalf("seat %v replyTo = %d, want %d", seat, got[0].ReplyTo, wantReply)
		}
		if seq == 0 {
			seq = got[0].Seq
		} else if got[0].Seq != seq {
			t.Fatalf("broadcast copies carry different seq")
		}

		turns := h.out.ofType(h.id(seat), codec.TypeBroadcastTurn)
		if len(turns) != 1 {
			t.Fatalf("seat %v got %d BroadcastTurn", seat, len(turns))
		}
		if bt := decode[codec.BroadcastTurn](t, turns[0]); bt.LeaderUsername != "anna" || len(bt.CardsSoFar) != 0 {
			t.Fatalf("opening turn = %+v", bt)
		}
	}

	prompts := h.out.ofType(h.id(jass.SeatOne), codec.TypeYourTurn)
	if len(prompts) != 1 {
		t.Fatalf("leader got %d prompts", len(prompts))
	}
	if yt := decode[codec.YourTurn](t, prompts[0]); len(yt.LegalCards) != jass.HandSize || yt.TurnID != 1 {
		t.Fatalf("prompt = %+v", yt)
	}
	if got := h.out.ofType(h.id(jass.SeatTwo), codec.TypeYourTurn); len(got) != 0 {
		t.Fatalf("seat two prompted out of turn")
	}
}

func TestPlayCardRejectionsGoToActorOnly(t *testing.T) {
	h := newHarness(t, Config{Rules: jass.Config{MaxRounds: 1}})
	if err := h.choose(jass.SeatOne, jass.ModeObeAbe, card.SuitInvalid); err != nil {
		t.Fatalf("choose err: %v", err)
	}
	others := h.out.count(h.id(jass.SeatThree))

	err := h.play(jass.SeatTwo, card.MustParse("6d"))
	if code, _ := jass.RejectCodeOf(err); code != jass.CodeNotYourTurn {
		t.Fatalf("expected NOT_YOUR_TURN, got %v", err)
	}
	pc := decode[codec.PlayedCard](t, h.out.last(h.id(jass.SeatTwo)))
	if pc.Accepted || pc.Code != string(jass.CodeNotYourTurn) {
		t.Fatalf("reply = %+v", pc)
	}

	err = h.play(jass.SeatOne, card.MustParse("6d"))
	if code, _ := jass.RejectCodeOf(err); code != jass.CodeCardNotInHand {
		t.Fatalf("expected CARD_NOT_IN_HAND, got %v", err)
	}

	err = h.s.PlayCard(h.nextID(), h.id(jass.SeatOne), "stale", card.MustParse("6h"))
	if !errors.Is(err, jass.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	pc = decode[codec.PlayedCard](t, h.out.last(h.id(jass.SeatOne)))
	if pc.Accepted || pc.Code != rejectedCode {
		t.Fatalf("stale token reply = %+v", pc)
	}

	err = h.s.PlayCard(h.nextID(), 999, "tok-x", card.MustParse("6h"))
	if !errors.Is(err, jass.ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
	pc = decode[codec.PlayedCard](t, h.out.last(999))
	if pc.Code != string(jass.CodeUnknownPlayer) || h.out.last(999).ReplyTo != h.reqID {
		t.Fatalf("unknown player reply = %+v", pc)
	}

	if h.out.count(h.id(jass.SeatThree)) != others {
		t.Fatalf("rejections leaked to other seats")
	}
	if len(h.s.match.Hand(jass.SeatOne)) != jass.HandSize {
		t.Fatalf("rejected plays changed the hand")
	}
}

func TestDuplicateRequestResendsCachedReply(t *testing.T) {
	h := newHarness(t, Config{Rules: jass.Config{MaxRounds: 1}})
	if err := h.choose(jass.SeatOne, jass.ModeObeAbe, card.SuitInvalid); err != nil {
		t.Fatalf("choose err: %v", err)
	}

	id := h.nextID()
	c := card.MustParse("Ah")
	if err := h.s.PlayCard(id, h.id(jass.SeatOne), "tok-anna", c); err != nil {
		t.Fatalf("play err: %v", err)
	}
	reply := h.out.lastRawOfType(h.id(jass.SeatOne), codec.TypePlayedCard)
	turns := len(h.out.ofType(h.id(jass.SeatTwo), codec.TypeBroadcastTurn))

	if err := h.s.PlayCard(id, h.id(jass.SeatOne), "tok-anna", c); err != nil {
		t.Fatalf("duplicate play err: %v", err)
	}
	if !bytes.Equal(h.out.lastRaw(h.id(jass.SeatOne)), reply) {
		t.Fatalf("duplicate did not re-send the cached reply")
	}
	if len(h.out.ofType(h.id(jass.SeatTwo), codec.TypeBroadcastTurn)) != turns {
		t.Fatalf("duplicate produced a broadcast")
	}
	if len(h.s.match.Hand(jass.SeatOne)) != jass.HandSize-1 {
		t.Fatalf("duplicate changed the hand")
	}

	n := h.out.count(h.id(jass.SeatOne))
	if err := h.s.PlayCard(id-1, h.id(jass.SeatOne), "tok-anna", card.MustParse("Kh")); err != nil {
		t.Fatalf("stale request err: %v", err)
	}
	if h.out.count(h.id(jass.SeatOne)) != n {
		t.Fatalf("stale request was answered")
	}
}

func TestTurnOrderAndTrickResult(t *testing.T) {
	h := newHarness(t, Config{Rules: jass.Config{MaxRounds: 1}})
	if err := h.choose(jass.SeatOne, jass.ModeObeAbe, card.SuitInvalid); err != nil {
		t.Fatalf("choose err: %v", err)
	}

	plays := []struct {
		seat jass.Seat
		card string
	}{
		{jass.SeatOne, "Kh"},
		{jass.SeatTwo, "Ad"},
		{jass.SeatThree, "As"},
		{jass.SeatFour, "Ac"},
	}
	for i, p := range plays {
		if err := h.play(p.seat, card.MustParse(p.card)); err != nil {
			t.Fatalf("play %d err: %v", i, err)
		}
		pc := decode[codec.PlayedCard](t, h.out.ofType(h.id(p.seat), codec.TypePlayedCard)[0])
		if !pc.Accepted || pc.Card == nil || pc.Card.ID != card.MustParse(p.card).ID() {
			t.Fatalf("play %d reply = %+v", i, pc)
		}
		if i < 3 {
			next := plays[i+1].seat
			if got := h.out.ofType(h.id(next), codec.TypeYourTurn); len(got) != 1 {
				t.Fatalf("seat %v prompts = %d", next, len(got))
			}
		}
	}

	turns := h.out.ofType(h.id(jass.SeatThree), codec.TypeBroadcastTurn)
	last := decode[codec.BroadcastTurn](t, turns[len(turns)-1])
	if len(last.CardsSoFar) != 4 || last.NextUsername != "anna" {
		t.Fatalf("final turn = %+v", last)
	}
	for i, p := range last.CardsSoFar {
		if p.Seat != int(plays[i].seat) {
			t.Fatalf("play order = %+v", last.CardsSoFar)
		}
	}

	results := h.out.ofType(h.id(jass.SeatTwo), codec.TypeTrickResult)
	if len(results) != 1 {
		t.Fatalf("trick results = %d", len(results))
	}
	tr := decode[codec.TrickResult](t, results[0])
	// king 4 + three aces 33
	if tr.WinnerUsername != "anna" || tr.Points != 37 || tr.TeamScores != [2]int{37, 0} {
		t.Fatalf("trick result = %+v", tr)
	}
	if tricks := h.store.Tricks("m_test"); len(tricks) != 1 || tricks[0].Winner != 0 {
		t.Fatalf("recorded tricks = %+v", tricks)
	}
}

func TestFullMatchRecordsResults(t *testing.T) {
	h := newHarness(t, Config{Rules: jass.Config{MaxRounds: 1}})
	closed := make(chan CloseInfo, 1)
	h.s.AddCloseHook(func(info CloseInfo) { closed <- info })

	if err := h.choose(jass.SeatOne, jass.ModeObeAbe, card.SuitInvalid); err != nil {
		t.Fatalf("choose err: %v", err)
	}
	h.playOutRound(t)

	id := h.id(jass.SeatFour)
	if got := h.out.ofType(id, codec.TypeTrickResult); len(got) != jass.HandSize {
		t.Fatalf("trick results = %d", len(got))
	}
	summaries := h.out.ofType(id, codec.TypeRoundSummary)
	if len(summaries) != 1 {
		t.Fatalf("round summaries = %d", len(summaries))
	}
	rs := decode[codec.RoundSummary](t, summaries[0])
	// seat one holds every heart and leads all nine tricks
	if rs.Points != [2]int{157, 0} || rs.MatschTeam != 1 || rs.Bonus != [2]int{100, 0} || rs.Totals != [2]int{257, 0} {
		t.Fatalf("round summary = %+v", rs)
	}

	ms := h.out.ofType(id, codec.TypeMatchSummary)
	if len(ms) != 1 {
		t.Fatalf("match summaries = %d", len(ms))
	}
	if sum := decode[codec.MatchSummary](t, ms[0]); sum.WinningTeam != 1 || sum.Rounds != 1 || sum.Totals != [2]int{257, 0} {
		t.Fatalf("match summary = %+v", sum)
	}

	select {
	case info := <-closed:
		if info.Aborted || info.MatchID != "m_test" {
			t.Fatalf("close info = %+v", info)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("close hook not called")
	}
	<-h.s.Done()

	if rounds := h.store.Rounds("m_test"); len(rounds) != 1 || rounds[0].MatschTeam != 1 {
		t.Fatalf("recorded rounds = %+v", rounds)
	}
	if tricks := h.store.Tricks("m_test"); len(tricks) != jass.HandSize {
		t.Fatalf("recorded tricks = %d", len(tricks))
	}
	end, ok := h.store.End("m_test")
	if !ok || end.Aborted || end.WinningTeam != 1 {
		t.Fatalf("recorded end = %+v ok=%v", end, ok)
	}
	// history uses the same team ids as GameFound
	items, err := h.store.ListRecent(context.Background(), h.id(jass.SeatTwo), 5)
	if err != nil || len(items) != 1 {
		t.Fatalf("history = %+v err=%v", items, err)
	}
	if items[0].Seat != 1 || items[0].Team != 2 || items[0].Players[0].Team != 1 {
		t.Fatalf("history seat/team = %d/%d players=%+v", items[0].Seat, items[0].Team, items[0].Players)
	}

	if err := h.play(jass.SeatOne, card.MustParse("6h")); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("play after end: got %v", err)
	}
}

func TestNextRoundStartsAfterDelay(t *testing.T) {
	h := newHarness(t, Config{Rules: jass.Config{MaxRounds: 2}, NextRoundDelay: 150 * time.Millisecond})
	if err := h.choose(jass.SeatOne, jass.ModeUndeUfe, card.SuitInvalid); err != nil {
		t.Fatalf("choose err: %v", err)
	}
	h.playOutRound(t)

	if phase := h.s.Snapshot().Phase; phase != jass.PhaseRoundEnd {
		t.Fatalf("phase after round one = %v", phase)
	}
	waitFor(t, "second deal", func() bool {
		return len(h.out.ofType(h.id(jass.SeatTwo), codec.TypeDeck)) == 2
	})

	decks := h.out.ofType(h.id(jass.SeatTwo), codec.TypeDeck)
	if deck := decode[codec.Deck](t, decks[1]); deck.RoundID != "m_test_r2" || deck.RoundNumber != 2 {
		t.Fatalf("second deck = %+v", deck)
	}
	if got := h.out.ofType(h.id(jass.SeatTwo), codec.TypeChooseGameMode); len(got) != 1 {
		t.Fatalf("seat two should choose round two, got %d requests", len(got))
	}
	if err := h.choose(jass.SeatOne, jass.ModeObeAbe, card.SuitInvalid); !errors.Is(err, jass.ErrNotAuthorized) {
		t.Fatalf("previous chooser: got %v", err)
	}
	if err := h.choose(jass.SeatTwo, jass.ModeObeAbe, card.SuitInvalid); err != nil {
		t.Fatalf("round two choose err: %v", err)
	}
}

func TestDisconnectAbortsMatch(t *testing.T) {
	h := newHarness(t, Config{Rules: jass.Config{MaxRounds: 1}})
	closed := make(chan CloseInfo, 1)
	h.s.AddCloseHook(func(info CloseInfo) { closed <- info })

	if err := h.s.PlayerLeft(h.id(jass.SeatThree)); err != nil {
		t.Fatalf("PlayerLeft err: %v", err)
	}

	for _, seat := range []jass.Seat{jass.SeatOne, jass.SeatTwo, jass.SeatFour} {
		got := h.out.ofType(h.id(seat), codec.TypeMatchAborted)
		if len(got) != 1 {
			t.Fatalf("seat %v got %d MatchAborted", seat, len(got))
		}
		if ma := decode[codec.MatchAborted](t, got[0]); ma.Reason != "player_disconnected" || ma.Username != "chris" {
			t.Fatalf("aborted = %+v", ma)
		}
	}
	if got := h.out.ofType(h.id(jass.SeatThree), codec.TypeMatchAborted); len(got) != 0 {
		t.Fatalf("departed seat was notified")
	}

	select {
	case info := <-closed:
		if !info.Aborted {
			t.Fatalf("close info = %+v", info)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("close hook not called")
	}
	if end, ok := h.store.End("m_test"); !ok || !end.Aborted || end.Reason != "player_disconnected" {
		t.Fatalf("recorded end = %+v ok=%v", end, ok)
	}
	if err := h.choose(jass.SeatOne, jass.ModeObeAbe, card.SuitInvalid); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("choose after abort: got %v", err)
	}
}

func TestBroadcastsAreRecordedInOrder(t *testing.T) {
	h := newHarness(t, Config{Rules: jass.Config{MaxRounds: 1}})
	if err := h.choose(jass.SeatOne, jass.ModeObeAbe, card.SuitInvalid); err != nil {
		t.Fatalf("choose err: %v", err)
	}
	if err := h.play(jass.SeatOne, card.MustParse("Ah")); err != nil {
		t.Fatalf("play err: %v", err)
	}

	events, err := h.store.GetMatchEvents(context.Background(), h.id(jass.SeatTwo), "m_test")
	if err != nil {
		t.Fatalf("events err: %v", err)
	}
	want := []codec.MessageType{codec.TypeBroadcastGameMode, codec.TypeBroadcastTurn, codec.TypeBroadcastTurn}
	if len(events) != len(want) {
		t.Fatalf("events = %+v", events)
	}
	for i, e := range events {
		if e.EventType != string(want[i]) {
			t.Fatalf("event %d type %s, want %s", i, e.EventType, want[i])
		}
		if i > 0 && e.Seq <= events[i-1].Seq {
			t.Fatalf("seq not increasing: %+v", events)
		}
	}
}

func TestNewRejectsDuplicatePlayers(t *testing.T) {
	seats := testBindings()
	seats[3].Player = seats[0].Player
	if _, err := New("m_dup", seats, Config{}, nil, nil); !errors.Is(err, jass.ErrDuplicatePlayer) {
		t.Fatalf("expected ErrDuplicatePlayer, got %v", err)
	}
}
