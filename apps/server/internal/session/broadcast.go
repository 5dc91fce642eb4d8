package session

import (
	"log"

	"jass-lite/apps/server/internal/codec"
	"jass-lite/apps/server/internal/ledger"
	"jass-lite/jass"
)

func (s *Session) nextSeq() uint64 {
	s.serverSeq++
	return s.serverSeq
}

func (s *Session) encode(seq, replyTo uint64, payload any) (*codec.ServerEnvelope, []byte, bool) {
	env, err := codec.WrapServerEnvelope(s.ID, seq, replyTo, payload)
	if err != nil {
		log.Printf("[Session %s] Failed to wrap %T: %v", s.ID, payload, err)
		return nil, nil, false
	}
	data, err := env.Marshal()
	if err != nil {
		log.Printf("[Session %s] Failed to marshal %s: %v", s.ID, env.Type, err)
		return nil, nil, false
	}
	return env, data, true
}

func (s *Session) sendToSeat(seat jass.Seat, payload any) {
	if !seat.Valid() {
		return
	}
	if _, data, ok := s.encode(s.nextSeq(), 0, payload); ok {
		s.send(s.seats[seat].Player.ID, data)
	}
}

// reply answers a request directly and caches the frame for duplicate requests.
func (s *Session) reply(seat jass.Seat, requestID uint64, payload any) {
	_, data, ok := s.encode(s.nextSeq(), requestID, payload)
	if !ok {
		return
	}
	if requestID != 0 {
		s.lastReply[seat] = data
	}
	s.send(s.seats[seat].Player.ID, data)
}

func (s *Session) replyToPlayer(playerID, requestID uint64, payload any) {
	if playerID == 0 {
		return
	}
	if _, data, ok := s.encode(s.nextSeq(), requestID, payload); ok {
		s.send(playerID, data)
	}
}

func (s *Session) broadcastLocked(payload any) {
	s.fanOutLocked(payload, jass.InvalidSeat, 0, jass.InvalidSeat)
}

// broadcastReplyLocked broadcasts payload; the acting seat's copy echoes its request id.
func (s *Session) broadcastReplyLocked(actor jass.Seat, requestID uint64, payload any) {
	s.fanOutLocked(payload, actor, requestID, jass.InvalidSeat)
}

func (s *Session) fanOutLocked(payload any, actor jass.Seat, requestID uint64, skip jass.Seat) {
	seq := s.nextSeq()
	env, data, ok := s.encode(seq, 0, payload)
	if !ok {
		return
	}
	s.appendLedgerEvent(env)

	for i, b := range s.seats {
		seat := jass.Seat(i)
		if seat == skip {
			continue
		}
		if seat == actor && requestID != 0 {
			if _, reply, ok := s.encode(seq, requestID, payload); ok {
				s.lastReply[seat] = reply
				s.send(b.Player.ID, reply)
			}
			continue
		}
		s.send(b.Player.ID, data)
	}
}

func (s *Session) appendLedgerEvent(env *codec.ServerEnvelope) {
	encoded, err := codec.EncodeLedger(env)
	if err != nil {
		log.Printf("[Session %s] Failed to encode ledger event %s: %v", s.ID, env.Type, err)
		return
	}
	s.recorder.AppendEvent(ledger.EventRecord{
		MatchID:    s.ID,
		Seq:        env.Seq,
		EventType:  string(env.Type),
		Envelope:   encoded,
		ServerTsMs: env.TsMs,
	})
}
