package ledger

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jass-lite/apps/server/internal/dbutil"
)

const defaultLocalDBName = "jass_local.db"

type SQLiteService struct {
	db          *sql.DB
	recentLimit int
}

func NewSQLiteServiceFromEnv() (*SQLiteService, error) {
	dbPath, err := dbutil.LocalPath(defaultLocalDBName, "LEDGER_LOCAL_DATABASE_PATH", "LOCAL_DATABASE_PATH")
	if err != nil {
		return nil, err
	}
	return NewSQLiteService(dbPath, dbutil.EnvInt("HISTORY_RECENT_LIMIT", defaultRecentLimit))
}

func NewSQLiteService(dbPath string, recentLimit int) (*SQLiteService, error) {
	db, err := dbutil.OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), dbutil.OpenTimeout)
	defer cancel()
	if err := dbutil.Exec(ctx, db, sqliteLedgerSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return &SQLiteService{db: db, recentLimit: recentLimit}, nil
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteService) RecordMatch(ctx context.Context, rec MatchRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO matches (match_id, started_at_ms)
VALUES (?, ?)
ON CONFLICT (match_id) DO NOTHING
`, rec.MatchID, rec.StartedAt.UTC().UnixMilli()); err != nil {
		return err
	}
	for _, p := range rec.Players {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO match_players (match_id, seat, account_id, username, team)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (match_id, seat) DO NOTHING
`, rec.MatchID, p.Seat, int64(p.AccountID), p.Username, p.Team); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteService) RecordDeck(ctx context.Context, rec DeckRecord) error {
	hands, err := json.Marshal(rec.Hands)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO round_decks (round_id, match_id, round_number, chooser_seat, hands_json)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (round_id) DO NOTHING
`, rec.RoundID, rec.MatchID, rec.RoundNumber, rec.Chooser, string(hands))
	return err
}

func (s *SQLiteService) RecordTrick(ctx context.Context, rec TrickRecord) error {
	plays, err := json.Marshal(rec.Plays)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO tricks (round_id, trick_id, match_id, leader_seat, plays_json, winner_seat, points)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (round_id, trick_id) DO NOTHING
`, rec.RoundID, int64(rec.TrickID), rec.MatchID, rec.Leader, string(plays), rec.Winner, rec.Points)
	return err
}

func (s *SQLiteService) RecordRound(ctx context.Context, rec RoundRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO rounds (
    round_id, match_id, round_number, chooser_seat, mode, trump_suit,
    team_one_points, team_two_points, team_one_bonus, team_two_bonus,
    matsch_team, team_one_total, team_two_total, ended_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (round_id) DO NOTHING
`, rec.RoundID, rec.MatchID, rec.RoundNumber, rec.Chooser, rec.Mode, rec.TrumpSuit,
		rec.Points[0], rec.Points[1], rec.Bonus[0], rec.Bonus[1],
		rec.MatschTeam, rec.Totals[0], rec.Totals[1], rec.EndedAt.UTC().UnixMilli())
	return err
}

func (s *SQLiteService) RecordMatchEnd(ctx context.Context, rec MatchEndRecord) error {
	aborted := 0
	if rec.Aborted {
		aborted = 1
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE matches
SET ended_at_ms = ?,
    team_one_total = ?,
    team_two_total = ?,
    winning_team = ?,
    rounds = ?,
    aborted = ?,
    abort_reason = ?
WHERE match_id = ?
  AND ended_at_ms IS NULL
`, rec.EndedAt.UTC().UnixMilli(), rec.Totals[0], rec.Totals[1], rec.WinningTeam, rec.Rounds, aborted, rec.Reason, rec.MatchID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteService) AppendEvent(ctx context.Context, rec EventRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO ledger_event_stream (match_id, seq, event_type, envelope_b64, server_ts_ms, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (match_id, seq) DO NOTHING
`, rec.MatchID, int64(rec.Seq), rec.EventType, base64.StdEncoding.EncodeToString(rec.Envelope),
		nullableInt64(rec.ServerTsMs), time.Now().UTC().UnixMilli())
	return err
}

func (s *SQLiteService) ListRecent(ctx context.Context, accountID uint64, limit int) ([]HistoryItem, error) {
	limit = clampLimit(limit, s.recentLimit)
	rows, err := s.db.QueryContext(ctx, `
SELECT m.match_id, m.started_at_ms, m.ended_at_ms, mp.seat, mp.team,
       m.team_one_total, m.team_two_total, m.winning_team, m.rounds, m.aborted
FROM matches AS m
JOIN match_players AS mp ON mp.match_id = m.match_id
WHERE mp.account_id = ?
ORDER BY m.started_at_ms DESC, m.match_id DESC
LIMIT ?
`, int64(accountID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]HistoryItem, 0, limit)
	for rows.Next() {
		var (
			item      HistoryItem
			startedMs int64
			endedMs   sql.NullInt64
			aborted   int
		)
		if err := rows.Scan(&item.MatchID, &startedMs, &endedMs, &item.Seat, &item.Team,
			&item.Totals[0], &item.Totals[1], &item.WinningTeam, &item.Rounds, &aborted); err != nil {
			return nil, err
		}
		item.StartedAt = time.UnixMilli(startedMs).UTC()
		if endedMs.Valid {
			t := time.UnixMilli(endedMs.Int64).UTC()
			item.EndedAt = &t
		}
		item.Aborted = aborted != 0
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range items {
		players, err := s.players(ctx, items[i].MatchID)
		if err != nil {
			return nil, err
		}
		items[i].Players = players
	}
	return items, nil
}

func (s *SQLiteService) players(ctx context.Context, matchID string) ([]PlayerRef, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT account_id, username, seat, team
FROM match_players
WHERE match_id = ?
ORDER BY seat ASC
`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PlayerRef
	for rows.Next() {
		var p PlayerRef
		if err := rows.Scan(&p.AccountID, &p.Username, &p.Seat, &p.Team); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteService) GetMatchEvents(ctx context.Context, accountID uint64, matchID string) ([]EventItem, error) {
	if strings.TrimSpace(matchID) == "" {
		return nil, ErrNotFound
	}
	var member bool
	if err := s.db.QueryRowContext(ctx, `
SELECT EXISTS (
    SELECT 1 FROM match_players WHERE match_id = ? AND account_id = ?
)`, matchID, int64(accountID)).Scan(&member); err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT seq, event_type, envelope_b64, server_ts_ms
FROM ledger_event_stream
WHERE match_id = ?
ORDER BY seq ASC
`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]EventItem, 0, 128)
	for rows.Next() {
		var e EventItem
		var ts sql.NullInt64
		if err := rows.Scan(&e.Seq, &e.EventType, &e.EnvelopeB64, &ts); err != nil {
			return nil, err
		}
		if ts.Valid {
			v := ts.Int64
			e.ServerTsMs = &v
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events, nil
}

var sqliteLedgerSchema = []string{
	`
CREATE TABLE IF NOT EXISTS matches (
    match_id TEXT PRIMARY KEY,
    started_at_ms INTEGER NOT NULL,
    ended_at_ms INTEGER,
    team_one_total INTEGER NOT NULL DEFAULT 0,
    team_two_total INTEGER NOT NULL DEFAULT 0,
    winning_team INTEGER NOT NULL DEFAULT 0,
    rounds INTEGER NOT NULL DEFAULT 0,
    aborted INTEGER NOT NULL DEFAULT 0,
    abort_reason TEXT NOT NULL DEFAULT ''
)`,
	`
CREATE TABLE IF NOT EXISTS match_players (
    match_id TEXT NOT NULL,
    seat INTEGER NOT NULL,
    account_id INTEGER NOT NULL,
    username TEXT NOT NULL,
    team INTEGER NOT NULL,
    PRIMARY KEY (match_id, seat),
    FOREIGN KEY(match_id) REFERENCES matches(match_id) ON DELETE CASCADE
)`,
	`CREATE INDEX IF NOT EXISTS idx_match_players_account ON match_players(account_id)`,
	`
CREATE TABLE IF NOT EXISTS round_decks (
    round_id TEXT PRIMARY KEY,
    match_id TEXT NOT NULL,
    round_number INTEGER NOT NULL,
    chooser_seat INTEGER NOT NULL,
    hands_json TEXT NOT NULL
)`,
	`
CREATE TABLE IF NOT EXISTS tricks (
    round_id TEXT NOT NULL,
    trick_id INTEGER NOT NULL,
    match_id TEXT NOT NULL,
    leader_seat INTEGER NOT NULL,
    plays_json TEXT NOT NULL,
    winner_seat INTEGER NOT NULL,
    points INTEGER NOT NULL,
    PRIMARY KEY (round_id, trick_id)
)`,
	`
CREATE TABLE IF NOT EXISTS rounds (
    round_id TEXT PRIMARY KEY,
    match_id TEXT NOT NULL,
    round_number INTEGER NOT NULL,
    chooser_seat INTEGER NOT NULL,
    mode TEXT NOT NULL,
    trump_suit TEXT NOT NULL DEFAULT '',
    team_one_points INTEGER NOT NULL,
    team_two_points INTEGER NOT NULL,
    team_one_bonus INTEGER NOT NULL DEFAULT 0,
    team_two_bonus INTEGER NOT NULL DEFAULT 0,
    matsch_team INTEGER NOT NULL DEFAULT 0,
    team_one_total INTEGER NOT NULL,
    team_two_total INTEGER NOT NULL,
    ended_at_ms INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_rounds_match ON rounds(match_id, round_number)`,
	`
CREATE TABLE IF NOT EXISTS ledger_event_stream (
    match_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    event_type TEXT NOT NULL,
    envelope_b64 TEXT NOT NULL,
    server_ts_ms INTEGER,
    created_at_ms INTEGER NOT NULL,
    PRIMARY KEY (match_id, seq)
)`,
}
