package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jcharra/Entris/internal/multiplayer"
)

// playerSep joins screen names in the players column. Names never contain
// a newline because they arrive as single form values.
const playerSep = "\n"

// MatchRecord is a finished online game as stored.
type MatchRecord struct {
	ID         int64
	GameID     int
	Size       int
	Dimensions string
	Players    []string
	Winner     string // Empty if abandoned
	EndReason  string // "completed", "abandoned"
	Duration   time.Duration
	StartedAt  time.Time
	CreatedAt  time.Time
}

// SaveMatchResult implements multiplayer.MatchResultSaver.
func (s *Store) SaveMatchResult(res multiplayer.MatchResult) error {
	var winner sql.NullString
	if res.Winner != "" {
		winner = sql.NullString{String: res.Winner, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO matches
		 (game_id, size, dimensions, players, winner, end_reason, duration_secs, started_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int(res.GameID),
		res.Size,
		res.Dimensions,
		strings.Join(res.Players, playerSep),
		winner,
		res.Reason.String(),
		int(res.Duration().Seconds()),
		res.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("storage: cannot save match: %w", err)
	}
	return nil
}

// Ensure Store implements MatchResultSaver
var _ multiplayer.MatchResultSaver = (*Store)(nil)

// RecentMatches retrieves the most recent matches, newest first.
func (s *Store) RecentMatches(limit int) ([]MatchRecord, error) {
	return s.queryMatches(
		`SELECT id, game_id, size, dimensions, players, winner, end_reason, duration_secs, started_unix, created_at
		 FROM matches
		 ORDER BY id DESC
		 LIMIT ?`,
		limitOr(limit, 20),
	)
}

// MatchesWonBy retrieves the matches a screen name won, newest first.
func (s *Store) MatchesWonBy(name string, limit int) ([]MatchRecord, error) {
	return s.queryMatches(
		`SELECT id, game_id, size, dimensions, players, winner, end_reason, duration_secs, started_unix, created_at
		 FROM matches
		 WHERE winner = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		name, limitOr(limit, 20),
	)
}

func limitOr(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}

func (s *Store) queryMatches(query string, args ...any) ([]MatchRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query matches: %w", err)
	}
	defer rows.Close()

	var results []MatchRecord
	for rows.Next() {
		var (
			m         MatchRecord
			players   string
			winner    sql.NullString
			secs      int64
			startedAt int64
			createdAt any
		)
		if err := rows.Scan(&m.ID, &m.GameID, &m.Size, &m.Dimensions, &players, &winner, &m.EndReason, &secs, &startedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		if players != "" {
			m.Players = strings.Split(players, playerSep)
		}
		m.Winner = winner.String
		m.Duration = time.Duration(secs) * time.Second
		m.StartedAt = time.Unix(startedAt, 0).UTC()
		m.CreatedAt = parseTime(createdAt)
		results = append(results, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return results, nil
}
