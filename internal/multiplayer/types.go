// Package multiplayer holds the server side of online games: the registry of
// open and running games, their rosters, penalty queues and shared piece
// streams.
package multiplayer

import (
	"errors"
	"time"
)

// GameID identifies a game on the server.
type GameID int

// PlayerID identifies a player within the server. Player ids are unique
// across all games.
type PlayerID int

// Bounds for randomly assigned ids.
const (
	MinID = 1000
	MaxID = 100000
)

// Size bounds for a game.
const (
	MinSize = 2
	MaxSize = 6
)

// Registry errors.
var (
	ErrGameNotFound   = errors.New("multiplayer: game not found")
	ErrGameFull       = errors.New("multiplayer: game is full")
	ErrPlayerNotFound = errors.New("multiplayer: player not found")
	ErrServerFull     = errors.New("multiplayer: server full")
	ErrNotStarted     = errors.New("multiplayer: game not started")
)

// EndReason describes how a started game ended.
type EndReason int

const (
	// EndCompleted means exactly one player was left standing.
	EndCompleted EndReason = iota
	// EndAbandoned means every player left or timed out without a survivor.
	EndAbandoned
)

// String returns a human-readable end reason.
func (r EndReason) String() string {
	switch r {
	case EndCompleted:
		return "completed"
	case EndAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// MatchResult is the record of a started game handed to a MatchResultSaver
// once the game is collected.
type MatchResult struct {
	GameID     GameID
	Size       int
	Dimensions string
	Players    []string // screen names in join order
	Winner     string   // empty when abandoned
	Reason     EndReason
	StartedAt  time.Time
	EndedAt    time.Time
}

// Duration returns how long the match ran.
func (m MatchResult) Duration() time.Duration {
	if m.EndedAt.Before(m.StartedAt) {
		return 0
	}
	return m.EndedAt.Sub(m.StartedAt)
}

// MatchResultSaver persists finished matches.
// This lets the registry save results without depending on the storage package.
type MatchResultSaver interface {
	SaveMatchResult(result MatchResult) error
}
