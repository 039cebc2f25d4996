// Package protocol defines the JSON documents exchanged between the game
// server and its clients.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Query and form parameter names.
const (
	ParamGameID     = "game_id"
	ParamPlayerID   = "player_id"
	ParamScreenName = "screen_name"
	ParamSize       = "size"
	ParamDimensions = "dimensions"
	ParamDuckProb   = "duck_prob"
	ParamSnapshot   = "game_snapshot"
	ParamNumLines   = "num_lines"
)

// Endpoint paths.
const (
	PathNew        = "/new"
	PathRegister   = "/register"
	PathStatus     = "/status"
	PathReceive    = "/receive"
	PathSendLines  = "/sendlines"
	PathGetParts   = "/getparts"
	PathUnregister = "/unregister"
	PathList       = "/list"
	PathWatch      = "/watch"
	PathHealth     = "/healthz"
)

// Player is one roster entry.
type Player struct {
	ID         int    `json:"player_id"`
	ScreenName string `json:"screen_name"`
}

// GameSummary is the short status form, also returned by /new and /list.
type GameSummary struct {
	GameID          int      `json:"game_id"`
	Players         []Player `json:"screen_names"`
	Size            int      `json:"size"`
	Dimensions      string   `json:"dimensions"`
	DuckProbability float64  `json:"duck_prob"`
	Started         bool     `json:"started"`
	FreeSlots       int      `json:"free_slots"`
	Timestamp       int64    `json:"timestamp"` // Unix seconds of creation
}

// GameStatus is the long status form: the summary plus every player's
// last uploaded board snapshot keyed by player id.
type GameStatus struct {
	GameSummary
	Snapshots map[string]string `json:"snapshots"`
}

// HasPlayer reports whether id is on the roster.
func (s GameSummary) HasPlayer(id int) bool {
	for _, p := range s.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// RegisterResponse is returned by /register.
type RegisterResponse struct {
	PlayerID int `json:"player_id"`
}

// ReceiveResponse is returned by /receive.
type ReceiveResponse struct {
	Penalty int `json:"penalty"`
}

// InfoResponse carries a human-readable outcome.
type InfoResponse struct {
	Info string `json:"info"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Info message prefixes. Clients key off InfoAdded to confirm delivery.
const (
	InfoAdded = "Added"
)

// Error messages carried in ErrorResponse.
const (
	MsgServerFull     = "Server full!"
	MsgGameFull       = "Game is full"
	MsgGameNotFound   = "Game not found"
	MsgPlayerNotFound = "Player not found"
	MsgNotStarted     = "Game not started"
)

// AddedInfo formats the /sendlines confirmation.
func AddedInfo(lines, playerID int) string {
	return fmt.Sprintf("%s a penalty of %d to all but %d", InfoAdded, lines, playerID)
}

// DeletedInfo formats the /unregister confirmation.
func DeletedInfo(playerID int) string {
	return fmt.Sprintf("Player %d deleted", playerID)
}

// NotFoundInfo formats the /unregister reply for an absent player.
func NotFoundInfo(playerID int) string {
	return fmt.Sprintf("Player %d not found", playerID)
}

// ErrBadDimensions is returned for a dimensions string not in WxH form.
var ErrBadDimensions = errors.New("protocol: dimensions must look like 20x25")

// ParseDimensions parses "WxH".
func ParseDimensions(s string) (width, height int, err error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, ErrBadDimensions
	}
	width, err = strconv.Atoi(ws)
	if err != nil || width <= 0 {
		return 0, 0, ErrBadDimensions
	}
	height, err = strconv.Atoi(hs)
	if err != nil || height <= 0 {
		return 0, 0, ErrBadDimensions
	}
	return width, height, nil
}

// FormatDimensions renders "WxH".
func FormatDimensions(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}
