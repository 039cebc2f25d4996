package multiplayer

import (
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/kamstrup/intmap"

	"github.com/jcharra/Entris/internal/piece"
	"github.com/jcharra/Entris/internal/protocol"
)

// player is one seat in a game.
type player struct {
	id         PlayerID
	screenName string
	lastSeen   time.Time
	penalties  []int
	snapshot   string
	cursor     *piece.Stream // nil until the game starts
}

// entry is one game. All fields are guarded by mu.
type entry struct {
	mu sync.Mutex

	id        GameID
	size      int
	width     int
	height    int
	duckProb  float64
	createdAt time.Time
	startedAt time.Time
	started   bool
	removed   bool

	players *intmap.Map[PlayerID, *player]
	order   []PlayerID
	joined  []string // every screen name that ever took a seat
	winner  string   // last player standing, once known

	stream *piece.Stream
}

func newEntry(id GameID, size, width, height int, duckProb float64, seed uint64, now time.Time) *entry {
	return &entry{
		id:        id,
		size:      size,
		width:     width,
		height:    height,
		duckProb:  duckProb,
		createdAt: now,
		players:   intmap.New[PlayerID, *player](size),
		stream:    piece.NewStream(seed, duckProb),
	}
}

func (e *entry) dimensions() string {
	return protocol.FormatDimensions(e.width, e.height)
}

// uniqueName appends "(2)", "(3)", ... until name collides with nobody
// currently seated.
func (e *entry) uniqueName(name string) string {
	taken := func(n string) bool {
		for _, pid := range e.order {
			if p, ok := e.players.Get(pid); ok && p.screenName == n {
				return true
			}
		}
		return false
	}
	if !taken(name) {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s(%d)", name, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

func (e *entry) seat(p *player) {
	e.players.Put(p.id, p)
	e.order = append(e.order, p.id)
	e.joined = append(e.joined, p.screenName)
}

// start marks the game started and hands every player its own cursor onto
// the shared stream.
func (e *entry) start(now time.Time) {
	e.started = true
	e.startedAt = now
	for _, pid := range e.order {
		p, _ := e.players.Get(pid)
		p.lastSeen = now
		p.cursor = e.stream.Fork()
	}
}

func (e *entry) remove(pid PlayerID) bool {
	if !e.drop(pid) {
		return false
	}
	e.settleWinner()
	return true
}

func (e *entry) drop(pid PlayerID) bool {
	if !e.players.Del(pid) {
		return false
	}
	e.order = slices.DeleteFunc(e.order, func(id PlayerID) bool { return id == pid })
	return true
}

// settleWinner records the last player standing of a started game.
func (e *entry) settleWinner() {
	if e.started && len(e.order) == 1 && e.winner == "" {
		last, _ := e.players.Get(e.order[0])
		e.winner = last.screenName
	}
}

// evictStale drops players of a started game not seen within timeout.
func (e *entry) evictStale(now time.Time, timeout time.Duration) []PlayerID {
	if !e.started || timeout <= 0 {
		return nil
	}
	var evicted []PlayerID
	for _, pid := range slices.Clone(e.order) {
		p, _ := e.players.Get(pid)
		if now.Sub(p.lastSeen) > timeout {
			e.drop(pid)
			evicted = append(evicted, pid)
		}
	}
	e.settleWinner()
	return evicted
}

func (e *entry) roster() []protocol.Player {
	out := make([]protocol.Player, 0, len(e.order))
	for _, pid := range e.order {
		p, _ := e.players.Get(pid)
		out = append(out, protocol.Player{ID: int(pid), ScreenName: p.screenName})
	}
	return out
}

func (e *entry) summary() protocol.GameSummary {
	free := e.size - len(e.order)
	if e.started {
		free = 0
	}
	return protocol.GameSummary{
		GameID:          int(e.id),
		Players:         e.roster(),
		Size:            e.size,
		Dimensions:      e.dimensions(),
		DuckProbability: e.duckProb,
		Started:         e.started,
		FreeSlots:       free,
		Timestamp:       e.createdAt.Unix(),
	}
}

func (e *entry) status() protocol.GameStatus {
	snaps := make(map[string]string, len(e.order))
	for _, pid := range e.order {
		p, _ := e.players.Get(pid)
		if p.snapshot != "" {
			snaps[strconv.Itoa(int(pid))] = p.snapshot
		}
	}
	return protocol.GameStatus{GameSummary: e.summary(), Snapshots: snaps}
}

func (e *entry) result(now time.Time) MatchResult {
	res := MatchResult{
		GameID:     e.id,
		Size:       e.size,
		Dimensions: e.dimensions(),
		Players:    slices.Clone(e.joined),
		Winner:     e.winner,
		Reason:     EndAbandoned,
		StartedAt:  e.startedAt,
		EndedAt:    now,
	}
	if e.winner != "" {
		res.Reason = EndCompleted
	}
	return res
}
