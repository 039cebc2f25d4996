package netplay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jcharra/Entris/internal/config"
	"github.com/jcharra/Entris/internal/piece"
	"github.com/jcharra/Entris/internal/protocol"
)

// Phase is the agent's position in its lifecycle.
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseWaiting
	PhaseActive
	PhaseTerminating
	PhaseFailed
	PhaseDone
)

// String returns a human-readable phase.
func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseWaiting:
		return "waiting"
	case PhaseActive:
		return "active"
	case PhaseTerminating:
		return "terminating"
	case PhaseFailed:
		return "failed"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// LocalGame is the part of a game session the agent drives.
type LocalGame interface {
	Start()
	Win()
	Abort()
	Finished() bool
	Snapshot() string
	Regurgitate(n int)
	NextOutbound() (int, bool)
	ConfirmOutbound()
	FeedPieces(batch []piece.Kind)
	PendingPieces() int
}

// AgentConfig tunes the sync loop.
type AgentConfig struct {
	ScreenName       string
	PollInterval     time.Duration
	RegisterAttempts int
	RetryDelay       time.Duration
	RequestTimeout   time.Duration
	LowWater         int
}

// DefaultAgentConfig returns the reference cadence: one cycle per second,
// three registration attempts one second apart.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		PollInterval:     time.Second,
		RegisterAttempts: 3,
		RetryDelay:       time.Second,
		RequestTimeout:   5 * time.Second,
		LowWater:         10,
	}
}

// AgentConfigFrom maps the client section of the config file.
func AgentConfigFrom(cc config.ClientConfig) AgentConfig {
	cfg := DefaultAgentConfig()
	cfg.ScreenName = cc.ScreenName
	if cc.PollInterval > 0 {
		cfg.PollInterval = cc.PollInterval
	}
	if cc.RegisterAttempts > 0 {
		cfg.RegisterAttempts = cc.RegisterAttempts
	}
	if cc.RetryDelay > 0 {
		cfg.RetryDelay = cc.RetryDelay
	}
	if cc.RequestTimeout > 0 {
		cfg.RequestTimeout = cc.RequestTimeout
	}
	if cc.LowWater > 0 {
		cfg.LowWater = cc.LowWater
	}
	return cfg
}

// Opponent is another seated player with their last uploaded board.
type Opponent struct {
	ID         int
	ScreenName string
	Snapshot   string
}

// Agent keeps one local game in sync with the server. Run it on its own
// goroutine; the accessors are safe to call from the render loop.
type Agent struct {
	client *Client
	game   LocalGame
	gameID int
	cfg    AgentConfig
	logger *log.Logger

	mu        sync.Mutex
	phase     Phase
	playerID  int
	size      int
	started   bool
	roster    []protocol.Player
	snapshots map[string]string
	err       error

	abort     chan struct{}
	abortOnce sync.Once
}

// NewAgent creates an agent for gameID. A nil logger uses the default one.
func NewAgent(client *Client, game LocalGame, gameID int, cfg AgentConfig, logger *log.Logger) *Agent {
	if logger == nil {
		logger = log.Default()
	}
	return &Agent{
		client: client,
		game:   game,
		gameID: gameID,
		cfg:    cfg,
		logger: logger.With("game", gameID),
		abort:  make(chan struct{}),
	}
}

// Abort asks the agent to unregister and stop. It is safe to call more
// than once and from any goroutine.
func (a *Agent) Abort() {
	a.abortOnce.Do(func() { close(a.abort) })
}

// Phase returns the current phase.
func (a *Agent) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Err returns the error that made the agent fail, if any.
func (a *Agent) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// PlayerID returns the assigned id, or 0 before registration.
func (a *Agent) PlayerID() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playerID
}

// GameID returns the game being played.
func (a *Agent) GameID() int { return a.gameID }

// Size returns the declared number of seats as last reported.
func (a *Agent) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// Started reports whether the server has started the game.
func (a *Agent) Started() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

// Roster returns the players as last reported, in join order.
func (a *Agent) Roster() []protocol.Player {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.roster)
}

// Opponents returns every other seated player with their latest board.
func (a *Agent) Opponents() []Opponent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Opponent, 0, len(a.roster))
	for _, p := range a.roster {
		if p.ID == a.playerID {
			continue
		}
		out = append(out, Opponent{ID: p.ID, ScreenName: p.ScreenName, Snapshot: a.snapshots[strconv.Itoa(p.ID)]})
	}
	return out
}

func (a *Agent) setPhase(p Phase) {
	a.mu.Lock()
	prev := a.phase
	a.phase = p
	a.mu.Unlock()
	if prev != p {
		a.logger.Debug("phase", "from", prev, "to", p)
	}
}

func (a *Agent) fail(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

// aborted reports whether the owner cancelled.
func (a *Agent) aborted(ctx context.Context) bool {
	select {
	case <-a.abort:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleep waits d and reports false when interrupted.
func (a *Agent) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-a.abort:
		return false
	case <-ctx.Done():
		return false
	}
}

func (a *Agent) request(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.cfg.RequestTimeout)
}

var errAborted = errors.New("netplay: aborted")

// Run executes the agent until the local game ends, the owner aborts or
// the server drops the session. It returns the error that ended the
// session abnormally; the same error is kept for Err.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.connect(ctx); err != nil {
		if errors.Is(err, errAborted) {
			a.game.Abort()
			a.setPhase(PhaseDone)
			return nil
		}
		a.fail(err)
		a.setPhase(PhaseFailed)
		return err
	}

	if a.wait(ctx) && a.prime(ctx) {
		a.game.Start()
		a.active(ctx)
	}
	if !a.game.Finished() {
		a.game.Abort()
	}

	a.terminate()
	if err := a.Err(); err != nil {
		a.setPhase(PhaseFailed)
		return err
	}
	a.setPhase(PhaseDone)
	return nil
}

// connect registers with the server. Transport failures are retried;
// a full or unknown game is not.
func (a *Agent) connect(ctx context.Context) error {
	a.setPhase(PhaseConnecting)

	attempts := max(a.cfg.RegisterAttempts, 1)
	var lastErr error
	for i := 1; i <= attempts; i++ {
		if a.aborted(ctx) {
			return errAborted
		}
		rctx, cancel := a.request(ctx)
		pid, err := a.client.Register(rctx, a.gameID, a.cfg.ScreenName)
		cancel()
		if err == nil {
			a.mu.Lock()
			a.playerID = pid
			a.mu.Unlock()
			a.logger.Info("registered", "player", pid)
			return nil
		}
		if errors.Is(err, ErrGameFull) || errors.Is(err, ErrGameNotFound) || errors.Is(err, ErrServerFull) {
			return err
		}
		lastErr = err
		a.logger.Warn("register failed", "attempt", i, "of", attempts, "err", err)
		if i < attempts && !a.sleep(ctx, a.cfg.RetryDelay) {
			return errAborted
		}
	}
	return fmt.Errorf("netplay: cannot connect after %d attempts: %w", attempts, lastErr)
}

// wait polls until the game fills up. It reports false when the session
// should end without playing.
func (a *Agent) wait(ctx context.Context) bool {
	a.setPhase(PhaseWaiting)
	for !a.aborted(ctx) && !a.game.Finished() {
		st, err := a.status(ctx)
		switch {
		case errors.Is(err, ErrGameNotFound):
			a.fail(err)
			return false
		case err != nil:
			a.logger.Warn("status failed", "err", err)
		case st.Started:
			return true
		}
		if !a.sleep(ctx, a.cfg.PollInterval) {
			return false
		}
	}
	return false
}

// prime fills the piece queue before play starts.
func (a *Agent) prime(ctx context.Context) bool {
	for a.game.PendingPieces() < a.cfg.LowWater {
		if a.aborted(ctx) || a.game.Finished() {
			return false
		}
		if !a.fetchPieces(ctx) && !a.sleep(ctx, a.cfg.RetryDelay) {
			return false
		}
	}
	return true
}

// active runs one sync cycle per poll interval while the game lasts.
func (a *Agent) active(ctx context.Context) {
	a.setPhase(PhaseActive)
	for !a.game.Finished() {
		if !a.sleep(ctx, a.cfg.PollInterval) {
			return
		}
		if a.game.Finished() {
			return
		}
		if !a.cycle(ctx) {
			return
		}
	}
}

// cycle uploads the board, collects a penalty, delivers one outbound
// count, refreshes the roster and tops up pieces. Transient failures skip
// a step; losing the seat ends the session.
func (a *Agent) cycle(ctx context.Context) bool {
	pid := a.PlayerID()

	rctx, cancel := a.request(ctx)
	n, err := a.client.Receive(rctx, a.gameID, pid, a.game.Snapshot())
	cancel()
	switch {
	case a.lostSeat(err):
		return false
	case err != nil:
		a.logger.Warn("receive failed", "err", err)
	case n > 0:
		a.logger.Debug("penalty received", "lines", n)
		a.game.Regurgitate(n)
	}

	if lines, ok := a.game.NextOutbound(); ok {
		rctx, cancel := a.request(ctx)
		info, err := a.client.SendLines(rctx, a.gameID, pid, lines)
		cancel()
		switch {
		case a.lostSeat(err):
			return false
		case err != nil:
			a.logger.Warn("sendlines failed", "lines", lines, "err", err)
		case strings.HasPrefix(info, protocol.InfoAdded):
			a.game.ConfirmOutbound()
		default:
			a.logger.Warn("sendlines not confirmed", "info", info)
		}
	}

	st, err := a.status(ctx)
	switch {
	case a.lostSeat(err):
		return false
	case err != nil:
		a.logger.Warn("status failed", "err", err)
	case !st.HasPlayer(pid):
		a.lostSeat(ErrPlayerNotFound)
		return false
	case st.Started && len(st.Players) == 1:
		a.logger.Info("last player standing")
		a.game.Win()
		return false
	}

	if a.game.PendingPieces() < a.cfg.LowWater {
		a.fetchPieces(ctx)
	}
	return true
}

// lostSeat reports whether err means this player is gone from the game,
// and aborts the local session if so.
func (a *Agent) lostSeat(err error) bool {
	if !errors.Is(err, ErrPlayerNotFound) && !errors.Is(err, ErrGameNotFound) {
		return false
	}
	a.logger.Warn("dropped by server", "err", err)
	a.fail(err)
	a.game.Abort()
	return true
}

// status fetches and records the game status.
func (a *Agent) status(ctx context.Context) (protocol.GameStatus, error) {
	rctx, cancel := a.request(ctx)
	defer cancel()
	st, err := a.client.Status(rctx, a.gameID)
	if err != nil {
		return st, err
	}
	a.mu.Lock()
	a.size = st.Size
	a.started = st.Started
	a.roster = st.Players
	a.snapshots = st.Snapshots
	a.mu.Unlock()
	return st, nil
}

// fetchPieces pulls one batch. A failed fetch yields nothing.
func (a *Agent) fetchPieces(ctx context.Context) bool {
	rctx, cancel := a.request(ctx)
	batch, err := a.client.GetParts(rctx, a.gameID, a.PlayerID())
	cancel()
	if err != nil {
		a.logger.Warn("getparts failed", "err", err)
		return false
	}
	a.game.FeedPieces(batch)
	return len(batch) > 0
}

// terminate gives up the seat. Failures are logged and swallowed.
func (a *Agent) terminate() {
	a.setPhase(PhaseTerminating)
	pid := a.PlayerID()
	if pid == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout)
	defer cancel()
	info, err := a.client.Unregister(ctx, a.gameID, pid)
	if err != nil {
		a.logger.Warn("unregister failed", "err", err)
		return
	}
	a.logger.Info("unregistered", "info", info)
}
