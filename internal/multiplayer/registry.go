package multiplayer

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kamstrup/intmap"

	"github.com/jcharra/Entris/internal/config"
	"github.com/jcharra/Entris/internal/piece"
	"github.com/jcharra/Entris/internal/protocol"
)

// RegistryConfig holds configuration for the registry.
type RegistryConfig struct {
	PlayerTimeout    time.Duration // Started-game players silent longer than this are evicted
	UnstartedTimeout time.Duration // How long a game may wait for players
	MaxGames         int           // Concurrent games before Create fails
	CleanupPeriod    time.Duration // How often the background loop collects games
	PieceBatch       int           // Default batch for Parts
	Seed             uint64        // Zero picks a random seed
}

// DefaultRegistryConfig returns sensible defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		PlayerTimeout:    5 * time.Second,
		UnstartedTimeout: 180 * time.Second,
		MaxGames:         100,
		CleanupPeriod:    30 * time.Second,
		PieceBatch:       10,
	}
}

// RegistryConfigFrom maps the server section of the config file.
func RegistryConfigFrom(sc config.ServerConfig) RegistryConfig {
	cfg := DefaultRegistryConfig()
	if sc.PlayerTimeout > 0 {
		cfg.PlayerTimeout = sc.PlayerTimeout
	}
	if sc.UnstartedTimeout > 0 {
		cfg.UnstartedTimeout = sc.UnstartedTimeout
	}
	if sc.MaxGames > 0 {
		cfg.MaxGames = sc.MaxGames
	}
	if sc.CleanupPeriod > 0 {
		cfg.CleanupPeriod = sc.CleanupPeriod
	}
	if sc.PieceBatch > 0 {
		cfg.PieceBatch = sc.PieceBatch
	}
	return cfg
}

// GameSpec describes a game to create.
type GameSpec struct {
	Size            int
	Width           int
	Height          int
	DuckProbability float64
}

// Registry is the authoritative table of games.
//
// Lock order: Registry.mu, then entry.mu. idMu guards id allocation and the
// random source and is never held while acquiring another lock.
type Registry struct {
	config RegistryConfig
	logger *log.Logger
	now    func() time.Time

	resultSaver MatchResultSaver // Optional, can be nil

	mu    sync.Mutex
	games *intmap.Map[GameID, *entry]

	idMu    sync.Mutex
	rng     *rand.Rand
	players *intmap.Map[PlayerID, GameID]

	done     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates an empty registry. A nil logger uses the default one.
func NewRegistry(cfg RegistryConfig, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	if cfg.PieceBatch <= 0 {
		cfg.PieceBatch = 10
	}
	return &Registry{
		config:  cfg,
		logger:  logger,
		now:     time.Now,
		games:   intmap.New[GameID, *entry](64),
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		players: intmap.New[PlayerID, GameID](256),
		done:    make(chan struct{}),
	}
}

// SetResultSaver sets the optional match result saver.
func (r *Registry) SetResultSaver(saver MatchResultSaver) {
	r.resultSaver = saver
}

// SetClock replaces the time source.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Start begins the background collection loop.
func (r *Registry) Start() {
	if r.config.CleanupPeriod > 0 {
		go r.cleanupLoop()
	}
}

// Stop shuts down the background loop. It is safe to call more than once.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.GC(); n > 0 {
				r.logger.Debug("collected games", "count", n, "remaining", r.Count())
			}
		case <-r.done:
			return
		}
	}
}

// Create stores a new game and returns its summary. Size is clamped to
// [MinSize, MaxSize].
func (r *Registry) Create(spec GameSpec) (protocol.GameSummary, error) {
	r.GC()

	size := max(MinSize, min(MaxSize, spec.Size))
	width := max(config.MinBoardWidth, min(config.MaxBoardWidth, spec.Width))
	height := max(config.MinBoardHeight, min(config.MaxBoardHeight, spec.Height))
	duck := max(0, min(1, spec.DuckProbability))

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.MaxGames > 0 && r.games.Len() >= r.config.MaxGames {
		return protocol.GameSummary{}, ErrServerFull
	}

	r.idMu.Lock()
	id := GameID(r.randomID())
	for r.games.Has(id) {
		id = GameID(r.randomID())
	}
	seed := r.rng.Uint64()
	r.idMu.Unlock()

	e := newEntry(id, size, width, height, duck, seed, r.now())
	r.games.Put(id, e)

	r.logger.Info("game created", "game", id, "size", size, "dimensions", e.dimensions(), "duck_prob", duck)
	return e.summary(), nil
}

// randomID must be called with idMu held.
func (r *Registry) randomID() int {
	return MinID + r.rng.IntN(MaxID-MinID)
}

func (r *Registry) allocPlayerID(game GameID) PlayerID {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	for {
		pid := PlayerID(r.randomID())
		if !r.players.Has(pid) {
			r.players.Put(pid, game)
			return pid
		}
	}
}

func (r *Registry) releasePlayerIDs(ids ...PlayerID) {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	for _, pid := range ids {
		r.players.Del(pid)
	}
}

// lookup returns the entry for id with its lock held.
func (r *Registry) lookup(id GameID) (*entry, error) {
	r.mu.Lock()
	e, ok := r.games.Get(id)
	r.mu.Unlock()
	if !ok {
		return nil, ErrGameNotFound
	}
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil, ErrGameNotFound
	}
	return e, nil
}

// Register seats a new player. An empty screen name becomes "player<id>";
// a name already seated gets a " (n)" suffix. The registration that fills
// the game starts it.
func (r *Registry) Register(id GameID, screenName string) (PlayerID, error) {
	e, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	defer e.mu.Unlock()

	if e.started || len(e.order) >= e.size {
		return 0, ErrGameFull
	}

	pid := r.allocPlayerID(id)
	if screenName == "" {
		screenName = fmt.Sprintf("player%d", pid)
	}
	now := r.now()
	p := &player{id: pid, screenName: e.uniqueName(screenName), lastSeen: now}
	e.seat(p)

	r.logger.Info("player registered", "game", id, "player", pid, "name", p.screenName, "seats", fmt.Sprintf("%d/%d", len(e.order), e.size))

	if len(e.order) == e.size {
		e.start(now)
		r.logger.Info("game started", "game", id, "players", len(e.order))
	}
	return pid, nil
}

// Status returns the long status of a game after evicting stale players.
func (r *Registry) Status(id GameID) (protocol.GameStatus, error) {
	e, err := r.lookup(id)
	if err != nil {
		return protocol.GameStatus{}, err
	}
	defer e.mu.Unlock()

	r.evict(e)
	return e.status(), nil
}

// Receive stores the caller's snapshot, refreshes its last-seen time and
// pops one pending penalty (0 if none).
func (r *Registry) Receive(id GameID, pid PlayerID, snapshot string) (int, error) {
	e, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	defer e.mu.Unlock()

	p, ok := e.players.Get(pid)
	if !ok {
		return 0, ErrPlayerNotFound
	}
	p.lastSeen = r.now()
	p.snapshot = snapshot
	r.evict(e)

	if len(p.penalties) == 0 {
		return 0, nil
	}
	n := p.penalties[0]
	p.penalties = p.penalties[1:]
	return n, nil
}

// SendLines appends n to the penalty queue of every player but the sender.
func (r *Registry) SendLines(id GameID, pid PlayerID, n int) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	sender, ok := e.players.Get(pid)
	if !ok {
		return ErrPlayerNotFound
	}
	sender.lastSeen = r.now()
	if n <= 0 {
		return nil
	}
	for _, other := range e.order {
		if other == pid {
			continue
		}
		p, _ := e.players.Get(other)
		p.penalties = append(p.penalties, n)
	}
	r.logger.Debug("lines sent", "game", id, "player", pid, "lines", n)
	return nil
}

// Parts draws n pieces from the caller's cursor. n <= 0 uses the
// configured batch size.
func (r *Registry) Parts(id GameID, pid PlayerID, n int) ([]piece.Kind, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	p, ok := e.players.Get(pid)
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if !e.started || p.cursor == nil {
		return nil, ErrNotStarted
	}
	if n <= 0 {
		n = r.config.PieceBatch
	}
	return p.cursor.Take(n), nil
}

// Unregister removes a player. It reports false, without error, when the
// player is not seated in the game.
func (r *Registry) Unregister(id GameID, pid PlayerID) (bool, error) {
	e, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	removed := e.remove(pid)
	e.mu.Unlock()

	if removed {
		r.releasePlayerIDs(pid)
		r.logger.Info("player unregistered", "game", id, "player", pid)
	}
	return removed, nil
}

// evict must be called with e.mu held.
func (r *Registry) evict(e *entry) {
	evicted := e.evictStale(r.now(), r.config.PlayerTimeout)
	if len(evicted) == 0 {
		return
	}
	r.releasePlayerIDs(evicted...)
	for _, pid := range evicted {
		r.logger.Info("player timed out", "game", e.id, "player", pid)
	}
}

// List returns the summaries of games still accepting players, oldest id
// first.
func (r *Registry) List() []protocol.GameSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]protocol.GameSummary, 0, r.games.Len())
	for _, e := range r.games.All() {
		e.mu.Lock()
		if !e.started && !e.removed {
			out = append(out, e.summary())
		}
		e.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b protocol.GameSummary) int { return cmp.Compare(a.GameID, b.GameID) })
	return out
}

// Count returns the number of games held.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.games.Len()
}

// GC removes started games with at most one player once nobody is left
// polling, and unstarted games older than the unstarted timeout. The last
// player of a started game is kept, as the recorded winner, until it
// unregisters or falls silent past the player timeout. It returns the
// number of games removed.
func (r *Registry) GC() int {
	now := r.now()
	var (
		dead    []GameID
		results []MatchResult
		freed   []PlayerID
	)

	r.mu.Lock()
	for id, e := range r.games.All() {
		e.mu.Lock()
		var collect bool
		if e.started {
			freed = append(freed, e.evictStale(now, r.config.PlayerTimeout)...)
			collect = len(e.order) == 0
		} else {
			collect = r.config.UnstartedTimeout > 0 && now.Sub(e.createdAt) > r.config.UnstartedTimeout
			if collect {
				freed = append(freed, e.order...)
			}
		}
		if collect {
			e.removed = true
			dead = append(dead, id)
			if e.started {
				results = append(results, e.result(now))
			}
		}
		e.mu.Unlock()
	}
	for _, id := range dead {
		r.games.Del(id)
	}
	r.mu.Unlock()

	r.releasePlayerIDs(freed...)
	for _, id := range dead {
		r.logger.Info("game collected", "game", id)
	}
	if r.resultSaver != nil {
		for _, res := range results {
			if err := r.resultSaver.SaveMatchResult(res); err != nil {
				r.logger.Error("failed to save match result", "game", res.GameID, "err", err)
			}
		}
	}
	return len(dead)
}
