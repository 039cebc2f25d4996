package entris

import (
	"slices"
	"sync"
	"time"

	"github.com/jcharra/Entris/internal/core"
	"github.com/jcharra/Entris/internal/piece"
)

// Game is one player's session: board, falling piece, queue, score and
// state machine. All methods are safe for concurrent use; the render loop
// and the network sync loop share one Game.
type Game struct {
	mu sync.Mutex

	rules Rules
	mode  Mode
	seed  uint64

	board     *Board
	active    *piece.Piece
	queue     *Queue
	reservoir *Reservoir // online mode only
	penalties *PenaltyChannel
	rng       *piece.RNG // rotations, colors, penalty gaps

	state       State
	score       int
	level       int
	lines       int
	threshold   int
	interval    time.Duration
	accumulated time.Duration
	ticks       uint64

	observers []Observer
	pending   []Event
}

// New creates a game in the waiting state. In solo mode pieces come from a
// local stream seeded with seed; in online mode they come from a reservoir
// that the sync agent feeds through FeedPieces.
func New(rules Rules, mode Mode, seed uint64) *Game {
	rules = rules.normalized()
	g := &Game{
		rules:     rules,
		mode:      mode,
		seed:      seed,
		board:     NewBoard(rules.Width, rules.Height),
		penalties: NewPenaltyChannel(),
		rng:       piece.NewRNG(seed ^ 0x5eed5eed5eed5eed),
		state:     StateWaiting,
		level:     rules.StartLevel,
		threshold: rules.FirstThreshold,
	}
	g.interval = rules.DropInterval(g.level)

	if mode == ModeOnline {
		g.reservoir = NewReservoir()
		g.queue = NewQueue(rules.QueueSize, g.reservoir)
	} else {
		g.queue = NewQueue(rules.QueueSize, StreamSource{Stream: piece.NewStream(seed, rules.DuckProbability)})
	}
	return g
}

// Subscribe registers an observer.
func (g *Game) Subscribe(o Observer) {
	g.mu.Lock()
	g.observers = append(g.observers, o)
	g.mu.Unlock()
}

// unlock releases the game lock and delivers events queued while it was held.
func (g *Game) unlock() {
	events := g.pending
	g.pending = nil
	var observers []Observer
	if len(events) > 0 {
		observers = slices.Clone(g.observers)
	}
	g.mu.Unlock()

	for _, e := range events {
		for _, o := range observers {
			o.Notify(e)
		}
	}
}

func (g *Game) emit(e Event) {
	g.pending = append(g.pending, e)
}

func (g *Game) setState(to State) {
	if g.state == to {
		return
	}
	from := g.state
	g.state = to
	g.emit(StateChanged{From: from, To: to})
}

// Start moves a waiting game to started.
func (g *Game) Start() {
	g.mu.Lock()
	defer g.unlock()
	if g.state == StateWaiting {
		g.setState(StateStarted)
	}
}

// Abort cancels the session from any state.
func (g *Game) Abort() {
	g.mu.Lock()
	defer g.unlock()
	g.setState(StateAborted)
}

// Win marks a started game as victorious.
func (g *Game) Win() {
	g.mu.Lock()
	defer g.unlock()
	if g.state == StateStarted {
		g.setState(StateVictorious)
	}
}

// State returns the current session state.
func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Finished reports whether the game reached a terminal state.
func (g *Game) Finished() bool {
	return g.State().Terminal()
}

// Step advances gravity by dt. Each full drop interval performs one tick.
func (g *Game) Step(dt time.Duration) {
	g.mu.Lock()
	defer g.unlock()
	if g.state != StateStarted || dt <= 0 {
		return
	}
	g.accumulated += dt
	for g.state == StateStarted && g.accumulated >= g.interval {
		g.accumulated -= g.interval
		g.tick()
	}
}

// Tick performs one discrete gravity tick regardless of elapsed time.
func (g *Game) Tick() {
	g.mu.Lock()
	defer g.unlock()
	if g.state == StateStarted {
		g.tick()
	}
}

func (g *Game) tick() {
	g.ticks++
	if g.active != nil {
		if !g.move(South) {
			g.lock()
		}
	} else {
		// Penalties drain one per spawn, so a starved queue holds them back.
		if !g.queue.Ready() {
			return
		}
		if n, ok := g.penalties.PopInbound(); ok {
			g.applyPenalty(n)
			if g.state != StateStarted {
				return
			}
		}
		g.spawn()
	}
	g.clearComplete()
}

func (g *Game) lock() {
	for _, i := range g.active.OccupiedIndices(g.board.Width()) {
		g.board.Set(i, g.active.Color)
	}
	g.active = nil
}

func (g *Game) spawn() {
	kind, ok := g.queue.Next()
	if !ok {
		return
	}
	p := piece.New(kind, g.board.Width()/2-1, g.rng.Intn(4), piece.RandomColor(g.rng))
	g.active = p
	if kind == piece.Duck {
		g.emit(RareShape{})
	}
	if !g.placementLegal(p.Kind, p.Rotation, p.Anchor) {
		g.setState(StateOver)
	}
}

func (g *Game) clearComplete() {
	if rows := g.board.FindCompleteRows(); len(rows) > 0 {
		g.clearRows(rows)
	}
}

func (g *Game) clearRows(rows []int) int {
	n := g.board.ClearRows(rows)
	if n == 0 {
		return 0
	}
	g.lines += n
	g.emit(LinesCleared{Lines: n})

	if g.mode == ModeOnline {
		g.penalties.PushOutbound(n)
		return n
	}
	g.score += g.rules.LinePoints(n)
	if g.rules.Leveling {
		for g.score >= g.threshold {
			g.level++
			g.threshold += g.rules.ThresholdStep
		}
		g.interval = g.rules.DropInterval(g.level)
	}
	return n
}

// applyPenalty pushes n garbage rows in from the bottom. Losing any
// occupied top row ends the game.
func (g *Game) applyPenalty(n int) {
	if n <= 0 {
		return
	}
	if n >= g.board.Height() {
		g.setState(StateOver)
		return
	}
	for r := 0; r < n; r++ {
		if !g.board.RowEmpty(r) {
			g.setState(StateOver)
			return
		}
	}

	w := g.board.Width()
	rows := make([][]core.Color, n)
	for r := range rows {
		row := make([]core.Color, w)
		for c := range row {
			row[c] = core.ColorPenalty
		}
		gap := g.rng.Intn(w)
		width := 1 + g.rng.Intn(2)
		for c := gap; c < gap+width && c < w; c++ {
			row[c] = core.ColorDefault
		}
		rows[r] = row
	}
	g.board.PushBottom(rows)
}

// placementLegal reports whether a piece fits at the given rotation and
// anchor without wrapping around a board edge.
func (g *Game) placementLegal(k piece.Kind, rotation, anchor int) bool {
	w := g.board.Width()
	anchorCol := ((anchor % w) + w) % w
	cells := piece.Lookup(k).Cells(rotation)

	indices := make([]int, 0, len(cells))
	for _, c := range cells {
		if anchorCol+c.Col >= w {
			return false
		}
		indices = append(indices, anchor+c.Col+c.Row*w)
	}
	if !g.board.Fits(indices) {
		return false
	}

	minCol, maxCol := w, -1
	for _, i := range indices {
		col := g.board.Col(i)
		minCol = min(minCol, col)
		maxCol = max(maxCol, col)
	}
	return maxCol-minCol <= piece.MaxSpan()
}

// TryMove shifts the falling piece one cell. It fails, leaving everything
// unchanged, when a destination is occupied or off the board, or when a
// sideways move would cross into another row.
func (g *Game) TryMove(d Direction) bool {
	g.mu.Lock()
	defer g.unlock()
	if g.state != StateStarted {
		return false
	}
	return g.move(d)
}

func (g *Game) move(d Direction) bool {
	if g.active == nil {
		return false
	}
	w := g.board.Width()
	delta := d.Delta(w)
	for _, i := range g.active.OccupiedIndices(w) {
		j := i + delta
		if !g.board.InBounds(j) || g.board.Occupied(j) {
			return false
		}
		if (d == East || d == West) && g.board.Row(i) != g.board.Row(j) {
			return false
		}
	}
	g.active.Anchor += delta
	return true
}

// TryRotate turns the falling piece by steps quarter turns. The candidate
// placement must fit on the board and must not straddle the left and right
// edges.
func (g *Game) TryRotate(steps int, clockwise bool) bool {
	g.mu.Lock()
	defer g.unlock()
	if g.state != StateStarted || g.active == nil {
		return false
	}
	next := g.active.Rotated(steps, clockwise)
	if !g.placementLegal(g.active.Kind, next, g.active.Anchor) {
		return false
	}
	g.active.Rotation = next
	return true
}

// HardDrop moves the falling piece down as far as it goes and locks it.
// Returns the number of rows dropped.
func (g *Game) HardDrop() int {
	g.mu.Lock()
	defer g.unlock()
	if g.state != StateStarted || g.active == nil {
		return 0
	}
	rows := 0
	for g.move(South) {
		rows++
	}
	g.lock()
	g.accumulated = 0
	g.clearComplete()
	return rows
}

// FindCompleteRows returns the rows currently full.
func (g *Game) FindCompleteRows() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board.FindCompleteRows()
}

// ClearRows removes the given rows and accounts for them like a regular
// clear: score in solo mode, outbound penalty in online mode.
func (g *Game) ClearRows(rows []int) int {
	g.mu.Lock()
	defer g.unlock()
	return g.clearRows(rows)
}

// Regurgitate queues n penalty lines received from opponents.
func (g *Game) Regurgitate(n int) {
	g.penalties.Regurgitate(n)
}

// NextOutbound returns the oldest count of cleared lines not yet delivered.
func (g *Game) NextOutbound() (int, bool) {
	return g.penalties.PeekOutbound()
}

// ConfirmOutbound drops the count returned by NextOutbound.
func (g *Game) ConfirmOutbound() {
	g.penalties.ConfirmOutbound()
}

// Penalties exposes the penalty channel.
func (g *Game) Penalties() *PenaltyChannel {
	return g.penalties
}

// FeedPieces hands a batch fetched from the server to the queue.
// It is a no-op in solo mode.
func (g *Game) FeedPieces(batch []piece.Kind) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reservoir == nil {
		return
	}
	g.reservoir.Feed(batch)
	g.queue.Prime()
}

// PendingPieces returns how many fetched pieces wait behind the queue.
func (g *Game) PendingPieces() int {
	if g.reservoir == nil {
		return 0
	}
	return g.reservoir.Len()
}

// QueueLen returns the number of previewed pieces.
func (g *Game) QueueLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queue.Len()
}

// NextPiece pulls the next kind from the queue, keeping the queue full.
func (g *Game) NextPiece() (piece.Kind, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queue.Next()
}

// Snapshot encodes the board with the falling piece drawn in.
func (g *Game) Snapshot() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return EncodeSnapshot(g.board.Width(), g.occupancy())
}

// Occupancy returns the board's filled flags with the falling piece drawn in.
func (g *Game) Occupancy() []bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.occupancy()
}

func (g *Game) occupancy() []bool {
	occ := g.board.Occupancy()
	if g.active != nil {
		for _, i := range g.active.OccupiedIndices(g.board.Width()) {
			if i >= 0 && i < len(occ) {
				occ[i] = true
			}
		}
	}
	return occ
}

// View is an immutable copy of everything a renderer needs.
type View struct {
	Width, Height  int
	Cells          []core.Color // Falling piece drawn in
	Active         []int
	Next           []piece.Kind
	Score          int
	Level          int
	Lines          int
	State          State
	Mode           Mode
	PendingPenalty int
	DropInterval   time.Duration
}

// View returns a render copy of the game.
func (g *Game) View() View {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := View{
		Width:          g.board.Width(),
		Height:         g.board.Height(),
		Cells:          g.board.Cells(),
		Next:           g.queue.Peek(),
		Score:          g.score,
		Level:          g.level,
		Lines:          g.lines,
		State:          g.state,
		Mode:           g.mode,
		PendingPenalty: g.penalties.PendingInbound(),
		DropInterval:   g.interval,
	}
	if g.active != nil {
		v.Active = g.active.OccupiedIndices(v.Width)
		for _, i := range v.Active {
			if i >= 0 && i < len(v.Cells) {
				v.Cells[i] = g.active.Color
			}
		}
	}
	return v
}

// Score returns the current score.
func (g *Game) Score() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.score
}

// Level returns the current level.
func (g *Game) Level() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level
}

// Mode returns the line accounting mode.
func (g *Game) Mode() Mode {
	return g.mode
}

// Rules returns the normalized rules the game runs with.
func (g *Game) Rules() Rules {
	return g.rules
}
