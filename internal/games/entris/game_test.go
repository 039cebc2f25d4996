package entris

import (
	"testing"
	"time"

	"github.com/jcharra/Entris/internal/core"
	"github.com/jcharra/Entris/internal/piece"
)

func smallRules() Rules {
	r := DefaultRules()
	r.Width = 10
	r.Height = 10
	r.DuckProbability = 0
	return r
}

// place puts a falling piece on the board, bypassing the queue.
func place(g *Game, k piece.Kind, rotation, anchor int) {
	g.mu.Lock()
	g.active = piece.New(k, anchor, rotation, core.ColorAccent)
	g.mu.Unlock()
}

func TestDeterminism(t *testing.T) {
	g1 := New(DefaultRules(), ModeSolo, 12345)
	g2 := New(DefaultRules(), ModeSolo, 12345)
	g1.Start()
	g2.Start()

	for i := 0; i < 400; i++ {
		for _, g := range []*Game{g1, g2} {
			switch i % 7 {
			case 1:
				g.TryMove(West)
			case 3:
				g.TryRotate(1, true)
			case 5:
				g.TryMove(East)
			}
			g.Step(100 * time.Millisecond)
		}
	}

	if g1.Snapshot() != g2.Snapshot() {
		t.Error("snapshots diverged for identical seeds and inputs")
	}
	if g1.Score() != g2.Score() || g1.State() != g2.State() {
		t.Errorf("score/state mismatch: %d/%s vs %d/%s", g1.Score(), g1.State(), g2.Score(), g2.State())
	}
}

func TestStepAccumulatesDropInterval(t *testing.T) {
	g := New(smallRules(), ModeSolo, 1)

	g.Step(time.Second)
	if len(g.View().Active) != 0 {
		t.Fatal("a waiting game must not advance")
	}

	g.Start()
	g.Step(499 * time.Millisecond)
	if len(g.View().Active) != 0 {
		t.Fatal("piece spawned before a full drop interval")
	}
	g.Step(time.Millisecond)
	if len(g.View().Active) == 0 {
		t.Fatal("piece not spawned after a full drop interval")
	}
}

func TestSpawnAtCenter(t *testing.T) {
	g := New(smallRules(), ModeSolo, 3)
	g.Start()
	g.Tick()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == nil {
		t.Fatal("no piece after first tick")
	}
	if g.active.Anchor != 4 {
		t.Errorf("spawn anchor = %d, expected width/2-1 = 4", g.active.Anchor)
	}
}

func TestMoveBlockedAtEdges(t *testing.T) {
	g := New(smallRules(), ModeSolo, 1)
	g.Start()

	// Block occupies columns 8-9 of rows 0-1.
	place(g, piece.Block, 0, 8)
	if g.TryMove(East) {
		t.Error("east move across the right edge succeeded")
	}
	if !g.TryMove(West) {
		t.Error("west move with free space failed")
	}

	place(g, piece.Block, 0, 0)
	if g.TryMove(West) {
		t.Error("west move across the left edge succeeded")
	}
	if g.TryMove(North) {
		t.Error("north move off the top succeeded")
	}
	if !g.TryMove(South) {
		t.Error("south move on an empty board failed")
	}
}

func TestMoveBlockedByCells(t *testing.T) {
	g := New(smallRules(), ModeSolo, 1)
	g.Start()
	g.board.Set(2*10+6, core.ColorAccent)

	place(g, piece.Block, 0, 4) // columns 4-5, rows 0-1
	if !g.TryMove(South) {
		t.Fatal("south move into free cells failed")
	}
	if g.TryMove(East) {
		t.Error("east move into an occupied cell succeeded")
	}

	g.mu.Lock()
	anchor := g.active.Anchor
	g.mu.Unlock()
	if anchor != 14 {
		t.Errorf("anchor = %d after one south move, expected 14", anchor)
	}
}

func TestRotationRejectedAcrossEdges(t *testing.T) {
	g := New(smallRules(), ModeSolo, 1)
	g.Start()

	// Vertical long piece in the last column; turning it flat would cover
	// columns 9, 0, 1 and 2.
	place(g, piece.Long, 1, 9)
	if g.TryRotate(1, true) {
		t.Error("rotation wrapping around the right edge succeeded")
	}
	if g.TryRotate(1, false) {
		t.Error("counter-clockwise rotation wrapping around the edge succeeded")
	}

	g.mu.Lock()
	rot := g.active.Rotation
	g.mu.Unlock()
	if rot != 1 {
		t.Errorf("rotation changed to %d after a rejected turn", rot)
	}

	place(g, piece.Long, 1, 3)
	if !g.TryRotate(1, true) {
		t.Error("rotation with room to spare failed")
	}
}

func TestRotationRejectedByCells(t *testing.T) {
	g := New(smallRules(), ModeSolo, 1)
	g.Start()
	g.board.Set(5, core.ColorAccent)

	place(g, piece.Long, 1, 3) // column 3, rows 0-3
	if g.TryRotate(1, true) {
		t.Error("rotation into an occupied cell succeeded")
	}
}

func TestRotationRejectedOffBottom(t *testing.T) {
	g := New(smallRules(), ModeSolo, 1)
	g.Start()

	place(g, piece.Long, 0, 8*10+2) // flat on row 8
	if g.TryRotate(1, true) {
		t.Error("rotation below the last row succeeded")
	}
}

func TestLockAndClear(t *testing.T) {
	g := New(smallRules(), ModeSolo, 1)
	g.Start()
	fillRow(g.board, 9, 4, 5)

	place(g, piece.Block, 0, 8*10+4) // fills the gap in rows 8-9
	g.Tick()                         // cannot fall: locks and clears row 9

	if g.Score() != 35*35 {
		t.Errorf("Score() = %d, expected %d", g.Score(), 35*35)
	}
	if rows := g.FindCompleteRows(); len(rows) != 0 {
		t.Errorf("complete rows left: %v", rows)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.board.Occupied(9*10+4) || !g.board.Occupied(9*10+5) {
		t.Error("row 8 remainder of the block did not shift down")
	}
}

func TestHardDrop(t *testing.T) {
	g := New(smallRules(), ModeSolo, 1)
	g.Start()
	place(g, piece.Block, 0, 0)

	if rows := g.HardDrop(); rows != 8 {
		t.Errorf("HardDrop() = %d rows, expected 8", rows)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active != nil {
		t.Error("piece still falling after hard drop")
	}
	if !g.board.Occupied(9 * 10) {
		t.Error("block not locked on the floor")
	}
}

func TestScoringAndLeveling(t *testing.T) {
	g := New(smallRules(), ModeSolo, 1)
	g.Start()

	clearFour := func() {
		g.mu.Lock()
		for r := 6; r < 10; r++ {
			fillRow(g.board, r)
		}
		g.mu.Unlock()
		g.ClearRows(g.FindCompleteRows())
	}

	clearFour()
	if g.Score() != 19600 || g.Level() != 0 {
		t.Fatalf("after one tetra: score %d level %d, expected 19600/0", g.Score(), g.Level())
	}
	clearFour()
	if g.Score() != 39200 || g.Level() != 1 {
		t.Fatalf("after two tetras: score %d level %d, expected 39200/1", g.Score(), g.Level())
	}
	if v := g.View(); v.DropInterval != 475*time.Millisecond {
		t.Errorf("DropInterval = %v, expected 475ms", v.DropInterval)
	}
}

func TestDropIntervalFloor(t *testing.T) {
	r := DefaultRules()
	if got := r.DropInterval(0); got != 500*time.Millisecond {
		t.Errorf("DropInterval(0) = %v", got)
	}
	if got := r.DropInterval(100); got != 50*time.Millisecond {
		t.Errorf("DropInterval(100) = %v, expected the 50ms floor", got)
	}
}

func TestFixedPresetKeepsLevel(t *testing.T) {
	r := smallRules()
	r.Leveling = false
	g := New(r, ModeSolo, 1)
	g.Start()
	for i := 0; i < 3; i++ {
		g.mu.Lock()
		for row := 6; row < 10; row++ {
			fillRow(g.board, row)
		}
		g.mu.Unlock()
		g.ClearRows(g.FindCompleteRows())
	}
	if g.Level() != 0 {
		t.Errorf("Level() = %d with leveling disabled", g.Level())
	}
}

func TestOnlineClearFeedsOutbound(t *testing.T) {
	g := New(smallRules(), ModeOnline, 1)
	g.Start()
	g.mu.Lock()
	fillRow(g.board, 8)
	fillRow(g.board, 9)
	g.mu.Unlock()

	g.ClearRows(g.FindCompleteRows())

	if g.Score() != 0 {
		t.Errorf("online clear scored %d points", g.Score())
	}
	n, ok := g.NextOutbound()
	if !ok || n != 2 {
		t.Fatalf("NextOutbound() = %d, %v; expected 2, true", n, ok)
	}
	g.ConfirmOutbound()
	if _, ok := g.NextOutbound(); ok {
		t.Error("outbound not drained after confirmation")
	}
}

func TestPenaltyInsertion(t *testing.T) {
	g := New(smallRules(), ModeSolo, 9)
	g.Start()
	g.Regurgitate(2)

	g.Tick() // no piece falling: penalty first, then spawn

	if g.State() != StateStarted {
		t.Fatalf("State() = %s after a survivable penalty", g.State())
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for r := 8; r < 10; r++ {
		gray, gapStart, gapEnd := 0, -1, -1
		for c := 0; c < 10; c++ {
			switch g.board.Cell(r*10 + c) {
			case core.ColorPenalty:
				gray++
			case core.ColorDefault:
				if gapStart < 0 {
					gapStart = c
				}
				gapEnd = c
			}
		}
		if gray < 8 || gray > 9 {
			t.Errorf("row %d has %d penalty cells, expected 8 or 9", r, gray)
		}
		if gapEnd-gapStart+1 != 10-gray {
			t.Errorf("row %d gap is not contiguous", r)
		}
	}
	if g.active == nil {
		t.Error("no piece spawned after the penalty")
	}
}

func TestFatalPenalty(t *testing.T) {
	tests := []struct {
		name      string
		filledTop int // first row holding a cell
		penalty   int
		wantOver  bool
	}{
		{"fits exactly", 5, 5, false},
		{"one row too many", 5, 6, true},
		{"full height", 10, 10, true},
		{"empty board small penalty", 10, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(smallRules(), ModeSolo, 2)
			g.Start()
			g.mu.Lock()
			for r := tt.filledTop; r < 10; r++ {
				g.board.Set(r*10, core.ColorAccent)
			}
			g.mu.Unlock()

			g.Regurgitate(tt.penalty)
			g.Tick()

			if over := g.State() == StateOver; over != tt.wantOver {
				t.Errorf("over = %v, expected %v", over, tt.wantOver)
			}
		})
	}
}

func TestSpawnOverlapEndsGame(t *testing.T) {
	g := New(smallRules(), ModeSolo, 4)
	g.Start()
	g.mu.Lock()
	for r := 0; r < 6; r++ {
		fillRow(g.board, r, 0)
	}
	g.mu.Unlock()

	g.Tick()

	if g.State() != StateOver {
		t.Errorf("State() = %s, expected over", g.State())
	}
	g.Step(10 * time.Second) // must be a no-op now
	if g.State() != StateOver {
		t.Error("finished game changed state")
	}
}

func TestQueueStaysFull(t *testing.T) {
	g := New(smallRules(), ModeSolo, 8)
	for i := 0; i < 50; i++ {
		k, ok := g.NextPiece()
		if !ok {
			t.Fatalf("solo queue ran dry at %d", i)
		}
		if !k.Valid() {
			t.Fatalf("invalid kind %d", k)
		}
		if g.QueueLen() != DefaultQueueSize {
			t.Fatalf("QueueLen() = %d, expected %d", g.QueueLen(), DefaultQueueSize)
		}
		for _, next := range g.View().Next {
			if !next.Valid() {
				t.Fatalf("queue holds invalid kind %d", next)
			}
		}
	}
}

func TestOnlineQueueWaitsForPieces(t *testing.T) {
	g := New(smallRules(), ModeOnline, 8)
	g.Start()

	g.Tick()
	if len(g.View().Active) != 0 {
		t.Fatal("spawned a piece without any fetched pieces")
	}

	batch := make([]piece.Kind, 10)
	for i := range batch {
		batch[i] = piece.Kind(1 + i%7)
	}
	g.FeedPieces(batch)
	if g.QueueLen() != 10 {
		t.Fatalf("QueueLen() = %d after priming, expected 10", g.QueueLen())
	}
	if _, ok := g.NextPiece(); ok {
		t.Fatal("queue handed out a piece without a replacement")
	}

	g.FeedPieces([]piece.Kind{piece.T, piece.Long, piece.Kind(42)})
	if g.PendingPieces() != 2 {
		t.Errorf("PendingPieces() = %d, invalid kinds must be dropped", g.PendingPieces())
	}
	k, ok := g.NextPiece()
	if !ok || k != batch[0] {
		t.Fatalf("NextPiece() = %v, %v; expected %v, true", k, ok, batch[0])
	}
	if g.QueueLen() != 10 || g.PendingPieces() != 1 {
		t.Errorf("QueueLen/PendingPieces = %d/%d, expected 10/1", g.QueueLen(), g.PendingPieces())
	}
}

func TestStarvedQueueHoldsPenalties(t *testing.T) {
	g := New(smallRules(), ModeOnline, 8)
	g.Start()

	batch := make([]piece.Kind, 11)
	for i := range batch {
		batch[i] = piece.Block
	}
	g.FeedPieces(batch)
	g.Tick()
	if len(g.View().Active) == 0 {
		t.Fatal("no piece spawned with a spare piece fetched")
	}
	g.HardDrop()
	if g.PendingPieces() != 0 {
		t.Fatalf("PendingPieces() = %d, expected 0", g.PendingPieces())
	}

	for range 3 {
		g.Regurgitate(1)
	}
	for range 3 {
		g.Tick()
	}
	if got := g.Penalties().PendingInbound(); got != 3 {
		t.Fatalf("PendingInbound() = %d after starved ticks, expected 3", got)
	}
	if g.State() != StateStarted {
		t.Fatalf("State() = %s, expected started", g.State())
	}

	g.FeedPieces([]piece.Kind{piece.T})
	g.Tick()
	if got := g.Penalties().PendingInbound(); got != 2 {
		t.Errorf("PendingInbound() = %d after one spawn, expected 2", got)
	}
	if len(g.View().Active) == 0 {
		t.Error("no piece spawned once the queue was fed")
	}
}

func TestStateMachine(t *testing.T) {
	g := New(smallRules(), ModeOnline, 1)
	g.Win()
	if g.State() != StateWaiting {
		t.Fatal("Win() on a waiting game changed the state")
	}
	g.Start()
	g.Win()
	if g.State() != StateVictorious || !g.Finished() {
		t.Fatalf("State() = %s, expected victorious", g.State())
	}
	g.Start()
	if g.State() != StateVictorious {
		t.Error("Start() left a terminal state")
	}
	g.Abort()
	if g.State() != StateAborted {
		t.Errorf("State() = %s, expected aborted", g.State())
	}
}

func TestObserversNotifiedOutsideLock(t *testing.T) {
	r := smallRules()
	r.DuckProbability = 1
	g := New(r, ModeSolo, 6)

	var events []Event
	g.Subscribe(ObserverFunc(func(e Event) {
		_ = g.Score() // re-entering the game must not deadlock
		events = append(events, e)
	}))

	g.Start()
	g.Tick() // spawns the rare shape

	g.mu.Lock()
	fillRow(g.board, 9)
	g.active = nil
	g.mu.Unlock()
	g.ClearRows([]int{9})

	var started, rare, cleared bool
	for _, e := range events {
		switch ev := e.(type) {
		case StateChanged:
			started = started || ev.To == StateStarted
		case RareShape:
			rare = true
		case LinesCleared:
			cleared = ev.Lines == 1
		}
	}
	if !started || !rare || !cleared {
		t.Errorf("events = %#v; missing started/rare/cleared", events)
	}
}
