package multiplayer

import (
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcharra/Entris/internal/piece"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type savedResults struct {
	mu      sync.Mutex
	results []MatchResult
	err     error
}

func (s *savedResults) SaveMatchResult(res MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return s.err
}

func newTestRegistry(t *testing.T) (*Registry, *fakeClock) {
	t.Helper()
	cfg := DefaultRegistryConfig()
	cfg.Seed = 42
	reg := NewRegistry(cfg, log.New(io.Discard))
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	reg.SetClock(clock.Now)
	return reg, clock
}

func createGame(t *testing.T, reg *Registry, size int) GameID {
	t.Helper()
	sum, err := reg.Create(GameSpec{Size: size, Width: 20, Height: 25, DuckProbability: 0.01})
	require.NoError(t, err)
	return GameID(sum.GameID)
}

func TestCreateClampsAndEchoes(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tests := []struct {
		name string
		size int
		want int
	}{
		{"below minimum", 1, MinSize},
		{"in range", 4, 4},
		{"above maximum", 9, MaxSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := reg.Create(GameSpec{Size: tt.size, Width: 12, Height: 30, DuckProbability: 0.2})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sum.Size)
			assert.Equal(t, "12x30", sum.Dimensions)
			assert.Equal(t, 0.2, sum.DuckProbability)
			assert.False(t, sum.Started)
			assert.Equal(t, tt.want, sum.FreeSlots)
			assert.GreaterOrEqual(t, sum.GameID, MinID)
			assert.Less(t, sum.GameID, MaxID)
		})
	}
	assert.Equal(t, 3, reg.Count())
}

func TestCreateServerFull(t *testing.T) {
	cfg := DefaultRegistryConfig()
	cfg.MaxGames = 2
	reg := NewRegistry(cfg, log.New(io.Discard))

	for range 2 {
		_, err := reg.Create(GameSpec{Size: 2, Width: 10, Height: 10})
		require.NoError(t, err)
	}
	_, err := reg.Create(GameSpec{Size: 2, Width: 10, Height: 10})
	assert.ErrorIs(t, err, ErrServerFull)
}

func TestRegisterBeyondSizeFails(t *testing.T) {
	reg, _ := newTestRegistry(t)

	for size := MinSize; size <= MaxSize; size++ {
		id := createGame(t, reg, size)
		for i := range size {
			_, err := reg.Register(id, "")
			require.NoError(t, err, "seat %d of %d", i+1, size)
		}
		for range 3 {
			_, err := reg.Register(id, "late")
			assert.ErrorIs(t, err, ErrGameFull)
		}
		st, err := reg.Status(id)
		require.NoError(t, err)
		assert.True(t, st.Started)
		assert.Len(t, st.Players, size)
	}
}

func TestRegisterConcurrentNeverOverfills(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := createGame(t, reg, 3)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		full int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Register(id, "racer")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrGameFull):
				full++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, ok)
	assert.Equal(t, 17, full)
}

func TestRegisterUnknownGame(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Register(GameID(1), "x")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestScreenNames(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := createGame(t, reg, 5)

	a, err := reg.Register(id, "anna")
	require.NoError(t, err)
	_, err = reg.Register(id, "anna")
	require.NoError(t, err)
	_, err = reg.Register(id, "anna")
	require.NoError(t, err)
	anon, err := reg.Register(id, "")
	require.NoError(t, err)

	st, err := reg.Status(id)
	require.NoError(t, err)
	names := make([]string, 0, len(st.Players))
	for _, p := range st.Players {
		names = append(names, p.ScreenName)
	}
	assert.Equal(t, []string{"anna", "anna(2)", "anna(3)", "player" + strconv.Itoa(int(anon))}, names)
	assert.Equal(t, int(a), st.Players[0].ID)
	assert.Equal(t, 1, st.FreeSlots)
}

func TestPlayersReceiveIdenticalPieces(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := createGame(t, reg, 3)

	var pids []PlayerID
	for range 3 {
		pid, err := reg.Register(id, "p")
		require.NoError(t, err)
		pids = append(pids, pid)
	}

	seqs := make([][]piece.Kind, len(pids))
	for round := range 5 {
		for i, pid := range pids {
			// Uneven batch sizes must not change what anyone sees.
			n := 10
			if i == 1 && round%2 == 0 {
				n = 3
			}
			batch, err := reg.Parts(id, pid, n)
			require.NoError(t, err)
			assert.Len(t, batch, n)
			seqs[i] = append(seqs[i], batch...)
		}
	}
	shortest := min(len(seqs[0]), len(seqs[1]), len(seqs[2]))
	assert.Equal(t, seqs[0][:shortest], seqs[1][:shortest])
	assert.Equal(t, seqs[0][:shortest], seqs[2][:shortest])
	for _, k := range seqs[0] {
		assert.True(t, k.Valid())
	}
}

func TestPartsDefaultsAndErrors(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := createGame(t, reg, 2)

	a, err := reg.Register(id, "a")
	require.NoError(t, err)

	_, err = reg.Parts(id, a, 10)
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = reg.Register(id, "b")
	require.NoError(t, err)

	batch, err := reg.Parts(id, a, 0)
	require.NoError(t, err)
	assert.Len(t, batch, 10)

	_, err = reg.Parts(id, PlayerID(7), 10)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestSendLinesSkipsSender(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := createGame(t, reg, 3)

	a, _ := reg.Register(id, "a")
	b, _ := reg.Register(id, "b")
	c, _ := reg.Register(id, "c")

	require.NoError(t, reg.SendLines(id, a, 2))
	require.NoError(t, reg.SendLines(id, b, 3))

	pen := func(pid PlayerID) int {
		n, err := reg.Receive(id, pid, "")
		require.NoError(t, err)
		return n
	}

	assert.Equal(t, 3, pen(a))
	assert.Equal(t, 0, pen(a))
	assert.Equal(t, 2, pen(b))
	assert.Equal(t, 0, pen(b))
	assert.Equal(t, 2, pen(c))
	assert.Equal(t, 3, pen(c))
	assert.Equal(t, 0, pen(c))

	assert.ErrorIs(t, reg.SendLines(id, PlayerID(1), 1), ErrPlayerNotFound)
	assert.ErrorIs(t, reg.SendLines(GameID(1), a, 1), ErrGameNotFound)
}

func TestReceiveStoresSnapshot(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := createGame(t, reg, 2)
	a, _ := reg.Register(id, "a")
	_, _ = reg.Register(id, "b")

	_, err := reg.Receive(id, a, "10,0000000000")
	require.NoError(t, err)

	st, err := reg.Status(id)
	require.NoError(t, err)
	assert.Equal(t, "10,0000000000", st.Snapshots[strconv.Itoa(int(a))])
	assert.Len(t, st.Snapshots, 1)
}

func TestTimeoutEviction(t *testing.T) {
	reg, clock := newTestRegistry(t)
	id := createGame(t, reg, 3)

	a, _ := reg.Register(id, "a")
	b, _ := reg.Register(id, "b")
	c, _ := reg.Register(id, "c")

	clock.Advance(3 * time.Second)
	_, err := reg.Receive(id, a, "")
	require.NoError(t, err)
	_, err = reg.Receive(id, b, "")
	require.NoError(t, err)

	clock.Advance(3 * time.Second)
	st, err := reg.Status(id)
	require.NoError(t, err)
	assert.True(t, st.HasPlayer(int(a)))
	assert.True(t, st.HasPlayer(int(b)))
	assert.False(t, st.HasPlayer(int(c)))

	_, err = reg.Receive(id, c, "")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestNoEvictionBeforeStart(t *testing.T) {
	reg, clock := newTestRegistry(t)
	id := createGame(t, reg, 2)
	a, _ := reg.Register(id, "a")

	clock.Advance(time.Minute)
	st, err := reg.Status(id)
	require.NoError(t, err)
	assert.True(t, st.HasPlayer(int(a)))
}

func TestUnregister(t *testing.T) {
	reg, _ := newTestRegistry(t)
	id := createGame(t, reg, 2)
	a, _ := reg.Register(id, "a")

	removed, err := reg.Unregister(id, a)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = reg.Unregister(id, a)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = reg.Unregister(GameID(1), a)
	assert.ErrorIs(t, err, ErrGameNotFound)

	// The seat is free again.
	sum := reg.List()
	require.Len(t, sum, 1)
	assert.Equal(t, 2, sum[0].FreeSlots)
}

func TestListShowsOnlyOpenGames(t *testing.T) {
	reg, _ := newTestRegistry(t)
	open := createGame(t, reg, 3)
	full := createGame(t, reg, 2)
	_, _ = reg.Register(full, "a")
	_, _ = reg.Register(full, "b")

	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, int(open), list[0].GameID)
}

func TestGCRules(t *testing.T) {
	reg, clock := newTestRegistry(t)
	saver := &savedResults{}
	reg.SetResultSaver(saver)

	stale := createGame(t, reg, 2)
	clock.Advance(100 * time.Second)
	fresh := createGame(t, reg, 2)

	duel := createGame(t, reg, 2)
	a, _ := reg.Register(duel, "alice")
	b, _ := reg.Register(duel, "bob")

	clock.Advance(90 * time.Second)
	_, _ = reg.Receive(duel, a, "")
	_, _ = reg.Receive(duel, b, "")

	assert.Equal(t, 1, reg.GC())
	_, err := reg.Status(stale)
	assert.ErrorIs(t, err, ErrGameNotFound)
	_, err = reg.Status(fresh)
	assert.NoError(t, err)

	// Bob loses and leaves. Alice keeps polling, so the game survives.
	_, err = reg.Unregister(duel, b)
	require.NoError(t, err)
	assert.Equal(t, 0, reg.GC())
	st, err := reg.Status(duel)
	require.NoError(t, err)
	require.Len(t, st.Players, 1)
	assert.Equal(t, int(a), st.Players[0].ID)

	// Alice stops polling.
	clock.Advance(6 * time.Second)
	assert.Equal(t, 1, reg.GC())
	_, err = reg.Status(duel)
	assert.ErrorIs(t, err, ErrGameNotFound)

	require.Len(t, saver.results, 1)
	res := saver.results[0]
	assert.Equal(t, duel, res.GameID)
	assert.Equal(t, "alice", res.Winner)
	assert.Equal(t, EndCompleted, res.Reason)
	assert.Equal(t, []string{"alice", "bob"}, res.Players)
	assert.Equal(t, 96*time.Second, res.Duration())
}

func TestGCAbandonedMatch(t *testing.T) {
	reg, clock := newTestRegistry(t)
	saver := &savedResults{err: errors.New("disk full")}
	reg.SetResultSaver(saver)

	id := createGame(t, reg, 2)
	_, _ = reg.Register(id, "a")
	_, _ = reg.Register(id, "b")

	clock.Advance(10 * time.Second)
	assert.Equal(t, 1, reg.GC())
	require.Len(t, saver.results, 1)
	assert.Equal(t, EndAbandoned, saver.results[0].Reason)
	assert.Empty(t, saver.results[0].Winner)
	assert.Equal(t, 0, reg.Count())
}

func TestCreateCollectsFirst(t *testing.T) {
	cfg := DefaultRegistryConfig()
	cfg.MaxGames = 1
	reg := NewRegistry(cfg, log.New(io.Discard))
	clock := &fakeClock{t: time.Unix(0, 0)}
	reg.SetClock(clock.Now)

	_, err := reg.Create(GameSpec{Size: 2, Width: 10, Height: 10})
	require.NoError(t, err)
	_, err = reg.Create(GameSpec{Size: 2, Width: 10, Height: 10})
	require.ErrorIs(t, err, ErrServerFull)

	clock.Advance(181 * time.Second)
	_, err = reg.Create(GameSpec{Size: 2, Width: 10, Height: 10})
	assert.NoError(t, err)
	assert.Equal(t, 1, reg.Count())
}

func TestStartStop(t *testing.T) {
	cfg := DefaultRegistryConfig()
	cfg.CleanupPeriod = time.Millisecond
	cfg.UnstartedTimeout = time.Nanosecond
	reg := NewRegistry(cfg, log.New(io.Discard))

	_, err := reg.Create(GameSpec{Size: 2, Width: 10, Height: 10})
	require.NoError(t, err)

	reg.Start()
	defer reg.Stop()
	assert.Eventually(t, func() bool { return reg.Count() == 0 }, time.Second, 5*time.Millisecond)

	reg.Stop()
}
