package netplay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcharra/Entris/internal/games/entris"
	"github.com/jcharra/Entris/internal/multiplayer"
	"github.com/jcharra/Entris/internal/protocol"
	"github.com/jcharra/Entris/internal/server"
)

var quiet = log.New(io.Discard)

func newStack(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	reg := multiplayer.NewRegistry(multiplayer.DefaultRegistryConfig(), quiet)
	srv := server.New(reg, server.Config{WatchInterval: 10 * time.Millisecond}, quiet)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, NewClient(ts.URL, time.Second)
}

func fastConfig(name string) AgentConfig {
	return AgentConfig{
		ScreenName:       name,
		PollInterval:     10 * time.Millisecond,
		RegisterAttempts: 3,
		RetryDelay:       10 * time.Millisecond,
		RequestTimeout:   time.Second,
		LowWater:         10,
	}
}

func onlineGame(seed uint64) *entris.Game {
	rules := entris.DefaultRules()
	rules.Width, rules.Height = 10, 12
	return entris.New(rules, entris.ModeOnline, seed)
}

func runAgent(ctx context.Context, a *Agent) <-chan error {
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop")
		return nil
	}
}

func TestClientRoundTrip(t *testing.T) {
	_, c := newStack(t)
	ctx := context.Background()

	sum, err := c.NewGame(ctx, 2, "10x12", 0.5)
	require.NoError(t, err)
	assert.Equal(t, "10x12", sum.Dimensions)
	assert.Equal(t, 0.5, sum.DuckProbability)

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	a, err := c.Register(ctx, sum.GameID, "ann")
	require.NoError(t, err)

	_, err = c.GetParts(ctx, sum.GameID, a)
	assert.ErrorIs(t, err, ErrNotStarted)

	b, err := c.Register(ctx, sum.GameID, "ann")
	require.NoError(t, err)

	_, err = c.Register(ctx, sum.GameID, "late")
	assert.ErrorIs(t, err, ErrGameFull)

	st, err := c.Status(ctx, sum.GameID)
	require.NoError(t, err)
	assert.True(t, st.Started)
	assert.Equal(t, "ann(2)", st.Players[1].ScreenName)

	pa, err := c.GetParts(ctx, sum.GameID, a)
	require.NoError(t, err)
	pb, err := c.GetParts(ctx, sum.GameID, b)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)

	info, err := c.SendLines(ctx, sum.GameID, a, 4)
	require.NoError(t, err)
	assert.Contains(t, info, protocol.InfoAdded)

	n, err := c.Receive(ctx, sum.GameID, b, entris.EncodeSnapshot(10, make([]bool, 120)))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = c.Receive(ctx, sum.GameID, 1, "")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	_, err = c.Status(ctx, 1)
	assert.ErrorIs(t, err, ErrGameNotFound)

	info, err = c.Unregister(ctx, sum.GameID, b)
	require.NoError(t, err)
	assert.Contains(t, info, "deleted")
}

func TestClientBadResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"invalid piece", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`[1,2,99]`)) }},
		{"not json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`oops`)) }},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()
			_, err := NewClient(ts.URL, time.Second).GetParts(context.Background(), 1, 2)
			assert.ErrorIs(t, err, ErrBadResponse)
		})
	}
}

func TestClientUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()
	_, err := NewClient(ts.URL, time.Second).List(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestClientServerFull(t *testing.T) {
	cfg := multiplayer.DefaultRegistryConfig()
	cfg.MaxGames = 1
	reg := multiplayer.NewRegistry(cfg, quiet)
	ts := httptest.NewServer(server.New(reg, server.Config{}, quiet).Handler())
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	_, err := c.NewGame(context.Background(), 2, "", 0)
	require.NoError(t, err)
	_, err = c.NewGame(context.Background(), 2, "", 0)
	assert.ErrorIs(t, err, ErrServerFull)
}

func TestClientWatch(t *testing.T) {
	_, c := newStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sum, err := c.NewGame(ctx, 3, "", 0)
	require.NoError(t, err)

	errStop := errors.New("stop")
	var seen []protocol.GameStatus
	err = c.Watch(ctx, sum.GameID, func(st protocol.GameStatus) error {
		seen = append(seen, st)
		if len(seen) == 1 {
			_, err := c.Register(ctx, sum.GameID, "dora")
			require.NoError(t, err)
			return nil
		}
		if len(st.Players) == 1 {
			return errStop
		}
		return nil
	})
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, "dora", seen[len(seen)-1].Players[0].ScreenName)

	err = c.Watch(ctx, 1, func(protocol.GameStatus) error { return nil })
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestAgentsPlayAndWin(t *testing.T) {
	_, c := newStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sum, err := c.NewGame(ctx, 2, "10x12", 0.01)
	require.NoError(t, err)

	gA, gB := onlineGame(1), onlineGame(2)
	agentA := NewAgent(c, gA, sum.GameID, fastConfig("alice"), quiet)
	agentB := NewAgent(c, gB, sum.GameID, fastConfig("bob"), quiet)
	doneA := runAgent(ctx, agentA)
	doneB := runAgent(ctx, agentB)

	require.Eventually(t, func() bool {
		return gA.State() == entris.StateStarted && gB.State() == entris.StateStarted
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, entris.DefaultQueueSize, gA.QueueLen())
	assert.Equal(t, gA.View().Next, gB.View().Next)
	assert.Equal(t, PhaseActive, agentA.Phase())
	assert.Equal(t, 2, agentA.Size())

	// Lines cleared by alice end up queued for bob.
	gA.Penalties().PushOutbound(2)
	require.Eventually(t, func() bool {
		return gB.Penalties().PendingInbound() == 2 && gA.Penalties().OutboundLen() == 0
	}, 5*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		opp := agentA.Opponents()
		return len(opp) == 1 && opp[0].ScreenName == "bob" && opp[0].Snapshot != ""
	}, 5*time.Second, 5*time.Millisecond)

	// Bob's game ends; alice is the last one standing.
	gB.Abort()
	require.NoError(t, waitRun(t, doneB))
	assert.Equal(t, PhaseDone, agentB.Phase())

	require.Eventually(t, func() bool {
		return gA.State() == entris.StateVictorious
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, waitRun(t, doneA))
	assert.Equal(t, PhaseDone, agentA.Phase())
	assert.NoError(t, agentA.Err())
}

func TestAgentRegistrationExhausted(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	g := onlineGame(1)
	a := NewAgent(NewClient(ts.URL, 100*time.Millisecond), g, 1234, fastConfig("x"), quiet)

	start := time.Now()
	err := a.Run(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, PhaseFailed, a.Phase())
	assert.ErrorIs(t, a.Err(), ErrUnreachable)
	assert.Equal(t, entris.StateWaiting, g.State())
}

func TestAgentGameFullNotRetried(t *testing.T) {
	_, c := newStack(t)
	ctx := context.Background()

	sum, err := c.NewGame(ctx, 2, "", 0)
	require.NoError(t, err)
	for range 2 {
		_, err := c.Register(ctx, sum.GameID, "")
		require.NoError(t, err)
	}

	cfg := fastConfig("late")
	cfg.RetryDelay = time.Minute
	a := NewAgent(c, onlineGame(1), sum.GameID, cfg, quiet)
	err = a.Run(ctx)
	assert.ErrorIs(t, err, ErrGameFull)
	assert.Equal(t, PhaseFailed, a.Phase())
}

func TestAgentAbortWhileWaiting(t *testing.T) {
	_, c := newStack(t)
	ctx := context.Background()

	sum, err := c.NewGame(ctx, 3, "", 0)
	require.NoError(t, err)

	g := onlineGame(1)
	a := NewAgent(c, g, sum.GameID, fastConfig("eve"), quiet)
	done := runAgent(ctx, a)

	require.Eventually(t, func() bool {
		return a.Phase() == PhaseWaiting && len(a.Roster()) == 1
	}, 5*time.Second, 5*time.Millisecond)
	assert.False(t, a.Started())

	a.Abort()
	a.Abort()
	require.NoError(t, waitRun(t, done))
	assert.Equal(t, PhaseDone, a.Phase())
	assert.Equal(t, entris.StateAborted, g.State())

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Players)
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		p    Phase
		want string
	}{
		{PhaseConnecting, "connecting"},
		{PhaseWaiting, "waiting"},
		{PhaseActive, "active"},
		{PhaseTerminating, "terminating"},
		{PhaseFailed, "failed"},
		{PhaseDone, "done"},
		{Phase(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.p.String())
	}
}
