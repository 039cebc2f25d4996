package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/jcharra/Entris/internal/multiplayer"
	"github.com/jcharra/Entris/internal/protocol"
)

func newTestServer(t *testing.T, cfg multiplayer.RegistryConfig) *httptest.Server {
	t.Helper()
	logger := log.New(io.Discard)
	reg := multiplayer.NewRegistry(cfg, logger)
	srv := New(reg, Config{WatchInterval: 20 * time.Millisecond}, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, ts *httptest.Server, method, path string, params url.Values, out any) int {
	t.Helper()
	var (
		resp *http.Response
		err  error
	)
	if method == http.MethodPost {
		resp, err = http.PostForm(ts.URL+path, params)
	} else {
		resp, err = http.Get(ts.URL + path + "?" + params.Encode())
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func gameParams(gid, pid int) url.Values {
	return url.Values{
		protocol.ParamGameID:   {strconv.Itoa(gid)},
		protocol.ParamPlayerID: {strconv.Itoa(pid)},
	}
}

func TestGameLifecycle(t *testing.T) {
	ts := newTestServer(t, multiplayer.DefaultRegistryConfig())

	var sum protocol.GameSummary
	code := call(t, ts, http.MethodPost, protocol.PathNew, url.Values{
		protocol.ParamSize:       {"2"},
		protocol.ParamDimensions: {"12x20"},
		protocol.ParamDuckProb:   {"0.3"},
	}, &sum)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, sum.Size)
	assert.Equal(t, "12x20", sum.Dimensions)
	assert.Equal(t, 0.3, sum.DuckProbability)

	var list []protocol.GameSummary
	call(t, ts, http.MethodGet, protocol.PathList, url.Values{}, &list)
	require.Len(t, list, 1)
	assert.Equal(t, sum.GameID, list[0].GameID)

	register := func(name string) int {
		var reg protocol.RegisterResponse
		code := call(t, ts, http.MethodGet, protocol.PathRegister, url.Values{
			protocol.ParamGameID:     {strconv.Itoa(sum.GameID)},
			protocol.ParamScreenName: {name},
		}, &reg)
		require.Equal(t, http.StatusOK, code)
		return reg.PlayerID
	}
	alice := register("alice")
	bob := register("bob")

	var errResp protocol.ErrorResponse
	code = call(t, ts, http.MethodGet, protocol.PathRegister, url.Values{
		protocol.ParamGameID: {strconv.Itoa(sum.GameID)},
	}, &errResp)
	assert.Equal(t, http.StatusConflict, code)
	assert.NotEmpty(t, errResp.Error)

	var st protocol.GameStatus
	call(t, ts, http.MethodGet, protocol.PathStatus, url.Values{protocol.ParamGameID: {strconv.Itoa(sum.GameID)}}, &st)
	assert.True(t, st.Started)
	assert.Equal(t, []protocol.Player{{ID: alice, ScreenName: "alice"}, {ID: bob, ScreenName: "bob"}}, st.Players)

	var partsA, partsB []int
	call(t, ts, http.MethodGet, protocol.PathGetParts, gameParams(sum.GameID, alice), &partsA)
	call(t, ts, http.MethodGet, protocol.PathGetParts, gameParams(sum.GameID, bob), &partsB)
	assert.Len(t, partsA, 10)
	assert.Equal(t, partsA, partsB)

	lines := gameParams(sum.GameID, alice)
	lines.Set(protocol.ParamNumLines, "3")
	var info protocol.InfoResponse
	code = call(t, ts, http.MethodPost, protocol.PathSendLines, lines, &info)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, strings.HasPrefix(info.Info, protocol.InfoAdded))
	assert.Equal(t, "Added a penalty of 3 to all but "+strconv.Itoa(alice), info.Info)

	recv := gameParams(sum.GameID, bob)
	recv.Set(protocol.ParamSnapshot, "12,"+strings.Repeat("0", 12*20))
	var pen protocol.ReceiveResponse
	call(t, ts, http.MethodGet, protocol.PathReceive, recv, &pen)
	assert.Equal(t, 3, pen.Penalty)
	call(t, ts, http.MethodGet, protocol.PathReceive, recv, &pen)
	assert.Equal(t, 0, pen.Penalty)

	call(t, ts, http.MethodGet, protocol.PathStatus, url.Values{protocol.ParamGameID: {strconv.Itoa(sum.GameID)}}, &st)
	assert.Equal(t, recv.Get(protocol.ParamSnapshot), st.Snapshots[strconv.Itoa(bob)])

	code = call(t, ts, http.MethodPost, protocol.PathUnregister, gameParams(sum.GameID, bob), &info)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Player "+strconv.Itoa(bob)+" deleted", info.Info)
	call(t, ts, http.MethodPost, protocol.PathUnregister, gameParams(sum.GameID, bob), &info)
	assert.Equal(t, "Player "+strconv.Itoa(bob)+" not found", info.Info)
}

func TestNewUsesDefaults(t *testing.T) {
	ts := newTestServer(t, multiplayer.DefaultRegistryConfig())

	var sum protocol.GameSummary
	code := call(t, ts, http.MethodPost, protocol.PathNew, url.Values{}, &sum)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, sum.Size)
	assert.Equal(t, "20x25", sum.Dimensions)
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestServer(t, multiplayer.DefaultRegistryConfig())

	var sum protocol.GameSummary
	call(t, ts, http.MethodPost, protocol.PathNew, url.Values{}, &sum)
	var reg protocol.RegisterResponse
	call(t, ts, http.MethodGet, protocol.PathRegister, url.Values{protocol.ParamGameID: {strconv.Itoa(sum.GameID)}}, &reg)

	gid := strconv.Itoa(sum.GameID)
	pid := strconv.Itoa(reg.PlayerID)

	tests := []struct {
		name   string
		method string
		path   string
		params url.Values
		want   int
	}{
		{"status unknown game", http.MethodGet, protocol.PathStatus, url.Values{protocol.ParamGameID: {"1"}}, http.StatusNotFound},
		{"status missing id", http.MethodGet, protocol.PathStatus, url.Values{}, http.StatusBadRequest},
		{"status bad id", http.MethodGet, protocol.PathStatus, url.Values{protocol.ParamGameID: {"abc"}}, http.StatusBadRequest},
		{"register unknown game", http.MethodGet, protocol.PathRegister, url.Values{protocol.ParamGameID: {"1"}}, http.StatusNotFound},
		{"receive unknown player", http.MethodGet, protocol.PathReceive, url.Values{protocol.ParamGameID: {gid}, protocol.ParamPlayerID: {"1"}}, http.StatusNotFound},
		{"receive malformed snapshot", http.MethodGet, protocol.PathReceive, url.Values{protocol.ParamGameID: {gid}, protocol.ParamPlayerID: {pid}, protocol.ParamSnapshot: {"10,0101"}}, http.StatusBadRequest},
		{"sendlines missing count", http.MethodPost, protocol.PathSendLines, url.Values{protocol.ParamGameID: {gid}, protocol.ParamPlayerID: {pid}}, http.StatusBadRequest},
		{"sendlines negative", http.MethodPost, protocol.PathSendLines, url.Values{protocol.ParamGameID: {gid}, protocol.ParamPlayerID: {pid}, protocol.ParamNumLines: {"-1"}}, http.StatusBadRequest},
		{"getparts before start", http.MethodGet, protocol.PathGetParts, url.Values{protocol.ParamGameID: {gid}, protocol.ParamPlayerID: {pid}}, http.StatusConflict},
		{"unregister unknown game", http.MethodPost, protocol.PathUnregister, url.Values{protocol.ParamGameID: {"1"}, protocol.ParamPlayerID: {pid}}, http.StatusNotFound},
		{"new bad dimensions", http.MethodPost, protocol.PathNew, url.Values{protocol.ParamDimensions: {"wide"}}, http.StatusBadRequest},
		{"new bad duck", http.MethodPost, protocol.PathNew, url.Values{protocol.ParamDuckProb: {"1.5"}}, http.StatusBadRequest},
		{"wrong method", http.MethodGet, protocol.PathNew, url.Values{}, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body protocol.ErrorResponse
			code := call(t, ts, tt.method, tt.path, tt.params, &body)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestServerFull(t *testing.T) {
	cfg := multiplayer.DefaultRegistryConfig()
	cfg.MaxGames = 1
	ts := newTestServer(t, cfg)

	require.Equal(t, http.StatusOK, call(t, ts, http.MethodPost, protocol.PathNew, url.Values{}, nil))

	var body protocol.ErrorResponse
	code := call(t, ts, http.MethodPost, protocol.PathNew, url.Values{}, &body)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Server full!", body.Error)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, multiplayer.DefaultRegistryConfig())
	var body map[string]any
	code := call(t, ts, http.MethodGet, protocol.PathHealth, url.Values{}, &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])
}

func TestWatchStreamsStatus(t *testing.T) {
	ts := newTestServer(t, multiplayer.DefaultRegistryConfig())

	var sum protocol.GameSummary
	call(t, ts, http.MethodPost, protocol.PathNew, url.Values{}, &sum)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + protocol.PathWatch + "?" + protocol.ParamGameID + "=" + strconv.Itoa(sum.GameID)
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer c.CloseNow()

	var first protocol.GameStatus
	require.NoError(t, wsjson.Read(ctx, c, &first))
	assert.Equal(t, sum.GameID, first.GameID)
	assert.Empty(t, first.Players)

	var reg protocol.RegisterResponse
	call(t, ts, http.MethodGet, protocol.PathRegister, url.Values{
		protocol.ParamGameID:     {strconv.Itoa(sum.GameID)},
		protocol.ParamScreenName: {"carol"},
	}, &reg)

	assert.Eventually(t, func() bool {
		var st protocol.GameStatus
		if err := wsjson.Read(ctx, c, &st); err != nil {
			return false
		}
		return st.HasPlayer(reg.PlayerID)
	}, 3*time.Second, time.Millisecond)

	_ = c.Close(websocket.StatusNormalClosure, "")
}

func TestWatchUnknownGame(t *testing.T) {
	ts := newTestServer(t, multiplayer.DefaultRegistryConfig())
	resp, err := http.Get(ts.URL + protocol.PathWatch + "?" + protocol.ParamGameID + "=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
