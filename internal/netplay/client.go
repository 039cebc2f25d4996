// Package netplay is the client side of online games: a typed HTTP client
// for the game server and the background agent that keeps a local game in
// sync with it.
package netplay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/jcharra/Entris/internal/piece"
	"github.com/jcharra/Entris/internal/protocol"
)

// Client errors.
var (
	ErrUnreachable    = errors.New("netplay: server unreachable")
	ErrGameFull       = errors.New("netplay: game is full")
	ErrGameNotFound   = errors.New("netplay: game not found")
	ErrPlayerNotFound = errors.New("netplay: player not found")
	ErrNotStarted     = errors.New("netplay: game not started")
	ErrServerFull     = errors.New("netplay: server full")
	ErrBadResponse    = errors.New("netplay: bad response")
)

// Client talks to one game server. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client. Each round trip is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string { return c.baseURL }

// errorFor maps a non-2xx response to a client error.
func errorFor(status int, msg string) error {
	switch status {
	case http.StatusNotFound:
		if msg == protocol.MsgPlayerNotFound {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("%w: %s", ErrGameNotFound, msg)
	case http.StatusConflict:
		if msg == protocol.MsgNotStarted {
			return ErrNotStarted
		}
		return ErrGameFull
	case http.StatusServiceUnavailable:
		return ErrServerFull
	default:
		return fmt.Errorf("%w: status %d: %s", ErrBadResponse, status, msg)
	}
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) error {
	var (
		req *http.Request
		err error
	)
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		u := c.baseURL + path
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, method, u, nil)
	}
	if err != nil {
		return fmt.Errorf("netplay: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrBadResponse, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e protocol.ErrorResponse
		_ = json.Unmarshal(body, &e)
		return errorFor(resp.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

func ids(gameID, playerID int) url.Values {
	return url.Values{
		protocol.ParamGameID:   {strconv.Itoa(gameID)},
		protocol.ParamPlayerID: {strconv.Itoa(playerID)},
	}
}

// NewGame asks the server to create a game.
func (c *Client) NewGame(ctx context.Context, size int, dimensions string, duckProb float64) (protocol.GameSummary, error) {
	params := url.Values{
		protocol.ParamSize:     {strconv.Itoa(size)},
		protocol.ParamDuckProb: {strconv.FormatFloat(duckProb, 'f', -1, 64)},
	}
	if dimensions != "" {
		params.Set(protocol.ParamDimensions, dimensions)
	}
	var sum protocol.GameSummary
	err := c.do(ctx, http.MethodPost, protocol.PathNew, params, &sum)
	return sum, err
}

// Register takes a seat and returns the assigned player id.
func (c *Client) Register(ctx context.Context, gameID int, screenName string) (int, error) {
	params := url.Values{protocol.ParamGameID: {strconv.Itoa(gameID)}}
	if screenName != "" {
		params.Set(protocol.ParamScreenName, screenName)
	}
	var resp protocol.RegisterResponse
	if err := c.do(ctx, http.MethodGet, protocol.PathRegister, params, &resp); err != nil {
		return 0, err
	}
	if resp.PlayerID == 0 {
		return 0, fmt.Errorf("%w: missing player_id", ErrBadResponse)
	}
	return resp.PlayerID, nil
}

// Status fetches the long status of a game.
func (c *Client) Status(ctx context.Context, gameID int) (protocol.GameStatus, error) {
	var st protocol.GameStatus
	err := c.do(ctx, http.MethodGet, protocol.PathStatus, url.Values{protocol.ParamGameID: {strconv.Itoa(gameID)}}, &st)
	return st, err
}

// Receive uploads a board snapshot and returns one pending penalty.
func (c *Client) Receive(ctx context.Context, gameID, playerID int, snapshot string) (int, error) {
	params := ids(gameID, playerID)
	params.Set(protocol.ParamSnapshot, snapshot)
	var resp protocol.ReceiveResponse
	if err := c.do(ctx, http.MethodGet, protocol.PathReceive, params, &resp); err != nil {
		return 0, err
	}
	return resp.Penalty, nil
}

// SendLines reports cleared lines and returns the server's info message.
func (c *Client) SendLines(ctx context.Context, gameID, playerID, lines int) (string, error) {
	params := ids(gameID, playerID)
	params.Set(protocol.ParamNumLines, strconv.Itoa(lines))
	var resp protocol.InfoResponse
	err := c.do(ctx, http.MethodPost, protocol.PathSendLines, params, &resp)
	return resp.Info, err
}

// GetParts fetches the next batch of pieces from the player's cursor.
func (c *Client) GetParts(ctx context.Context, gameID, playerID int) ([]piece.Kind, error) {
	var raw []int
	if err := c.do(ctx, http.MethodGet, protocol.PathGetParts, ids(gameID, playerID), &raw); err != nil {
		return nil, err
	}
	kinds := make([]piece.Kind, len(raw))
	for i, n := range raw {
		k := piece.Kind(n)
		if !k.Valid() {
			return nil, fmt.Errorf("%w: piece index %d", ErrBadResponse, n)
		}
		kinds[i] = k
	}
	return kinds, nil
}

// Unregister gives up the seat and returns the server's info message.
func (c *Client) Unregister(ctx context.Context, gameID, playerID int) (string, error) {
	var resp protocol.InfoResponse
	err := c.do(ctx, http.MethodPost, protocol.PathUnregister, ids(gameID, playerID), &resp)
	return resp.Info, err
}

// List returns the games still accepting players.
func (c *Client) List(ctx context.Context) ([]protocol.GameSummary, error) {
	var out []protocol.GameSummary
	err := c.do(ctx, http.MethodGet, protocol.PathList, nil, &out)
	return out, err
}

// Watch subscribes to the status stream of a game and calls fn for every
// update until ctx is cancelled, the server closes the stream or fn
// returns an error. A normal close from the server returns nil.
func (c *Client) Watch(ctx context.Context, gameID int, fn func(protocol.GameStatus) error) error {
	u, err := url.Parse(c.baseURL + protocol.PathWatch)
	if err != nil {
		return fmt.Errorf("netplay: watch url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{protocol.ParamGameID: {strconv.Itoa(gameID)}}.Encode()

	conn, resp, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			var e protocol.ErrorResponse
			if resp.Body != nil {
				_ = json.NewDecoder(resp.Body).Decode(&e)
			}
			return errorFor(resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer conn.CloseNow()

	for {
		var st protocol.GameStatus
		if err := wsjson.Read(ctx, conn, &st); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		if err := fn(st); err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return err
		}
	}
}
