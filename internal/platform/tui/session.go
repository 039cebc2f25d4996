package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/jcharra/Entris/internal/config"
	"github.com/jcharra/Entris/internal/core"
	"github.com/jcharra/Entris/internal/games/entris"
	"github.com/jcharra/Entris/internal/netplay"
	"github.com/jcharra/Entris/internal/protocol"
	"github.com/jcharra/Entris/internal/storage"
)

// NewOnlineGame looks up gameID on the server and builds a local game with
// the server's board size plus the agent that drives it.
func NewOnlineGame(ctx context.Context, client *netplay.Client, cfg config.Config, gameID int, player string, seed uint64, logger *log.Logger) (*entris.Game, *netplay.Agent, error) {
	reqCtx, cancel := context.WithTimeout(ctx, cfg.Client.RequestTimeout)
	defer cancel()

	st, err := client.Status(reqCtx, gameID)
	if err != nil {
		return nil, nil, err
	}
	w, h, err := protocol.ParseDimensions(st.Dimensions)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", netplay.ErrBadResponse, err)
	}

	rules := entris.RulesFromConfig(cfg.Game)
	rules.Width, rules.Height = w, h
	rules.DuckProbability = st.DuckProbability
	game := entris.New(rules, entris.ModeOnline, seed)

	agentCfg := netplay.AgentConfigFrom(cfg.Client)
	if player != "" {
		agentCfg.ScreenName = player
	}
	return game, netplay.NewAgent(client, game, gameID, agentCfg, logger), nil
}

// SessionOptions configures a full menu-driven session.
type SessionOptions struct {
	Config    config.Config
	Store     *storage.Store  // Optional
	Client    *netplay.Client // Nil disables online play
	Logger    *log.Logger     // Receives sync agent logs
	Player    string
	SessionID string
	Runtime   core.RuntimeConfig
	Context   context.Context
}

type sessionScreen int

const (
	screenMenu sessionScreen = iota
	screenLobby
	screenJoining
	screenGame
	screenScores
)

type joinedMsg struct {
	gameID int
	game   *entris.Game
	agent  *netplay.Agent
	err    error
}

// SessionModel manages the session flow: menu -> solo game, online lobby
// -> online game, or scoreboard, and back to the menu.
type SessionModel struct {
	opts    SessionOptions
	screen  sessionScreen
	menu    MenuModel
	lobby   LobbyModel
	game    Model
	scores  ScoreboardModel
	joining int
	quitting bool
}

// NewSessionModel creates a new session model.
func NewSessionModel(opts SessionOptions) SessionModel {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.SessionID != "" {
		opts.Logger = opts.Logger.With("session", opts.SessionID)
	}
	return SessionModel{
		opts:   opts,
		screen: screenMenu,
		menu:   newEmbeddedMenu(opts),
	}
}

func newEmbeddedMenu(opts SessionOptions) MenuModel {
	m := NewMenuModel(opts.Store, opts.Runtime, opts.Client != nil)
	m.embedded = true
	return m
}

// Init initializes the session.
func (m SessionModel) Init() tea.Cmd {
	return m.menu.Init()
}

// Update handles messages for the session.
func (m SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.opts.Runtime.ScreenW = msg.Width
		m.opts.Runtime.ScreenH = msg.Height
	case joinedMsg:
		return m.handleJoined(msg)
	case TickMsg:
		// Ticks outside a game end the tick chain.
		if m.screen != screenGame {
			return m, nil
		}
	}

	switch m.screen {
	case screenLobby:
		return m.updateLobby(msg)
	case screenJoining:
		if k, ok := msg.(tea.KeyMsg); ok && k.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case screenGame:
		return m.updateGame(msg)
	case screenScores:
		return m.updateScores(msg)
	default:
		return m.updateMenu(msg)
	}
}

func (m SessionModel) toMenu() (tea.Model, tea.Cmd) {
	m.screen = screenMenu
	m.menu = newEmbeddedMenu(m.opts)
	return m, m.menu.Init()
}

// updateMenu handles updates when in menu mode.
func (m SessionModel) updateMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.menu.Update(msg)
	if mm, ok := next.(MenuModel); ok {
		m.menu = mm
	}

	if m.menu.IsQuitting() {
		m.quitting = true
		return m, tea.Quit
	}

	selected := m.menu.Selected()
	if selected == nil {
		return m, cmd
	}

	switch selected.Choice {
	case ChoiceSolo:
		return m.startSolo(selected.Difficulty)
	case ChoiceOnline:
		m.lobby = NewLobbyModel(LobbyOptions{
			Client:  m.opts.Client,
			NewGame: m.opts.Config.Server.Defaults,
			Width:   m.opts.Runtime.ScreenW,
			Height:  m.opts.Runtime.ScreenH,
		})
		m.lobby.embedded = true
		m.screen = screenLobby
		return m, m.lobby.Init()
	case ChoiceScores:
		m.scores = NewScoreboardModel(m.opts.Store, m.opts.Runtime.ScreenW, m.opts.Runtime.ScreenH)
		m.scores.embedded = true
		m.screen = screenScores
		return m, m.scores.Init()
	}
	return m, cmd
}

func (m SessionModel) seed() uint64 {
	if m.opts.Runtime.Seed != 0 {
		return uint64(m.opts.Runtime.Seed)
	}
	return uint64(time.Now().UnixNano())
}

func (m SessionModel) startSolo(preset config.DifficultyPreset) (tea.Model, tea.Cmd) {
	rules := entris.RulesFromConfig(m.opts.Config.Game).WithPreset(preset)
	game := entris.New(rules, entris.ModeSolo, m.seed())

	m.game = NewModel(game, Options{
		Player:     m.opts.Player,
		Difficulty: preset,
		Store:      m.opts.Store,
		Context:    m.opts.Context,
		Runtime:    m.opts.Runtime,
	})
	m.game.embedded = true
	m.screen = screenGame
	return m, m.game.Init()
}

// updateLobby handles updates when browsing online games.
func (m SessionModel) updateLobby(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.lobby.Update(msg)
	if lm, ok := next.(LobbyModel); ok {
		m.lobby = lm
	}

	switch {
	case m.lobby.IsQuitting():
		m.quitting = true
		return m, tea.Quit
	case m.lobby.BackToMenu():
		return m.toMenu()
	}

	gameID, ok := m.lobby.Chosen()
	if !ok {
		return m, cmd
	}
	m.screen = screenJoining
	m.joining = gameID
	return m, m.join(gameID)
}

func (m SessionModel) join(gameID int) tea.Cmd {
	opts, seed := m.opts, m.seed()
	return func() tea.Msg {
		game, agent, err := NewOnlineGame(opts.Context, opts.Client, opts.Config, gameID, opts.Player, seed, opts.Logger)
		return joinedMsg{gameID: gameID, game: game, agent: agent, err: err}
	}
}

func (m SessionModel) handleJoined(msg joinedMsg) (tea.Model, tea.Cmd) {
	if m.screen != screenJoining || msg.gameID != m.joining {
		return m, nil
	}
	if msg.err != nil {
		// Back to a fresh lobby with the reason shown.
		m.lobby = NewLobbyModel(LobbyOptions{
			Client:  m.opts.Client,
			NewGame: m.opts.Config.Server.Defaults,
			Width:   m.opts.Runtime.ScreenW,
			Height:  m.opts.Runtime.ScreenH,
		})
		m.lobby.embedded = true
		m.lobby.errText = errorText(msg.err)
		m.screen = screenLobby
		return m, m.lobby.Init()
	}

	m.game = NewModel(msg.game, Options{
		Player:  m.opts.Player,
		Agent:   msg.agent,
		Context: m.opts.Context,
		Runtime: m.opts.Runtime,
	})
	m.game.embedded = true
	m.screen = screenGame
	return m, m.game.Init()
}

// updateGame handles updates when in game mode.
func (m SessionModel) updateGame(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.game.Update(msg)
	if gm, ok := next.(Model); ok {
		m.game = gm
	}

	if !m.game.Finished() {
		return m, cmd
	}
	if m.game.IsQuitting() {
		m.quitting = true
		return m, tea.Quit
	}
	return m.toMenu()
}

// updateScores handles updates when showing the scoreboard.
func (m SessionModel) updateScores(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.scores.Update(msg)
	if sm, ok := next.(ScoreboardModel); ok {
		m.scores = sm
	}

	switch {
	case m.scores.IsQuitting():
		m.quitting = true
		return m, tea.Quit
	case m.scores.IsGoingBack():
		return m.toMenu()
	}
	return m, cmd
}

// View renders the current view.
func (m SessionModel) View() string {
	if m.quitting {
		return ""
	}

	switch m.screen {
	case screenLobby:
		return m.lobby.View()
	case screenJoining:
		var b strings.Builder
		b.WriteString("\n")
		b.WriteString(centerText(fmt.Sprintf("Joining game %d...", m.joining), m.opts.Runtime.ScreenW))
		b.WriteString("\n")
		return b.String()
	case screenGame:
		return m.game.View()
	case screenScores:
		return m.scores.View()
	default:
		return m.menu.View()
	}
}

// RunSession runs a menu-driven session as a standalone program.
func RunSession(opts SessionOptions) error {
	p := tea.NewProgram(NewSessionModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
