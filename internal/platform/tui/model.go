package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jcharra/Entris/internal/config"
	"github.com/jcharra/Entris/internal/core"
	"github.com/jcharra/Entris/internal/games/entris"
	"github.com/jcharra/Entris/internal/netplay"
	"github.com/jcharra/Entris/internal/storage"
)

// flashDuration is how long event messages stay in the sidebar.
const flashDuration = 2 * time.Second

// Options configures a game model.
type Options struct {
	Player     string
	Difficulty config.DifficultyPreset
	Store      *storage.Store     // Optional, solo high scores
	Agent      *netplay.Agent     // Set for online games
	Context    context.Context    // Bounds the agent, defaults to Background
	Runtime    core.RuntimeConfig // Tick rate, seed and initial screen size
}

// agentDoneMsg is sent when the sync agent returns.
type agentDoneMsg struct{ err error }

// Model is the Bubble Tea model for one solo or online Entris session.
type Model struct {
	game   *entris.Game
	agent  *netplay.Agent
	ctx    context.Context
	store  *storage.Store
	events chan entris.Event

	screen  *core.Screen
	config  core.RuntimeConfig
	keys    KeyMap
	help    help.Model
	spinner spinner.Model

	player     string
	difficulty config.DifficultyPreset
	highScore  int

	input      core.InputFrame // Movement since the last tick
	lastTick   time.Time
	flash      string
	flashUntil time.Time
	paused     bool
	scoreSaved bool // Whether score has been saved for current game over

	agentDone bool
	agentErr  error

	embedded   bool // Hosted by SessionModel; never sends tea.Quit itself
	quitting   bool
	backToMenu bool
}

// NewModel creates a model for game. The game should still be waiting;
// Init starts it in solo mode, the agent starts it online.
func NewModel(game *entris.Game, opts Options) Model {
	cfg := opts.Runtime
	if cfg.TickRate <= 0 {
		cfg.TickRate = core.DefaultConfig().TickRate
	}
	if cfg.ScreenW <= 0 || cfg.ScreenH <= 0 {
		d := core.DefaultConfig()
		cfg.ScreenW, cfg.ScreenH = d.ScreenW, d.ScreenH
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(core.ColorAccent.Hex()))

	m := Model{
		game:       game,
		agent:      opts.Agent,
		ctx:        ctx,
		store:      opts.Store,
		events:     make(chan entris.Event, 32),
		screen:     core.NewScreen(cfg.ScreenW, cfg.ScreenH),
		config:     cfg,
		keys:       DefaultKeyMap(),
		help:       help.New(),
		spinner:    sp,
		player:     opts.Player,
		difficulty: opts.Difficulty,
	}
	if m.store != nil {
		if high, err := m.store.HighScore(); err == nil {
			m.highScore = high
		}
	}
	m.subscribe()
	return m
}

// subscribe forwards game events into the model's channel. The game may
// notify from the agent goroutine, so the send never blocks.
func (m Model) subscribe() {
	events := m.events
	m.game.Subscribe(entris.ObserverFunc(func(e entris.Event) {
		select {
		case events <- e:
		default:
		}
	}))
}

func (m Model) online() bool {
	return m.agent != nil
}

// Init starts the tick loop, and the game or its sync agent.
func (m Model) Init() tea.Cmd {
	if !m.online() {
		m.game.Start()
		return tickCmd(m.config.TickRate)
	}
	return tea.Batch(tickCmd(m.config.TickRate), m.spinner.Tick, runAgent(m.ctx, m.agent))
}

func runAgent(ctx context.Context, a *netplay.Agent) tea.Cmd {
	return func() tea.Msg {
		return agentDoneMsg{err: a.Run(ctx)}
	}
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.config.ScreenW = msg.Width
		m.config.ScreenH = msg.Height
		m.screen = core.NewScreen(msg.Width, msg.Height)
		m.help.Width = msg.Width
		return m, nil

	case TickMsg:
		return m.handleTick(time.Time(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case agentDoneMsg:
		m.agentDone = true
		m.agentErr = msg.err
		if m.quitting || m.backToMenu {
			return m, m.exit()
		}
		return m, nil
	}

	return m, nil
}

// exit ends a standalone program. Hosted models report through
// IsQuitting and BackToMenu instead.
func (m Model) exit() tea.Cmd {
	if m.embedded {
		return nil
	}
	return tea.Quit
}

// leave stops the agent first so the seat is released before exiting.
func (m Model) leave() (tea.Model, tea.Cmd) {
	if m.online() && !m.agentDone {
		m.agent.Abort()
		return m, nil
	}
	return m, m.exit()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+s":
		m.saveScreenshot()
		return m, nil
	case msg.String() == "?":
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	// Back to menu is only offered when nothing is lost by it
	if key.Matches(msg, m.keys.Back) && (m.game.Finished() || m.paused || m.agentDone) {
		m.backToMenu = true
		return m.leave()
	}

	action := m.keys.MapKey(msg)
	switch action {
	case core.ActionQuit:
		m.quitting = true
		return m.leave()

	case core.ActionPause:
		if !m.online() && !m.game.Finished() {
			m.paused = !m.paused
		}
		return m, nil

	case core.ActionRestart:
		if !m.online() && m.game.Finished() {
			m.restart()
		}
		return m, nil
	}

	if !m.paused {
		m.input.Set(action)
	}
	return m, nil
}

// apply performs a movement action on the game.
func (m Model) apply(a core.Action) {
	switch a {
	case core.ActionLeft:
		m.game.TryMove(entris.West)
	case core.ActionRight:
		m.game.TryMove(entris.East)
	case core.ActionDown:
		m.game.TryMove(entris.South)
	case core.ActionDrop:
		m.game.HardDrop()
	case core.ActionRotateCW:
		m.game.TryRotate(1, true)
	case core.ActionRotateCCW:
		m.game.TryRotate(1, false)
	}
}

// restart replaces a finished solo game with a fresh one using the same rules.
func (m *Model) restart() {
	seed := uint64(time.Now().UnixNano())
	m.game = entris.New(m.game.Rules(), entris.ModeSolo, seed)
	m.events = make(chan entris.Event, 32)
	m.subscribe()
	m.game.Start()
	m.scoreSaved = false
	m.input.Clear()
	m.paused = false
	m.flash = ""
	m.lastTick = time.Time{}
}

// handleTick advances gravity by the time since the previous tick and
// drains game events.
func (m Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	var dt time.Duration
	if !m.lastTick.IsZero() {
		dt = now.Sub(m.lastTick)
	}
	m.lastTick = now

	if !m.paused {
		for _, a := range m.input.Actions() {
			m.apply(a)
		}
		m.game.Step(dt)
	}
	m.input.Clear()
	m.drainEvents(now)

	if m.flash != "" && now.After(m.flashUntil) {
		m.flash = ""
	}
	return m, tickCmd(m.config.TickRate)
}

func (m *Model) drainEvents(now time.Time) {
	for {
		select {
		case e := <-m.events:
			m.handleEvent(e, now)
		default:
			return
		}
	}
}

func (m *Model) handleEvent(e entris.Event, now time.Time) {
	switch e := e.(type) {
	case entris.RareShape:
		m.setFlash("QUACK!", now)
	case entris.LinesCleared:
		if m.online() {
			m.setFlash(fmt.Sprintf("Sent %d line(s)", e.Lines), now)
		} else if e.Lines > 1 {
			m.setFlash(fmt.Sprintf("%d lines!", e.Lines), now)
		}
	case entris.StateChanged:
		if e.To == entris.StateOver {
			m.saveScore()
		}
	}
}

func (m *Model) setFlash(msg string, now time.Time) {
	m.flash = msg
	m.flashUntil = now.Add(flashDuration)
}

// saveScore records a finished solo game once.
func (m *Model) saveScore() {
	if m.online() || m.scoreSaved {
		return
	}
	m.scoreSaved = true
	v := m.game.View()
	if m.store == nil || v.Score <= 0 {
		return
	}
	//nolint:errcheck // Best-effort save, game continues regardless
	m.store.SaveScore(storage.ScoreEntry{
		Player:     m.player,
		Score:      v.Score,
		Level:      v.Level,
		Lines:      v.Lines,
		Difficulty: string(m.difficulty),
	})
	m.highScore = max(m.highScore, v.Score)
}

// saveScreenshot saves the current screen to a file.
func (m *Model) saveScreenshot() {
	m.render()

	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	dir := filepath.Join(home, ".entris", "screenshots")
	//nolint:errcheck // Best-effort directory creation
	os.MkdirAll(dir, 0o755)

	filename := fmt.Sprintf("entris_%s.txt", time.Now().Format("20060102_150405"))
	//nolint:errcheck // Best-effort save, game continues regardless
	os.WriteFile(filepath.Join(dir, filename), []byte(m.screen.String()), 0o600)
}

// hud collects the sidebar state.
func (m Model) hud() HUD {
	h := HUD{
		Title:     "E N T R I S",
		Player:    m.player,
		HighScore: m.highScore,
		Flash:     m.flash,
		Paused:    m.paused,
	}
	if !m.online() {
		return h
	}
	h.Title = fmt.Sprintf("Game %d", m.agent.GameID())
	for _, o := range m.agent.Opponents() {
		h.Opponents = append(h.Opponents, OpponentBoard{Name: o.ScreenName, Snapshot: o.Snapshot})
	}
	if m.agentErr != nil {
		h.Status = errorText(m.agentErr)
	}
	return h
}

func (m Model) render() {
	RenderGame(m.screen, m.game.View(), m.hud())
}

// waiting reports whether the online game has not started yet.
func (m Model) waiting() bool {
	return m.online() && m.game.State() == entris.StateWaiting && !m.agentDone
}

// View renders the current state to a string for display.
func (m Model) View() string {
	if m.quitting && (!m.online() || m.agentDone) {
		return ""
	}
	if m.waiting() {
		return m.waitingView()
	}
	if m.online() && m.agentDone && m.game.State() == entris.StateWaiting {
		return m.failedView()
	}

	m.render()
	return RenderScreen(m.screen) + "\n" + m.help.View(m.keys)
}

// waitingView shows the seats while the server fills the game.
func (m Model) waitingView() string {
	var b strings.Builder
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(core.ColorAccent.Hex()))

	b.WriteString("\n")
	b.WriteString(centerText(title.Render(fmt.Sprintf("Game %d", m.agent.GameID())), m.config.ScreenW))
	b.WriteString("\n\n")

	phase := m.agent.Phase()
	line := fmt.Sprintf("%s %s", m.spinner.View(), phaseText(phase))
	if phase == netplay.PhaseWaiting {
		line = fmt.Sprintf("%s Waiting for players %d/%d", m.spinner.View(), len(m.agent.Roster()), m.agent.Size())
	}
	b.WriteString(centerText(line, m.config.ScreenW))
	b.WriteString("\n\n")

	for _, p := range m.agent.Roster() {
		name := p.ScreenName
		if p.ID == m.agent.PlayerID() {
			name += " (you)"
		}
		b.WriteString(centerText(name, m.config.ScreenW))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(centerText("Q: Leave", m.config.ScreenW))
	b.WriteString("\n")
	return b.String()
}

// failedView explains why the agent never got the game started.
func (m Model) failedView() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(centerText("Could not join the game", m.config.ScreenW))
	b.WriteString("\n\n")
	if m.agentErr != nil {
		b.WriteString(centerText(errorText(m.agentErr), m.config.ScreenW))
		b.WriteString("\n\n")
	}
	b.WriteString(centerText("Esc: Back  |  Q: Quit", m.config.ScreenW))
	b.WriteString("\n")
	return b.String()
}

func phaseText(p netplay.Phase) string {
	switch p {
	case netplay.PhaseConnecting:
		return "Connecting..."
	case netplay.PhaseActive:
		return "Starting..."
	case netplay.PhaseTerminating:
		return "Leaving..."
	default:
		return p.String()
	}
}

// errorText turns client errors into short user-facing lines.
func errorText(err error) string {
	switch {
	case errors.Is(err, netplay.ErrGameFull):
		return "Game is full"
	case errors.Is(err, netplay.ErrGameNotFound):
		return "Game not found"
	case errors.Is(err, netplay.ErrPlayerNotFound):
		return "Dropped by server"
	case errors.Is(err, netplay.ErrServerFull):
		return "Server full"
	case errors.Is(err, netplay.ErrUnreachable):
		return "Server unreachable"
	default:
		return err.Error()
	}
}

// Game returns the session being played.
func (m Model) Game() *entris.Game {
	return m.game
}

// IsQuitting returns true if user requested to quit entirely.
func (m Model) IsQuitting() bool {
	return m.quitting
}

// BackToMenu returns true if user requested to go back to menu.
func (m Model) BackToMenu() bool {
	return m.backToMenu
}

// Finished reports whether the model can be torn down: the user asked to
// leave and any agent has returned.
func (m Model) Finished() bool {
	return (m.quitting || m.backToMenu) && (!m.online() || m.agentDone)
}

// AgentErr returns the error the sync agent ended with.
func (m Model) AgentErr() error {
	return m.agentErr
}

// Run starts a standalone Bubble Tea program for game.
func Run(game *entris.Game, opts Options) (Model, error) {
	model := NewModel(game, opts)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(), // Use alternate screen buffer
	)

	final, err := p.Run()
	if err != nil {
		return model, err
	}
	if fm, ok := final.(Model); ok {
		return fm, nil
	}
	return model, nil
}
