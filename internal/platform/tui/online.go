package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jcharra/Entris/internal/config"
	"github.com/jcharra/Entris/internal/netplay"
	"github.com/jcharra/Entris/internal/protocol"
)

// LobbyState represents the current state of the online lobby.
type LobbyState int

const (
	LobbyBrowsing LobbyState = iota // Table of open games
	LobbyEnterID                    // Typing a game id
	LobbyCreating                   // Waiting for /new
)

// lobbyRequestTimeout bounds list and create calls made from the lobby.
const lobbyRequestTimeout = 10 * time.Second

// LobbyOptions configures the lobby.
type LobbyOptions struct {
	Client          *netplay.Client
	NewGame         config.NewGameConfig // Used for games created with "n"
	RefreshInterval time.Duration
	Width, Height   int
}

// LobbyKeyMap adds lobby-only bindings to the menu bindings.
type LobbyKeyMap struct {
	MenuKeyMap
	EnterID key.Binding
}

// DefaultLobbyKeyMap returns the default lobby bindings.
func DefaultLobbyKeyMap() LobbyKeyMap {
	return LobbyKeyMap{
		MenuKeyMap: DefaultMenuKeyMap(),
		EnterID: key.NewBinding(
			key.WithKeys("i", "/"),
			key.WithHelp("i", "join by id"),
		),
	}
}

// ShortHelp returns bindings to show in the mini help view.
func (k LobbyKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.New, k.EnterID, k.Refresh, k.Back, k.Quit}
}

type gamesMsg struct {
	games []protocol.GameSummary
	err   error
	auto  bool // Scheduled refresh; schedules the next one
}

type createdMsg struct {
	game protocol.GameSummary
	err  error
}

type lobbyRefreshMsg struct{}

// LobbyModel lists open games on a server and lets the player join one,
// create one, or type a game id.
type LobbyModel struct {
	state    LobbyState
	client   *netplay.Client
	defaults config.NewGameConfig
	refresh  time.Duration

	games   []protocol.GameSummary
	table   table.Model
	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    LobbyKeyMap

	width   int
	height  int
	loading bool
	errText string

	chosen  int
	created bool

	embedded   bool
	backToMenu bool
	quitting   bool
}

// NewLobbyModel creates a lobby for the server behind opts.Client.
func NewLobbyModel(opts LobbyOptions) LobbyModel {
	refresh := opts.RefreshInterval
	if refresh <= 0 {
		refresh = 2 * time.Second
	}

	in := textinput.New()
	in.Placeholder = "game id"
	in.CharLimit = 6
	in.Width = 10
	in.Validate = func(s string) error {
		if s == "" {
			return nil
		}
		_, err := strconv.Atoi(s)
		return err
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := LobbyModel{
		client:   opts.Client,
		defaults: opts.NewGame,
		refresh:  refresh,
		input:    in,
		spinner:  sp,
		help:     help.New(),
		keys:     DefaultLobbyKeyMap(),
		width:    opts.Width,
		height:   opts.Height,
		loading:  true,
	}
	m.table = m.createTable()
	return m
}

func (m LobbyModel) createTable() table.Model {
	columns := []table.Column{
		{Title: "Game", Width: 8},
		{Title: "Players", Width: 30},
		{Title: "Seats", Width: 7},
		{Title: "Board", Width: 7},
		{Title: "Duck", Width: 6},
	}

	return newTable(columns, max(m.height-10, 5))
}

func (m *LobbyModel) updateTableRows() {
	rows := make([]table.Row, len(m.games))
	for i, g := range m.games {
		names := make([]string, len(g.Players))
		for j, p := range g.Players {
			names[j] = p.ScreenName
		}
		rows[i] = table.Row{
			strconv.Itoa(g.GameID),
			strings.Join(names, ", "),
			fmt.Sprintf("%d/%d", len(g.Players), g.Size),
			g.Dimensions,
			fmt.Sprintf("%.0f%%", g.DuckProbability*100),
		}
	}
	m.table.SetRows(rows)
}

func (m LobbyModel) fetchGames(auto bool) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), lobbyRequestTimeout)
		defer cancel()
		games, err := client.List(ctx)
		return gamesMsg{games: games, err: err, auto: auto}
	}
}

func (m LobbyModel) createGame() tea.Cmd {
	client, d := m.client, m.defaults
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), lobbyRequestTimeout)
		defer cancel()
		g, err := client.NewGame(ctx, d.Size, d.Dimensions, d.DuckProbability)
		return createdMsg{game: g, err: err}
	}
}

// Init loads the game list.
func (m LobbyModel) Init() tea.Cmd {
	return tea.Batch(m.fetchGames(true), m.spinner.Tick)
}

// Update handles messages.
func (m LobbyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.table = m.createTable()
		m.updateTableRows()
		return m, nil

	case gamesMsg:
		m.loading = false
		if msg.err != nil {
			m.errText = errorText(msg.err)
		} else {
			m.errText = ""
			m.games = msg.games
			m.updateTableRows()
		}
		if msg.auto {
			return m, tea.Tick(m.refresh, func(time.Time) tea.Msg { return lobbyRefreshMsg{} })
		}
		return m, nil

	case lobbyRefreshMsg:
		if m.done() {
			return m, nil
		}
		return m, m.fetchGames(true)

	case createdMsg:
		m.loading = false
		if msg.err != nil {
			m.state = LobbyBrowsing
			m.errText = errorText(msg.err)
			return m, nil
		}
		m.chosen = msg.game.GameID
		m.created = true
		return m, m.exit()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m LobbyModel) done() bool {
	return m.chosen != 0 || m.quitting || m.backToMenu
}

func (m LobbyModel) exit() tea.Cmd {
	if m.embedded {
		return nil
	}
	return tea.Quit
}

func (m LobbyModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case LobbyEnterID:
		return m.handleEnterIDKey(msg)
	case LobbyCreating:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, m.exit()
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.EnterID) {
		m.state = LobbyEnterID
		m.input.SetValue("")
		return m, m.input.Focus()
	}

	switch m.keys.MapKeyToMenuAction(msg) {
	case MenuActionQuit:
		m.quitting = true
		return m, m.exit()

	case MenuActionBack:
		m.backToMenu = true
		return m, m.exit()

	case MenuActionSelect:
		if len(m.games) == 0 {
			return m, nil
		}
		row := m.table.SelectedRow()
		if row == nil {
			return m, nil
		}
		id, err := strconv.Atoi(row[0])
		if err != nil {
			return m, nil
		}
		m.chosen = id
		return m, m.exit()

	case MenuActionNew:
		m.state = LobbyCreating
		m.loading = true
		m.errText = ""
		return m, m.createGame()

	case MenuActionRefresh:
		m.loading = true
		return m, m.fetchGames(false)

	case MenuActionUp, MenuActionDown:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m LobbyModel) handleEnterIDKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, m.exit()
	case "esc":
		m.state = LobbyBrowsing
		m.input.Blur()
		return m, nil
	case "enter":
		id, err := strconv.Atoi(m.input.Value())
		if err != nil || id <= 0 {
			m.errText = "Enter a numeric game id"
			return m, nil
		}
		m.input.Blur()
		m.chosen = id
		return m, m.exit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the lobby.
func (m LobbyModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(centerText(headingStyle.Render("ONLINE GAMES"), m.width))
	b.WriteString("\n")
	if m.client != nil {
		b.WriteString(centerText(m.client.BaseURL(), m.width))
	}
	b.WriteString("\n\n")

	switch m.state {
	case LobbyCreating:
		b.WriteString(centerText(m.spinner.View()+" Creating game...", m.width))
		b.WriteString("\n")

	case LobbyEnterID:
		b.WriteString(centerText("Join game:", m.width))
		b.WriteString("\n\n")
		b.WriteString(centerText(m.input.View(), m.width))
		b.WriteString("\n\n")
		b.WriteString(centerText("Enter: Join  |  Esc: Back", m.width))
		b.WriteString("\n")

	default:
		if len(m.games) == 0 {
			empty := "No open games. Press n to create one."
			if m.loading {
				empty = m.spinner.View() + " Loading..."
			}
			b.WriteString(centerText(empty, m.width))
		} else {
			b.WriteString(frameStyle.Render(m.table.View()))
		}
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render(m.help.View(m.keys)))
		b.WriteString("\n")
	}

	if m.errText != "" {
		b.WriteString("\n")
		b.WriteString(centerText("Error: "+m.errText, m.width))
		b.WriteString("\n")
	}
	return b.String()
}

// Chosen returns the game to join and whether one was picked.
func (m LobbyModel) Chosen() (int, bool) {
	return m.chosen, m.chosen != 0
}

// Created reports whether the chosen game was created from the lobby.
func (m LobbyModel) Created() bool {
	return m.created
}

// BackToMenu returns true if the user left the lobby.
func (m LobbyModel) BackToMenu() bool {
	return m.backToMenu
}

// IsQuitting returns true if the user quit entirely.
func (m LobbyModel) IsQuitting() bool {
	return m.quitting
}

// RunLobby runs the lobby as a standalone program.
func RunLobby(opts LobbyOptions) (LobbyModel, error) {
	model := NewLobbyModel(opts)

	p := tea.NewProgram(model, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return model, err
	}
	if lm, ok := final.(LobbyModel); ok {
		return lm, nil
	}
	return model, nil
}
