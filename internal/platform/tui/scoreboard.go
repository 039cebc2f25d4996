package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jcharra/Entris/internal/storage"
)

const scoreboardRows = 100

// Board identifies one scoreboard table.
type Board int

const (
	BoardSolo Board = iota
	BoardMatches
)

// scoreTable describes how one board is laid out and filled.
type scoreTable struct {
	title   string
	empty   string
	columns func(width int) []table.Column
	rows    func(store *storage.Store) ([]table.Row, error)
}

var scoreTables = []scoreTable{
	BoardSolo: {
		title:   "Solo scores",
		empty:   "No scores recorded yet.\nFinish a solo game to set one.",
		columns: soloColumns,
		rows:    soloRows,
	},
	BoardMatches: {
		title:   "Online matches",
		empty:   "No online matches recorded yet.",
		columns: matchColumns,
		rows:    matchRows,
	},
}

func soloColumns(width int) []table.Column {
	player := 12
	if width > 64 {
		player = min(width-44, 20)
	}
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: "Player", Width: player},
		{Title: "Score", Width: 9},
		{Title: "Lvl", Width: 4},
		{Title: "Lines", Width: 6},
		{Title: "Date", Width: 13},
	}
}

func soloRows(store *storage.Store) ([]table.Row, error) {
	scores, err := store.TopScores(scoreboardRows)
	if err != nil {
		return nil, err
	}
	rows := make([]table.Row, len(scores))
	for i, s := range scores {
		player := s.Player
		if player == "" {
			player = "-"
		}
		rows[i] = table.Row{
			strconv.Itoa(i + 1),
			player,
			strconv.Itoa(s.Score),
			strconv.Itoa(s.Level),
			strconv.Itoa(s.Lines),
			s.CreatedAt.Format("Jan 02 15:04"),
		}
	}
	return rows, nil
}

func matchColumns(int) []table.Column {
	return []table.Column{
		{Title: "Game", Width: 7},
		{Title: "Winner", Width: 14},
		{Title: "Players", Width: 24},
		{Title: "Time", Width: 7},
		{Title: "Date", Width: 13},
	}
}

func matchRows(store *storage.Store) ([]table.Row, error) {
	matches, err := store.RecentMatches(scoreboardRows)
	if err != nil {
		return nil, err
	}
	rows := make([]table.Row, len(matches))
	for i, r := range matches {
		winner := r.Winner
		if winner == "" {
			winner = "(" + r.EndReason + ")"
		}
		rows[i] = table.Row{
			strconv.Itoa(r.GameID),
			winner,
			strings.Join(r.Players, ", "),
			r.Duration.String(),
			r.StartedAt.Local().Format("Jan 02 15:04"),
		}
	}
	return rows, nil
}

// ScoreboardKeyMap holds the scoreboard bindings. It implements help.KeyMap.
type ScoreboardKeyMap struct {
	Scroll key.Binding
	Next   key.Binding
	Prev   key.Binding
	Back   key.Binding
	Quit   key.Binding
}

// ShortHelp returns bindings to show in the mini help view.
func (k ScoreboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Scroll, k.Next, k.Prev, k.Back, k.Quit}
}

// FullHelp returns bindings to show in the full help view.
func (k ScoreboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// DefaultScoreboardKeyMap returns the default scoreboard bindings.
func DefaultScoreboardKeyMap() ScoreboardKeyMap {
	return ScoreboardKeyMap{
		Scroll: key.NewBinding(
			key.WithKeys("up", "down", "k", "j"),
			key.WithHelp("↑/↓", "scroll"),
		),
		Next: key.NewBinding(
			key.WithKeys("tab", "right", "l"),
			key.WithHelp("tab", "next board"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "left", "h"),
			key.WithHelp("S-tab", "prev board"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "b"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ScoreboardModel shows the solo high scores and the recorded online
// matches, one board at a time.
type ScoreboardModel struct {
	store   *storage.Store
	board   Board
	empty   bool
	stats   *storage.Stats
	errText string

	table table.Model
	help  help.Model
	keys  ScoreboardKeyMap

	width  int
	height int

	embedded  bool
	goingBack bool
	quitting  bool
}

// NewScoreboardModel creates a scoreboard opened on the solo board.
func NewScoreboardModel(store *storage.Store, width, height int) ScoreboardModel {
	m := ScoreboardModel{
		store:  store,
		board:  BoardSolo,
		help:   help.New(),
		keys:   DefaultScoreboardKeyMap(),
		width:  width,
		height: height,
	}
	m.reload()
	return m
}

// reload rebuilds the table for the current board and size.
func (m *ScoreboardModel) reload() {
	bt := scoreTables[m.board]
	m.table = newTable(bt.columns(m.width), max(m.height-10, 3))
	m.errText = ""
	m.stats = nil

	var rows []table.Row
	if m.store != nil {
		var err error
		if rows, err = bt.rows(m.store); err != nil {
			m.errText = err.Error()
		}
		if m.board == BoardSolo {
			if stats, err := m.store.GetStats(); err == nil && stats.GamesCount > 0 {
				m.stats = stats
			}
		}
	}
	m.empty = len(rows) == 0
	m.table.SetRows(rows)
	m.table.GotoTop()
}

func (m *ScoreboardModel) cycle(delta int) {
	n := len(scoreTables)
	m.board = Board((int(m.board) + delta + n) % n)
	m.reload()
}

// Init initializes the model.
func (m ScoreboardModel) Init() tea.Cmd {
	return nil
}

func (m ScoreboardModel) exit() tea.Cmd {
	if m.embedded {
		return nil
	}
	return tea.Quit
}

// Update handles messages.
func (m ScoreboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, m.exit()
		case key.Matches(msg, m.keys.Back):
			m.goingBack = true
			return m, m.exit()
		case key.Matches(msg, m.keys.Next):
			m.cycle(1)
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			m.cycle(-1)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.reload()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the current board.
func (m ScoreboardModel) View() string {
	if m.quitting || m.goingBack {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(centerText(headingStyle.Render("HIGH SCORES"), m.width))
	b.WriteString("\n\n")
	b.WriteString(centerText(m.tabs(), m.width))
	b.WriteString("\n\n")

	bt := scoreTables[m.board]
	if m.empty {
		b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, frameStyle.Padding(1, 3).Render(dimStyle.Italic(true).Render(bt.empty))))
	} else {
		b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, frameStyle.Render(m.table.View())))
	}
	b.WriteString("\n")

	if m.stats != nil {
		b.WriteString(centerText(fmt.Sprintf("%d games  best %d  avg %.0f  %d lines",
			m.stats.GamesCount, m.stats.HighScore, m.stats.AvgScore, m.stats.TotalLines), m.width))
		b.WriteString("\n")
	}
	if m.errText != "" {
		b.WriteString(centerText("Error: "+m.errText, m.width))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m ScoreboardModel) tabs() string {
	tabs := make([]string, len(scoreTables))
	for i, bt := range scoreTables {
		if Board(i) == m.board {
			tabs[i] = activeTabStyle.Render(bt.title)
		} else {
			tabs[i] = dimStyle.Render(" " + bt.title + " ")
		}
	}
	return strings.Join(tabs, " ")
}

// IsGoingBack reports whether the user asked to return to the menu.
func (m ScoreboardModel) IsGoingBack() bool {
	return m.goingBack
}

// IsQuitting reports whether the user asked to quit.
func (m ScoreboardModel) IsQuitting() bool {
	return m.quitting
}

// RunScoreboard runs the scoreboard as its own program. It reports whether
// the user went back rather than quitting.
func RunScoreboard(store *storage.Store, width, height int) (bool, error) {
	final, err := tea.NewProgram(NewScoreboardModel(store, width, height), tea.WithAltScreen()).Run()
	if err != nil {
		return false, err
	}
	m, ok := final.(ScoreboardModel)
	return ok && m.IsGoingBack(), nil
}
