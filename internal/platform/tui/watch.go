package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jcharra/Entris/internal/core"
	"github.com/jcharra/Entris/internal/netplay"
	"github.com/jcharra/Entris/internal/protocol"
)

type statusMsg protocol.GameStatus

type watchEndMsg struct{ err error }

// WatchModel shows the boards of a game as the server streams them.
type WatchModel struct {
	gameID   int
	status   *protocol.GameStatus
	screen   *core.Screen
	keys     KeyMap
	err      error
	ended    bool
	quitting bool
}

// NewWatchModel creates a spectator view for gameID.
func NewWatchModel(gameID, width, height int) WatchModel {
	return WatchModel{
		gameID: gameID,
		screen: core.NewScreen(width, max(height-2, 1)),
		keys:   DefaultKeyMap(),
	}
}

// Init initializes the model.
func (m WatchModel) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) || key.Matches(msg, m.keys.Back) {
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.screen = core.NewScreen(msg.Width, max(msg.Height-2, 1))

	case statusMsg:
		st := protocol.GameStatus(msg)
		m.status = &st

	case watchEndMsg:
		m.ended = true
		m.err = msg.err
	}
	return m, nil
}

// View renders the latest status.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}
	if m.status == nil {
		if m.err != nil {
			return "Error: " + errorText(m.err) + "\n\nq: quit\n"
		}
		return "Connecting...\n"
	}

	RenderSpectator(m.screen, *m.status)
	out := RenderScreen(m.screen) + "\n"
	switch {
	case m.err != nil:
		out += "Error: " + errorText(m.err)
	case m.ended:
		out += "Game over. q: quit"
	default:
		out += "q: quit"
	}
	return out
}

// Err returns the error that ended the stream, if any.
func (m WatchModel) Err() error {
	return m.err
}

// RunWatch spectates gameID until the stream ends and the user quits.
func RunWatch(ctx context.Context, client *netplay.Client, gameID, width, height int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewWatchModel(gameID, width, height), tea.WithAltScreen(), tea.WithContext(ctx))
	go func() {
		err := client.Watch(ctx, gameID, func(st protocol.GameStatus) error {
			p.Send(statusMsg(st))
			return nil
		})
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		p.Send(watchEndMsg{err: err})
	}()

	final, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}
	if err != nil {
		return err
	}
	if wm, ok := final.(WatchModel); ok {
		return wm.Err()
	}
	return nil
}
