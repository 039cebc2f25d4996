package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jcharra/Entris/internal/core"
	"github.com/jcharra/Entris/internal/games/entris"
	"github.com/jcharra/Entris/internal/piece"
	"github.com/jcharra/Entris/internal/protocol"
)

const (
	blockRune    = '█'
	emptyRune    = '·'
	miniRune     = '▪'
	hudWidth     = 18
	minOpponentW = 12
)

// RenderScreen converts a Screen buffer to a styled string for display.
// Groups adjacent cells with the same color to minimize ANSI escape sequences.
func RenderScreen(s *core.Screen) string {
	var sb strings.Builder
	// Pre-allocate with extra space for ANSI codes
	sb.Grow(s.Width()*s.Height()*2 + s.Height())

	for y := range s.Height() {
		if y > 0 {
			sb.WriteRune('\n')
		}

		x := 0
		for x < s.Width() {
			startColor := s.Get(x, y).Color

			var run strings.Builder
			for x < s.Width() {
				cell := s.Get(x, y)
				if cell.Color != startColor {
					break
				}
				run.WriteRune(cell.Rune)
				x++
			}

			if !startColor.IsSet() {
				sb.WriteString(run.String())
				continue
			}
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(startColor.Hex()))
			sb.WriteString(style.Render(run.String()))
		}
	}
	return sb.String()
}

// OpponentBoard is one opponent as the renderer sees it.
type OpponentBoard struct {
	Name     string
	Snapshot string
}

// HUD carries everything drawn around the board.
type HUD struct {
	Title     string
	Player    string
	HighScore int
	Flash     string
	Paused    bool
	Status    string // Overrides the state line when set
	Opponents []OpponentBoard
}

// BoardSize returns the on-screen size of a bordered board: every cell is
// two columns wide.
func BoardSize(width, height int) (w, h int) {
	return width*2 + 2, height + 2
}

// RequiredSize returns the smallest screen that fits the board and sidebar.
func RequiredSize(v entris.View) (w, h int) {
	bw, bh := BoardSize(v.Width, v.Height)
	return bw + 1 + hudWidth, bh
}

// RenderGame draws the board, the sidebar and as many opponent boards as
// fit into s.
func RenderGame(s *core.Screen, v entris.View, hud HUD) {
	s.Clear()

	needW, needH := RequiredSize(v)
	if s.Width() < needW || s.Height() < needH {
		msg := fmt.Sprintf("Terminal too small: need %dx%d", needW, needH)
		s.DrawText(0, 0, msg, core.ColorAccent)
		return
	}

	board := DrawBoard(s, 0, 0, v)
	side := board.Right() + 1
	drawSidebar(s, side, 0, v, hud)

	if len(hud.Opponents) > 0 {
		drawOpponents(s, side+hudWidth, 0, hud.Opponents)
	}
}

// DrawBoard draws v with a border at (x, y) and returns the occupied rect.
func DrawBoard(s *core.Screen, x, y int, v entris.View) core.Rect {
	w, h := BoardSize(v.Width, v.Height)
	r := core.NewRect(x, y, w, h)
	s.DrawBox(r, core.ColorText)

	for i, c := range v.Cells {
		row, col := i/v.Width, i%v.Width
		sx, sy := x+1+col*2, y+1+row
		if c.IsSet() {
			s.Set(sx, sy, blockRune, c)
			s.Set(sx+1, sy, blockRune, c)
		} else {
			s.Set(sx, sy, emptyRune, core.ColorGhost)
			s.Set(sx+1, sy, ' ', core.ColorDefault)
		}
	}

	if msg := stateMessage(v.State); msg != "" {
		cx := x + (w-len(msg))/2
		s.DrawText(cx, y+h/2, msg, core.ColorAccent)
	}
	return r
}

func stateMessage(st entris.State) string {
	switch st {
	case entris.StateWaiting:
		return " WAITING "
	case entris.StateOver:
		return " GAME OVER "
	case entris.StateVictorious:
		return " YOU WIN! "
	case entris.StateAborted:
		return " ABORTED "
	}
	return ""
}

func drawSidebar(s *core.Screen, x, y int, v entris.View, hud HUD) {
	line := y
	if hud.Title != "" {
		s.DrawText(x, line, hud.Title, core.ColorAccent)
		line += 2
	}

	s.DrawText(x, line, "NEXT", core.ColorText)
	line++
	if len(v.Next) > 0 {
		line += drawPreview(s, x, line, v.Next[0]) + 1
	} else {
		line += 2
	}

	if v.Mode == entris.ModeSolo {
		s.DrawText(x, line, fmt.Sprintf("Score %d", v.Score), core.ColorText)
		line++
		s.DrawText(x, line, fmt.Sprintf("Level %d", v.Level), core.ColorText)
		line++
		s.DrawText(x, line, fmt.Sprintf("Lines %d", v.Lines), core.ColorText)
		line++
		if hud.HighScore > 0 {
			s.DrawText(x, line, fmt.Sprintf("Best  %d", max(hud.HighScore, v.Score)), core.ColorText)
			line++
		}
	} else {
		s.DrawText(x, line, fmt.Sprintf("Sent  %d", v.Lines), core.ColorText)
		line++
		s.DrawText(x, line, fmt.Sprintf("Incoming %d", v.PendingPenalty), core.ColorPenalty)
		line++
	}
	line++

	if hud.Player != "" {
		s.DrawText(x, line, truncate(hud.Player, hudWidth-1), core.ColorText)
		line++
	}
	if hud.Paused {
		s.DrawText(x, line, "PAUSED", core.ColorAccent)
		line++
	}
	if hud.Status != "" {
		s.DrawText(x, line, truncate(hud.Status, hudWidth-1), core.ColorAccent)
		line++
	}
	if hud.Flash != "" {
		s.DrawText(x, line, truncate(hud.Flash, hudWidth-1), core.ColorAccent)
	}
}

// drawPreview draws k unrotated, one cell per two columns, and returns the
// rows used.
func drawPreview(s *core.Screen, x, y int, k piece.Kind) int {
	if !k.Valid() {
		return 0
	}
	rows := 0
	for _, off := range piece.Lookup(k).Cells(0) {
		s.Set(x+off.Col*2, y+off.Row, blockRune, core.ColorText)
		s.Set(x+off.Col*2+1, y+off.Row, blockRune, core.ColorText)
		rows = max(rows, off.Row+1)
	}
	return rows
}

// drawOpponents lays out decoded opponent boards left to right and notes
// the ones that do not fit.
func drawOpponents(s *core.Screen, x, y int, opponents []OpponentBoard) {
	bounds := core.NewRect(0, 0, s.Width(), s.Height())
	shown := 0
	for _, o := range opponents {
		rows, err := entris.DecodeSnapshot(o.Snapshot)
		w := minOpponentW
		if err == nil && len(rows) > 0 {
			w = max(len(rows[0])+2, minOpponentW)
		}
		if !bounds.Contains(x+w-1, y) {
			break
		}
		drawOpponent(s, x, y, o.Name, rows)
		x += w + 1
		shown++
	}
	if hidden := len(opponents) - shown; hidden > 0 && x < s.Width() {
		s.DrawText(x, y, fmt.Sprintf("+%d", hidden), core.ColorText)
	}
}

// SpectatorBoards pairs the roster of st with its snapshots, in roster order.
func SpectatorBoards(st protocol.GameStatus) []OpponentBoard {
	boards := make([]OpponentBoard, 0, len(st.Players))
	for _, p := range st.Players {
		boards = append(boards, OpponentBoard{
			Name:     p.ScreenName,
			Snapshot: st.Snapshots[strconv.Itoa(p.ID)],
		})
	}
	return boards
}

// RenderSpectator draws a status line and every board of st.
func RenderSpectator(s *core.Screen, st protocol.GameStatus) {
	s.Clear()
	state := "waiting"
	if st.Started {
		state = "running"
	}
	header := fmt.Sprintf("Game %d  %s  %d/%d players  %s",
		st.GameID, st.Dimensions, len(st.Players), st.Size, state)
	s.DrawText(0, 0, truncate(header, s.Width()), core.ColorAccent)
	drawOpponents(s, 0, 2, SpectatorBoards(st))
}

func drawOpponent(s *core.Screen, x, y int, name string, rows [][]bool) {
	if len(rows) == 0 {
		s.DrawText(x, y, truncate(name, minOpponentW), core.ColorText)
		s.DrawText(x, y+1, "no board", core.ColorGhost)
		return
	}
	width := len(rows[0])
	s.DrawBox(core.NewRect(x, y, width+2, len(rows)+2), core.ColorGhost)
	// The name replaces part of the top border.
	s.DrawText(x+1, y, truncate(name, width), core.ColorText)
	for r, row := range rows {
		for c, filled := range row {
			if filled {
				s.Set(x+1+c, y+1+r, miniRune, core.ColorPenalty)
			}
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return string(r[:1])
	}
	return string(r[:n-1]) + "."
}

// centerText centers text within given width.
func centerText(text string, width int) string {
	w := lipgloss.Width(text)
	if w >= width {
		return text
	}
	return strings.Repeat(" ", (width-w)/2) + text
}
