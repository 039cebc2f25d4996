// Package entris implements the falling-block simulation: the board, the
// session state machine, scoring and the penalty exchange used in
// multiplayer games. Everything here is deterministic for a given seed and
// never touches the network or the terminal.
package entris

import (
	"slices"

	"github.com/jcharra/Entris/internal/core"
)

// Direction is a one-cell move of the falling piece.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// String returns the compass name.
func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return "unknown"
	}
}

// Delta returns the index offset of the move on a board of the given width.
func (d Direction) Delta(width int) int {
	switch d {
	case North:
		return -width
	case East:
		return 1
	case South:
		return width
	case West:
		return -1
	default:
		return 0
	}
}

// Board is a flat, row-major grid of cells. A zero color is an empty cell.
// len(cells) == width*height always holds.
type Board struct {
	width  int
	height int
	cells  []core.Color
}

// NewBoard creates an empty board.
func NewBoard(width, height int) *Board {
	return &Board{
		width:  width,
		height: height,
		cells:  make([]core.Color, width*height),
	}
}

// Width returns the number of columns.
func (b *Board) Width() int { return b.width }

// Height returns the number of rows.
func (b *Board) Height() int { return b.height }

// Len returns the number of cells.
func (b *Board) Len() int { return len(b.cells) }

// InBounds reports whether i is a valid cell index.
func (b *Board) InBounds(i int) bool {
	return i >= 0 && i < len(b.cells)
}

// Cell returns the color at index i, zero when out of bounds.
func (b *Board) Cell(i int) core.Color {
	if !b.InBounds(i) {
		return core.ColorDefault
	}
	return b.cells[i]
}

// Occupied reports whether the cell at index i is filled.
func (b *Board) Occupied(i int) bool {
	return b.Cell(i).IsSet()
}

// Set writes a color into the cell at index i. Out-of-bounds writes are ignored.
func (b *Board) Set(i int, c core.Color) {
	if b.InBounds(i) {
		b.cells[i] = c
	}
}

// Row returns the row of index i.
func (b *Board) Row(i int) int { return i / b.width }

// Col returns the column of index i.
func (b *Board) Col(i int) int { return i % b.width }

// Fits reports whether every index is on the board and empty.
func (b *Board) Fits(indices []int) bool {
	for _, i := range indices {
		if !b.InBounds(i) || b.Occupied(i) {
			return false
		}
	}
	return true
}

// RowEmpty reports whether row r has no occupied cell.
func (b *Board) RowEmpty(r int) bool {
	for _, c := range b.cells[r*b.width : (r+1)*b.width] {
		if c.IsSet() {
			return false
		}
	}
	return true
}

// FindCompleteRows returns, in ascending order, the rows whose cells are
// all occupied.
func (b *Board) FindCompleteRows() []int {
	var rows []int
	for r := 0; r < b.height; r++ {
		full := true
		for _, c := range b.cells[r*b.width : (r+1)*b.width] {
			if !c.IsSet() {
				full = false
				break
			}
		}
		if full {
			rows = append(rows, r)
		}
	}
	return rows
}

// ClearRows removes the given rows, shifts everything above them down and
// fills the top with as many empty rows. Duplicate and out-of-range rows
// are ignored. Returns the number of rows removed.
func (b *Board) ClearRows(rows []int) int {
	remove := make(map[int]bool, len(rows))
	for _, r := range rows {
		if r >= 0 && r < b.height {
			remove[r] = true
		}
	}
	if len(remove) == 0 {
		return 0
	}

	kept := make([]core.Color, len(remove)*b.width, len(b.cells))
	for r := 0; r < b.height; r++ {
		if !remove[r] {
			kept = append(kept, b.cells[r*b.width:(r+1)*b.width]...)
		}
	}
	b.cells = kept
	return len(remove)
}

// PushBottom drops the top len(rows) rows and appends rows at the bottom.
// Each row must have exactly width cells. Returns true when any dropped row
// held an occupied cell.
func (b *Board) PushBottom(rows [][]core.Color) (overflow bool) {
	n := min(len(rows), b.height)
	for r := 0; r < n; r++ {
		if !b.RowEmpty(r) {
			overflow = true
		}
	}
	cells := slices.Clone(b.cells[n*b.width:])
	for _, row := range rows[len(rows)-n:] {
		cells = append(cells, row...)
	}
	b.cells = cells
	return overflow
}

// Cells returns a copy of the cell array.
func (b *Board) Cells() []core.Color {
	return slices.Clone(b.cells)
}

// Occupancy returns the filled flag of every cell, row-major.
func (b *Board) Occupancy() []bool {
	out := make([]bool, len(b.cells))
	for i, c := range b.cells {
		out[i] = c.IsSet()
	}
	return out
}
