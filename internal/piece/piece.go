package piece

import "github.com/jcharra/Entris/internal/core"

// Piece is a falling shape placed on a board of a given row width.
// Anchor is the board index of the template's top-left cell.
type Piece struct {
	Kind     Kind
	Rotation int
	Anchor   int
	Color    core.Color
}

// New creates a piece of kind k at the given anchor.
func New(k Kind, anchor, rotation int, color core.Color) *Piece {
	return &Piece{
		Kind:     k,
		Rotation: normRotation(rotation),
		Anchor:   anchor,
		Color:    color,
	}
}

// Cells returns the template offsets for the current rotation.
func (p *Piece) Cells() []Offset {
	return Lookup(p.Kind).Cells(p.Rotation)
}

// OccupiedIndices returns the board indices covered by the piece.
func (p *Piece) OccupiedIndices(width int) []int {
	return IndicesAt(p.Kind, p.Rotation, p.Anchor, width)
}

// IndicesAt returns the board indices a piece of kind k would cover with
// the given rotation and anchor.
func IndicesAt(k Kind, rotation, anchor, width int) []int {
	cells := Lookup(k).Cells(rotation)
	out := make([]int, len(cells))
	for i, c := range cells {
		out[i] = anchor + c.Col + c.Row*width
	}
	return out
}

// Rotated returns the rotation state after turning steps quarter turns.
func (p *Piece) Rotated(steps int, clockwise bool) int {
	if !clockwise {
		steps = -steps
	}
	return normRotation(p.Rotation + steps)
}

// RandomColor picks a color with every component in [40, 255].
func RandomColor(rng *RNG) core.Color {
	return core.RGB(
		uint8(rng.IntRange(40, 255)),
		uint8(rng.IntRange(40, 255)),
		uint8(rng.IntRange(40, 255)),
	)
}
