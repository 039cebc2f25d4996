// Package piece holds the falling-block shape catalog and the weighted,
// forkable piece stream shared by every player of a game.
package piece

import "fmt"

// Kind indexes the catalog. The rare shape sits at index 0.
type Kind int

const (
	Duck Kind = iota
	Long
	T
	Hook1
	Hook2
	Block
	Flash1
	Flash2
)

// Count is the number of shapes in the catalog.
const Count = 8

var kindNames = [Count]string{"duck", "long", "t", "hook1", "hook2", "block", "flash1", "flash2"}

// String returns the shape name.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k indexes the catalog.
func (k Kind) Valid() bool {
	return k >= 0 && k < Count
}

// Offset is a template cell relative to the top-left corner of the shape.
type Offset struct {
	Row, Col int
}

// Matrix is a shape template, row-major, true marks a filled cell.
type Matrix [][]bool

// RotateCW returns the matrix turned a quarter clockwise.
// The result has as many rows as m has columns.
func (m Matrix) RotateCW() Matrix {
	if len(m) == 0 {
		return Matrix{}
	}
	rows, cols := len(m), len(m[0])
	out := make(Matrix, cols)
	for c := 0; c < cols; c++ {
		out[c] = make([]bool, rows)
		for r := 0; r < rows; r++ {
			out[c][r] = m[rows-1-r][c]
		}
	}
	return out
}

// Offsets lists the filled cells of m in row-major order.
func (m Matrix) Offsets() []Offset {
	var out []Offset
	for r, row := range m {
		for c, filled := range row {
			if filled {
				out = append(out, Offset{Row: r, Col: c})
			}
		}
	}
	return out
}

// Shape is a catalog entry with its four precomputed rotations.
type Shape struct {
	Kind      Kind
	Template  Matrix
	rotations [4][]Offset
}

// Cells returns the filled offsets for the given quarter-turn count.
// Rotation is taken modulo 4, negative values included.
func (s Shape) Cells(rotation int) []Offset {
	return s.rotations[normRotation(rotation)]
}

func normRotation(r int) int {
	return ((r % 4) + 4) % 4
}

func parse(rows ...string) Matrix {
	m := make(Matrix, len(rows))
	for i, row := range rows {
		m[i] = make([]bool, len(row))
		for j, ch := range row {
			m[i][j] = ch == '#'
		}
	}
	return m
}

var templates = [Count]Matrix{
	Duck: parse(
		".###..",
		"##.#..",
		".###.#",
		"######",
		"######",
		".####.",
	),
	Long: parse("####"),
	T: parse(
		"###",
		".#.",
	),
	Hook1: parse(
		"##",
		"#.",
		"#.",
	),
	Hook2: parse(
		"##",
		".#",
		".#",
	),
	Block: parse(
		"##",
		"##",
	),
	Flash1: parse(
		"#.",
		"##",
		".#",
	),
	Flash2: parse(
		".#",
		"##",
		"#.",
	),
}

var (
	catalog [Count]Shape
	maxSpan int
)

func init() {
	for k, tmpl := range templates {
		s := Shape{Kind: Kind(k), Template: tmpl}
		m := tmpl
		for r := 0; r < 4; r++ {
			s.rotations[r] = m.Offsets()
			maxSpan = max(maxSpan, span(s.rotations[r]))
			m = m.RotateCW()
		}
		catalog[k] = s
	}
}

func span(cells []Offset) int {
	if len(cells) == 0 {
		return 0
	}
	lo, hi := cells[0].Col, cells[0].Col
	for _, c := range cells[1:] {
		lo = min(lo, c.Col)
		hi = max(hi, c.Col)
	}
	return hi - lo
}

// Lookup returns the catalog entry for k. It panics on an invalid kind.
func Lookup(k Kind) Shape {
	if !k.Valid() {
		panic(fmt.Sprintf("piece: invalid kind %d", int(k)))
	}
	return catalog[k]
}

// MaxSpan is the largest column distance between two cells of any shape in
// any rotation. A placement spreading wider than this has wrapped around the
// board edge.
func MaxSpan() int {
	return maxSpan
}
