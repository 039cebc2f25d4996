package core

import "fmt"

// Color is a 24-bit RGB value packed as 0xRRGGBB.
// The zero value means "no color": an empty cell or the terminal default.
type Color uint32

// Colors used outside the piece palette.
const (
	ColorDefault Color = 0
	ColorPenalty Color = 0x646464
	ColorGhost   Color = 0x3a3a3a
	ColorText    Color = 0xd0d0d0
	ColorAccent  Color = 0xffd75f
)

// RGB packs three components into a Color.
func RGB(r, g, b uint8) Color {
	return Color(r)<<16 | Color(g)<<8 | Color(b)
}

// Components unpacks the color.
func (c Color) Components() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Hex returns the color as "#rrggbb", the form lipgloss expects.
func (c Color) Hex() string {
	r, g, b := c.Components()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// IsSet reports whether the color is non-zero.
func (c Color) IsSet() bool {
	return c != ColorDefault
}
