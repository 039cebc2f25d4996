package entris

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedSnapshot is returned when a snapshot string cannot be decoded.
var ErrMalformedSnapshot = errors.New("entris: malformed snapshot")

// EncodeSnapshot renders an occupancy array as "<width>,<bits>", one '0' or
// '1' per cell, row-major, top row first.
func EncodeSnapshot(width int, occupied []bool) string {
	var sb strings.Builder
	sb.Grow(len(occupied) + 4)
	sb.WriteString(strconv.Itoa(width))
	sb.WriteByte(',')
	for _, o := range occupied {
		if o {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// DecodeSnapshot parses a snapshot into rows of occupancy flags.
func DecodeSnapshot(s string) ([][]bool, error) {
	head, bits, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing width separator", ErrMalformedSnapshot)
	}
	width, err := strconv.Atoi(head)
	if err != nil || width <= 0 {
		return nil, fmt.Errorf("%w: bad width %q", ErrMalformedSnapshot, head)
	}
	if len(bits) == 0 || len(bits)%width != 0 {
		return nil, fmt.Errorf("%w: %d cells is not a multiple of width %d", ErrMalformedSnapshot, len(bits), width)
	}

	rows := make([][]bool, 0, len(bits)/width)
	for start := 0; start < len(bits); start += width {
		row := make([]bool, width)
		for i := 0; i < width; i++ {
			switch bits[start+i] {
			case '1':
				row[i] = true
			case '0':
			default:
				return nil, fmt.Errorf("%w: unexpected %q at %d", ErrMalformedSnapshot, bits[start+i], start+i)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
