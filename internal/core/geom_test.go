package core

import "testing"

func TestRectContains(t *testing.T) {
	r := NewRect(2, 3, 4, 5)

	tests := []struct {
		name     string
		x, y     int
		expected bool
	}{
		{"top-left corner", 2, 3, true},
		{"inside", 4, 5, true},
		{"last column", 5, 7, true},
		{"right edge is exclusive", 6, 3, false},
		{"bottom edge is exclusive", 2, 8, false},
		{"left of rect", 1, 4, false},
		{"above rect", 3, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Contains(tt.x, tt.y); got != tt.expected {
				t.Errorf("Contains(%d, %d) = %v, expected %v", tt.x, tt.y, got, tt.expected)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, lo, hi, expected int
	}{
		{5, 2, 6, 5},
		{1, 2, 6, 2},
		{9, 2, 6, 6},
		{2, 2, 2, 2},
	}

	for _, tt := range tests {
		if got := Clamp(tt.val, tt.lo, tt.hi); got != tt.expected {
			t.Errorf("Clamp(%d, %d, %d) = %d, expected %d", tt.val, tt.lo, tt.hi, got, tt.expected)
		}
	}
}

func TestColorHex(t *testing.T) {
	c := RGB(100, 100, 100)
	if c != ColorPenalty {
		t.Fatalf("RGB(100, 100, 100) = %#x, expected %#x", uint32(c), uint32(ColorPenalty))
	}
	if c.Hex() != "#646464" {
		t.Errorf("Hex() = %q, expected #646464", c.Hex())
	}

	r, g, b := RGB(40, 128, 255).Components()
	if r != 40 || g != 128 || b != 255 {
		t.Errorf("Components() = (%d, %d, %d), expected (40, 128, 255)", r, g, b)
	}
}

func TestInputFrameOrder(t *testing.T) {
	f := NewInputFrame()
	f.Set(ActionLeft)
	f.Set(ActionNone)
	f.Set(ActionRotateCW)

	got := f.Actions()
	if len(got) != 2 || got[0] != ActionLeft || got[1] != ActionRotateCW {
		t.Fatalf("Actions() = %v, expected [Left RotateCW]", got)
	}
	if !f.Has(ActionRotateCW) || f.Has(ActionDrop) {
		t.Error("Has() reported wrong membership")
	}

	f.Clear()
	if len(f.Actions()) != 0 {
		t.Errorf("Clear() left %d actions", len(f.Actions()))
	}
}
