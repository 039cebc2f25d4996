package piece

import "testing"

func TestCatalogLayout(t *testing.T) {
	if Lookup(Duck).Kind != Duck {
		t.Fatal("duck must be catalog index 0")
	}
	for k := Kind(0); k < Count; k++ {
		if len(Lookup(k).Cells(0)) == 0 {
			t.Errorf("kind %v has no cells", k)
		}
	}
	if Kind(Count).Valid() || Kind(-1).Valid() {
		t.Error("out-of-range kinds reported valid")
	}
}

func TestRotateCW(t *testing.T) {
	// A downward T turned clockwise points its stem west.
	got := parse("###", ".#.").RotateCW()
	want := parse(".#", "##", ".#")
	if len(got) != len(want) {
		t.Fatalf("rotated rows = %d, expected %d", len(got), len(want))
	}
	for r := range want {
		for c := range want[r] {
			if got[r][c] != want[r][c] {
				t.Fatalf("cell (%d,%d) = %v, expected %v", r, c, got[r][c], want[r][c])
			}
		}
	}
}

func TestFourTurnsIsIdentity(t *testing.T) {
	for k := Kind(0); k < Count; k++ {
		s := Lookup(k)
		a, b := s.Cells(0), s.Cells(4)
		if len(a) != len(b) {
			t.Fatalf("%v: cell counts differ", k)
		}
		for i := range a {
			if a[i] != b[i] {
				t.Errorf("%v: rotation 4 differs from rotation 0 at %d", k, i)
			}
		}
		if len(s.Cells(-1)) != len(s.Cells(3)) {
			t.Errorf("%v: negative rotation not normalized", k)
		}
	}
}

func TestLongRotation(t *testing.T) {
	horizontal := IndicesAt(Long, 0, 3, 10)
	vertical := IndicesAt(Long, 1, 3, 10)

	wantH := []int{3, 4, 5, 6}
	wantV := []int{3, 13, 23, 33}
	for i := range wantH {
		if horizontal[i] != wantH[i] {
			t.Errorf("horizontal = %v, expected %v", horizontal, wantH)
			break
		}
	}
	for i := range wantV {
		if vertical[i] != wantV[i] {
			t.Errorf("vertical = %v, expected %v", vertical, wantV)
			break
		}
	}
}

func TestMaxSpanIsDuckWidth(t *testing.T) {
	if MaxSpan() != 5 {
		t.Errorf("MaxSpan() = %d, expected 5", MaxSpan())
	}
}

func TestPieceRotated(t *testing.T) {
	p := New(T, 0, 3, 0)
	if got := p.Rotated(1, true); got != 0 {
		t.Errorf("Rotated(1, cw) from 3 = %d, expected 0", got)
	}
	if got := p.Rotated(1, false); got != 2 {
		t.Errorf("Rotated(1, ccw) from 3 = %d, expected 2", got)
	}
	if got := p.Rotated(6, false); got != 1 {
		t.Errorf("Rotated(6, ccw) from 3 = %d, expected 1", got)
	}
}

func TestRandomColorRange(t *testing.T) {
	rng := NewRNG(11)
	for i := 0; i < 200; i++ {
		r, g, b := RandomColor(rng).Components()
		if r < 40 || g < 40 || b < 40 {
			t.Fatalf("component below 40: (%d, %d, %d)", r, g, b)
		}
	}
}
