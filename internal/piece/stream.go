package piece

// Stream is an unbounded, probability-weighted sequence of piece kinds.
// The rare shape is drawn with the configured probability and every other
// shape shares the remainder equally.
//
// A Stream is not safe for concurrent use.
type Stream struct {
	rng      RNG
	duckProb float64
	drawn    uint64
}

// NewStream creates a stream. duckProb is clamped to [0, 1].
func NewStream(seed uint64, duckProb float64) *Stream {
	return &Stream{
		rng:      *NewRNG(seed),
		duckProb: min(max(duckProb, 0), 1),
	}
}

// DuckProbability returns the rare-shape probability.
func (s *Stream) DuckProbability() float64 {
	return s.duckProb
}

// Next draws the next kind.
func (s *Stream) Next() Kind {
	s.drawn++
	if s.rng.Float() < s.duckProb {
		return Duck
	}
	return Kind(1 + s.rng.Intn(Count-1))
}

// Take draws n kinds.
func (s *Stream) Take(n int) []Kind {
	out := make([]Kind, 0, max(n, 0))
	for range max(n, 0) {
		out = append(out, s.Next())
	}
	return out
}

// Fork returns an independent cursor that yields exactly what s would yield
// from this point on. Draws from either side never affect the other.
func (s *Stream) Fork() *Stream {
	clone := *s
	return &clone
}

// Drawn returns how many kinds have been drawn through this cursor,
// including draws made before it was forked.
func (s *Stream) Drawn() uint64 {
	return s.drawn
}
