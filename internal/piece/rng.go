package piece

// RNG is a deterministic xorshift64 generator. Its whole state is one word,
// so copying the value copies its future.
type RNG struct {
	state uint64
}

// NewRNG creates a new RNG with the given seed.
// The seed is scrambled first so that small or similar seeds do not start
// in visibly correlated states.
func NewRNG(seed uint64) *RNG {
	state := splitmix64(seed)
	if state == 0 {
		state = 88172645463325252
	}
	return &RNG{state: state}
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// Next returns the next random uint64.
func (r *RNG) Next() uint64 {
	r.state ^= r.state << 13
	r.state ^= r.state >> 7
	r.state ^= r.state << 17
	return r.state
}

// Float returns a random float64 in [0, 1).
func (r *RNG) Float() float64 {
	return float64(r.Next()>>11) / (1 << 53)
}

// Intn returns a random int in [0, n).
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Next() % uint64(n))
}

// IntRange returns a random int in [lo, hi].
func (r *RNG) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}
