package entris

import (
	"slices"
	"sync"

	"github.com/jcharra/Entris/internal/piece"
)

// DefaultQueueSize is the number of upcoming pieces a queue holds.
const DefaultQueueSize = 10

// Source supplies piece kinds to a Queue. ok is false when nothing is
// available right now.
type Source interface {
	Next() (k piece.Kind, ok bool)
}

// StreamSource draws directly from a local stream. It never runs dry.
type StreamSource struct {
	Stream *piece.Stream
}

// Next draws the next kind.
func (s StreamSource) Next() (piece.Kind, bool) {
	return s.Stream.Next(), true
}

// Reservoir is a concurrency-safe FIFO of kinds fed from the network.
type Reservoir struct {
	mu    sync.Mutex
	items []piece.Kind
}

// NewReservoir creates an empty reservoir.
func NewReservoir() *Reservoir {
	return &Reservoir{}
}

// Feed appends a batch. Invalid kinds are dropped.
func (r *Reservoir) Feed(batch []piece.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range batch {
		if k.Valid() {
			r.items = append(r.items, k)
		}
	}
}

// Next pops the oldest kind.
func (r *Reservoir) Next() (piece.Kind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return 0, false
	}
	k := r.items[0]
	r.items = r.items[1:]
	return k, true
}

// Len returns the number of buffered kinds.
func (r *Reservoir) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Queue is the fixed-length preview of upcoming pieces. Once primed it
// always holds exactly its size: a piece is only handed out when a
// replacement could be pulled from the source.
type Queue struct {
	size  int
	items []piece.Kind
	src   Source
}

// NewQueue creates a queue and primes it as far as the source allows.
func NewQueue(size int, src Source) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{size: size, items: make([]piece.Kind, 0, size), src: src}
	q.Prime()
	return q
}

// Prime fills the queue up to its size. Returns true when full.
func (q *Queue) Prime() bool {
	for len(q.items) < q.size {
		k, ok := q.src.Next()
		if !ok {
			return false
		}
		q.items = append(q.items, k)
	}
	return true
}

// Next hands out the front kind and appends a fresh one at the back.
// ok is false, and nothing changes, when no replacement is available.
func (q *Queue) Next() (piece.Kind, bool) {
	if !q.Prime() {
		return 0, false
	}
	k, ok := q.src.Next()
	if !ok {
		return 0, false
	}
	front := q.items[0]
	copy(q.items, q.items[1:])
	q.items[len(q.items)-1] = k
	return front, true
}

// Ready reports whether Next would hand out a piece. It primes the queue
// but never consumes from it.
func (q *Queue) Ready() bool {
	if !q.Prime() {
		return false
	}
	if b, ok := q.src.(interface{ Len() int }); ok {
		return b.Len() > 0
	}
	return true
}

// Len returns the number of queued kinds.
func (q *Queue) Len() int { return len(q.items) }

// Size returns the target length.
func (q *Queue) Size() int { return q.size }

// Peek returns a copy of the queued kinds, front first.
func (q *Queue) Peek() []piece.Kind {
	return slices.Clone(q.items)
}
