package core

import "sync/atomic"

// Rendezvous cell states. A cell moves from cellEmpty to exactly one of
// cellGiven (a signaller delivered a hand-off) or cellAbandoned (the waiter
// stopped waiting). There is no further transition.
const (
	cellEmpty uint32 = iota
	cellGiven
	cellAbandoned
)

// handoff is the value transferred from a releaser to a parked waiter. ok
// distinguishes a direct resource hand-off from a bare permit: when ok is
// false the waiter has been granted the right to create a resource itself.
type handoff[R any] struct {
	res R
	ok  bool
}

// waiter is the one-shot rendezvous cell a saturated Take parks on.
//
// The state machine makes delivery race-free against cancellation: tryGive
// and abandon both CAS out of cellEmpty, so exactly one side wins. The
// channel has capacity 1 and is written only by the winning tryGive, so the
// send never blocks. Both methods run under the stripe mutex, which orders
// the buffered send before any abandon that observes cellGiven.
type waiter[R any] struct {
	state atomic.Uint32
	ch    chan handoff[R]
}

func newWaiter[R any]() *waiter[R] {
	return &waiter[R]{ch: make(chan handoff[R], 1)}
}

// tryGive attempts to deliver h to the waiter. It returns false if the
// waiter already abandoned the cell, in which case the caller keeps
// ownership of h. Must be called with the stripe mutex held.
func (w *waiter[R]) tryGive(h handoff[R]) bool {
	if !w.state.CompareAndSwap(cellEmpty, cellGiven) {
		return false
	}
	w.ch <- h
	return true
}

// abandon marks the cell dead so any future tryGive fails fast. If a
// signaller raced ahead and filled the cell, abandon returns the delivered
// hand-off with tombstoned=false; the caller must pass it back to signal so
// the resource or permit is not lost. Must be called with the stripe mutex
// held.
func (w *waiter[R]) abandon() (h handoff[R], tombstoned bool) {
	if w.state.CompareAndSwap(cellEmpty, cellAbandoned) {
		return handoff[R]{}, true
	}
	// The giver CASed to cellGiven and completed its buffered send while
	// holding the stripe mutex, so the value is already present.
	return <-w.ch, false
}

// waiterQueue is a two-slice FIFO of parked waiters with O(1) enqueue and
// amortized O(1) dequeue. enqueue appends to back; dequeue consumes front by
// reslicing and, when front is exhausted, swaps back in. The swap keeps the
// consumed prefix from pinning memory the way a single ever-growing slice
// would, and every enqueue costs at most one amortized slot of growth.
type waiterQueue[R any] struct {
	front []*waiter[R]
	back  []*waiter[R]
}

func (q *waiterQueue[R]) enqueue(w *waiter[R]) {
	q.back = append(q.back, w)
}

func (q *waiterQueue[R]) dequeue() (*waiter[R], bool) {
	if len(q.front) == 0 {
		if len(q.back) == 0 {
			return nil, false
		}
		q.front, q.back = q.back, q.front[:0]
	}
	w := q.front[0]
	q.front[0] = nil // drop the reference so the cell can be collected
	q.front = q.front[1:]
	return w, true
}

func (q *waiterQueue[R]) empty() bool {
	return len(q.front) == 0 && len(q.back) == 0
}
