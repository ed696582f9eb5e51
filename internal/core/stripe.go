package core

import (
	"fmt"
	"sync"
	"time"
)

// entry is an idle cached resource stamped with its last-used time. The
// time.Time carries a monotonic reading, so reaper age checks are immune to
// wall-clock adjustments.
type entry[R any] struct {
	res      R
	lastUsed time.Time
}

// LocalPool is one shard (stripe) of a Pool. Take returns the stripe a
// resource was drawn from; the same stripe must be passed back to Put or
// Destroy for that resource.
type LocalPool[R any] struct {
	// index is the stable 1-based stripe number, used for logging.
	index int

	// capacity is the permit count assigned to this stripe at construction.
	capacity int

	// mu guards every field below. It is a leaf lock: no code path holds
	// two stripe mutexes at once, and it is never held across Create or
	// Destroy invocations.
	mu sync.Mutex

	// available counts never-created permits: capacity minus resources that
	// are live, whether out with callers or idle in cache. A cached entry
	// occupies its slot without holding a permit, so taking from cache and
	// returning to cache leave available untouched, and evicting from cache
	// gives the permit back.
	available int

	// cache holds idle resources for reuse, most recently returned last.
	// Take pops from the end so hot resources are reused first; eviction is
	// by staleness, not position.
	cache []entry[R]

	// waiters is the FIFO of rendezvous cells parked by saturated Takes.
	// Abandoned cells stay queued until a signal drain discards them.
	waiters waiterQueue[R]

	// closed is set by Pool.Close under mu. Once set, signal refuses to
	// cache returned resources so nothing outlives the final drain.
	closed bool
}

// Index returns the stable 1-based stripe number.
func (lp *LocalPool[R]) Index() int {
	return lp.index
}

// signal is the single transition applied when a resource comes back (h.ok)
// or a permit is released without one (destroy, failed create). Precedence:
//
//  1. With no permits left and waiters queued, hand h to the oldest waiter
//     whose cell is still empty, discarding abandoned cells on the way. The
//     receiving waiter then owns the resource, or the permit to create one.
//  2. Otherwise a resource joins the cache (its slot stays occupied, so
//     available is unchanged) and a bare permit increments available.
//
// Returns rejected=true when the stripe is closed and h carried a resource
// that must not be cached; the caller destroys it after releasing mu.
//
// Must be called with mu held.
func (lp *LocalPool[R]) signal(h handoff[R]) (rejected bool) {
	if lp.available == 0 {
		for {
			w, ok := lp.waiters.dequeue()
			if !ok {
				break
			}
			if w.tryGive(h) {
				return false
			}
		}
	}

	if h.ok && !lp.closed {
		lp.cache = append(lp.cache, entry[R]{res: h.res, lastUsed: time.Now()})
		return false
	}

	lp.available++
	if lp.available > lp.capacity {
		panic(fmt.Sprintf("stripedpool: stripe %d available %d exceeds capacity %d",
			lp.index, lp.available, lp.capacity))
	}
	return h.ok
}

// takeStale removes and returns all cache entries idle longer than ttl as of
// now. Each evicted entry's slot reverts to a never-created permit. Waiters
// cannot be stranded by the permit bump: a waiter only parks when the cache
// is empty, and hand-off keeps it empty while any waiter is queued.
func (lp *LocalPool[R]) takeStale(now time.Time, ttl time.Duration) []entry[R] {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	var stale []entry[R]
	fresh := lp.cache[:0]
	for _, e := range lp.cache {
		if now.Sub(e.lastUsed) > ttl {
			stale = append(stale, e)
		} else {
			fresh = append(fresh, e)
		}
	}
	// Clear the vacated tail so evicted resources are not retained by the
	// backing array.
	for i := len(fresh); i < len(lp.cache); i++ {
		lp.cache[i] = entry[R]{}
	}
	lp.cache = fresh
	lp.available += len(stale)

	return stale
}

// drainCache removes and returns every cached entry, reverting their slots
// to permits.
func (lp *LocalPool[R]) drainCache() []entry[R] {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	drained := lp.cache
	lp.cache = nil
	lp.available += len(drained)

	return drained
}
