package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/stripedpool/internal/sentinel"
)

// ErrPoolClosed is returned by Take after Close has been called, including
// by Takes that were already parked when Close ran.
const ErrPoolClosed = sentinel.Error("pool is closed")

// destroyAllConcurrency bounds the number of destructors DestroyAll and
// Close run in parallel. Destructors may block on I/O, so running them
// concurrently keeps worst-case drain latency near a single destructor's
// instead of the sum, without an unbounded goroutine burst on large caches.
const destroyAllConcurrency = 8

// Pool manages a bounded collection of reusable resources sharded into
// stripes. Each stripe owns a slice of the total capacity and is locked
// independently, so callers on different stripes never contend.
//
// It is safe for concurrent use by multiple goroutines.
type Pool[R any] struct {
	// cfg is immutable after NewPool returns.
	cfg Config[R]

	// stripes is the immutable ordered set of shards. Capacities follow
	// stripeSizes, so the first MaxResources mod len(stripes) stripes hold
	// one extra permit.
	stripes []*LocalPool[R]

	// closed is the Take fast-path flag. The authoritative flag is the
	// per-stripe closed bool, set under each stripe's mutex by Close.
	closed atomic.Bool

	// closeCh is closed by Close to unblock parked waiters.
	closeCh chan struct{}

	// closeOnce ensures Close runs its shutdown sequence exactly once.
	closeOnce sync.Once

	// reapCancel stops the reaper goroutine; reaperDone is closed when the
	// reaper has exited.
	reapCancel context.CancelFunc
	reaperDone chan struct{}
}

// NewPool validates cfg, carves MaxResources permits into stripes and starts
// the background reaper. The returned pool must be released with Close.
func NewPool[R any](cfg Config[R]) (*Pool[R], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	sizes := stripeSizes(cfg.MaxResources, cfg.Stripes)
	stripes := make([]*LocalPool[R], len(sizes))
	for i, size := range sizes {
		stripes[i] = &LocalPool[R]{index: i + 1, capacity: size, available: size}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool[R]{
		cfg:        cfg,
		stripes:    stripes,
		closeCh:    make(chan struct{}),
		reapCancel: cancel,
		reaperDone: make(chan struct{}),
	}
	go p.reap(ctx)

	return p, nil
}

// Stripes returns the pool's shards in capacity-assignment order.
func (p *Pool[R]) Stripes() []*LocalPool[R] {
	return p.stripes
}

// Take borrows a resource and returns the stripe it belongs to. The stripe
// must be handed back to Put or Destroy together with the resource.
//
// The fast paths reuse a cached idle resource or, when a permit is free,
// invoke Create with no lock held. Take blocks only when the selected stripe
// has neither; it then parks FIFO behind earlier waiters until a Put or
// Destroy on the stripe wakes it, the context is canceled, or the pool is
// closed. A woken waiter receives either the returned resource directly or
// a bare permit obliging it to Create.
func (p *Pool[R]) Take(ctx context.Context) (R, *LocalPool[R], error) {
	var zero R

	if err := ctx.Err(); err != nil {
		return zero, nil, fmt.Errorf("context done before take: %w", err)
	}
	if p.closed.Load() {
		return zero, nil, ErrPoolClosed
	}

	lp := p.stripes[pickStripe(len(p.stripes))]

	lp.mu.Lock()
	if lp.closed {
		lp.mu.Unlock()
		return zero, nil, ErrPoolClosed
	}
	if n := len(lp.cache); n > 0 {
		e := lp.cache[n-1]
		lp.cache[n-1] = entry[R]{}
		lp.cache = lp.cache[:n-1]
		lp.mu.Unlock()
		// The entry kept occupying its permit slot while cached, so
		// available does not move here.
		return e.res, lp, nil
	}
	if lp.available > 0 {
		lp.available--
		lp.mu.Unlock()
		return p.create(ctx, lp)
	}

	// Saturated: park on a fresh rendezvous cell.
	w := newWaiter[R]()
	lp.waiters.enqueue(w)
	lp.mu.Unlock()

	select {
	case h := <-w.ch:
		if h.ok {
			return h.res, lp, nil
		}
		// Woken with a bare permit: the releaser destroyed its resource,
		// so this caller creates a fresh one.
		return p.create(ctx, lp)
	case <-ctx.Done():
		p.unpark(lp, w)
		return zero, nil, fmt.Errorf("context done while waiting for resource: %w", ctx.Err())
	case <-p.closeCh:
		p.unpark(lp, w)
		return zero, nil, ErrPoolClosed
	}
}

// create invokes the user factory while holding one of lp's permits. On
// failure the permit is released through signal, so a parked waiter (or the
// available counter) gets it back before the error propagates to the caller.
func (p *Pool[R]) create(ctx context.Context, lp *LocalPool[R]) (R, *LocalPool[R], error) {
	res, err := p.cfg.Create(ctx)
	if err != nil {
		var zero R
		lp.mu.Lock()
		lp.signal(handoff[R]{})
		lp.mu.Unlock()
		return zero, nil, fmt.Errorf("create resource: %w", err)
	}
	return res, lp, nil
}

// unpark cleans up after a parked Take stopped waiting, whether through
// cancellation or pool close. If a releaser filled the cell before the
// tombstone landed, the delivered value is passed straight back to signal so
// no resource or permit is lost; a resource rejected by a closed stripe is
// destroyed instead. The tombstoned cell itself stays queued until a later
// signal drain discards it.
func (p *Pool[R]) unpark(lp *LocalPool[R], w *waiter[R]) {
	lp.mu.Lock()
	h, tombstoned := w.abandon()
	rejected := false
	if !tombstoned {
		rejected = lp.signal(h)
	}
	lp.mu.Unlock()

	if rejected {
		p.destroy(h.res)
	}
}

// Put returns res to its stripe: the oldest live waiter receives it
// directly, otherwise it joins the idle cache stamped with the current time.
// Put never fails; once the pool is closed the resource is destroyed instead
// of cached.
func (p *Pool[R]) Put(lp *LocalPool[R], res R) {
	lp.mu.Lock()
	rejected := lp.signal(handoff[R]{res: res, ok: true})
	lp.mu.Unlock()

	if rejected {
		p.destroy(res)
	}
}

// Destroy removes res from circulation. The permit is released first — a
// parked waiter wakes holding permission to create — and the destructor runs
// only after the stripe mutex is dropped, so a stuck destructor cannot
// starve the stripe. Destructor failures are swallowed.
func (p *Pool[R]) Destroy(lp *LocalPool[R], res R) {
	lp.mu.Lock()
	lp.signal(handoff[R]{})
	lp.mu.Unlock()

	p.destroy(res)
}

// DestroyAll drains every stripe's cache and destroys the drained resources.
// Resources currently out with callers are unaffected and the pool remains
// usable afterward. Calling DestroyAll twice destroys each cached entry at
// most once: the second drain finds the caches empty.
func (p *Pool[R]) DestroyAll() {
	var g errgroup.Group
	g.SetLimit(destroyAllConcurrency)
	for _, lp := range p.stripes {
		for _, e := range lp.drainCache() {
			g.Go(func() error {
				p.destroy(e.res)
				return nil
			})
		}
	}
	_ = g.Wait() // destructor failures are swallowed; the group reports none
}

// Close shuts the pool down: subsequent Takes fail with ErrPoolClosed,
// parked waiters are woken with the same error, the reaper is stopped, and
// every cached resource is destroyed. Resources still out with callers may
// be handed back through Put or Destroy, which destroy them. Safe to call
// multiple times (idempotent).
func (p *Pool[R]) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		// Mark stripes closed before waking waiters so that any hand-off
		// racing the shutdown is rejected by signal and destroyed rather
		// than cached behind the final drain.
		for _, lp := range p.stripes {
			lp.mu.Lock()
			lp.closed = true
			lp.mu.Unlock()
		}
		close(p.closeCh)

		p.reapCancel()
		<-p.reaperDone

		p.DestroyAll()
	})
}

// destroy runs the user destructor, swallowing failures. Every destruction
// path funnels through here so the swallow-and-log policy stays uniform.
func (p *Pool[R]) destroy(res R) {
	if err := p.cfg.Destroy(res); err != nil {
		Logger().Debug("destroy resource failed", "error", err)
	}
}
