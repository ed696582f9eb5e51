package stripedpool

import (
	"context"

	"github.com/giantswarm/stripedpool/internal/core"
)

// Pool is a bounded, striped pool of reusable resources of type R. It is
// safe for concurrent use by multiple goroutines.
//
// The core.Pool is stored as a named (unexported) field rather than embedded
// to keep internal methods out of the public surface.
type Pool[R any] struct {
	p *core.Pool[R]
}

// Stripe identifies the shard a resource was drawn from. Pass it back,
// together with the resource, to Put or Destroy. Stripes are advisory
// affinity only: the next Take may bind the caller to a different stripe.
type Stripe[R any] struct {
	lp *core.LocalPool[R]
}

// New builds a pool around the given create and destroy callbacks and starts
// its background reaper. The returned pool must be released with Close.
//
// create is invoked with no pool lock held and receives the Take caller's
// context; if it fails, the capacity it would have consumed is restored
// before the error is returned to the caller. destroy is also invoked with
// no lock held; its errors are logged and swallowed on every path.
//
// New returns an error describing every configuration violation at once if
// the assembled configuration is invalid (for example a nil callback).
func New[R any](
	create func(ctx context.Context) (R, error),
	destroy func(R) error,
	opts ...Option,
) (*Pool[R], error) {
	cfg := defaultPoolConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	cp, err := core.NewPool(core.Config[R]{
		Create:       create,
		Destroy:      destroy,
		CacheTTL:     cfg.cacheTTL,
		MaxResources: cfg.maxResources,
		Stripes:      cfg.stripes,
		ReapInterval: cfg.reapInterval,
	})
	if err != nil {
		return nil, err
	}

	return &Pool[R]{p: cp}, nil
}

// Take borrows a resource from the pool. It reuses an idle cached resource
// when one exists, otherwise creates one if the caller's stripe has capacity
// left, and otherwise blocks until a resource or creation slot is handed
// over, the context is canceled, or the pool is closed.
//
// The returned Stripe must accompany the resource back into Put or Destroy.
func (p *Pool[R]) Take(ctx context.Context) (R, *Stripe[R], error) {
	res, lp, err := p.p.Take(ctx)
	if err != nil {
		var zero R
		return zero, nil, err
	}
	return res, &Stripe[R]{lp: lp}, nil
}

// Put returns a healthy resource to its stripe for reuse. The oldest caller
// waiting on the stripe receives it directly; with no waiter it joins the
// idle cache. Put never fails.
func (p *Pool[R]) Put(s *Stripe[R], res R) {
	p.p.Put(s.lp, res)
}

// Destroy removes a resource from circulation, freeing its capacity before
// the destructor runs so a slow destructor cannot starve waiting callers.
// Destructor failures are swallowed. Destroy never fails.
func (p *Pool[R]) Destroy(s *Stripe[R], res R) {
	p.p.Destroy(s.lp, res)
}

// DestroyAll destroys every idle cached resource. Resources currently
// borrowed are unaffected and the pool remains usable. Calling DestroyAll
// repeatedly destroys each cached entry at most once.
func (p *Pool[R]) DestroyAll() {
	p.p.DestroyAll()
}

// Close shuts the pool down: the reaper stops, cached resources are
// destroyed, parked Takes wake with ErrPoolClosed and subsequent Takes fail
// the same way. Resources still borrowed may be handed back through Put or
// Destroy, which destroy them. Safe to call multiple times (idempotent).
func (p *Pool[R]) Close() {
	p.p.Close()
}
