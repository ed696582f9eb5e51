package core

import (
	"context"
	"time"
)

// reap runs in its own goroutine for the pool's lifetime, waking at the
// configured interval to evict cache entries idle longer than CacheTTL.
// Eviction is two-phase per stripe: partition under the stripe mutex,
// destroy outside it, so user destructors never block the stripe.
func (p *Pool[R]) reap(ctx context.Context) {
	defer close(p.reaperDone)

	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reapOnce(time.Now())
		}
	}
}

// reapOnce evicts and destroys entries stale as of now on every stripe.
func (p *Pool[R]) reapOnce(now time.Time) {
	for _, lp := range p.stripes {
		stale := lp.takeStale(now, p.cfg.CacheTTL)
		for _, e := range stale {
			p.destroy(e.res)
		}
		if len(stale) > 0 {
			Logger().Debug("reaped stale resources", "stripe", lp.index, "count", len(stale))
		}
	}
}
