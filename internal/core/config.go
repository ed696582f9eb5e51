package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MinCacheTTL is the smallest accepted idle TTL. Eviction happens on a
// coarse periodic tick, so a sub-half-second TTL would promise a granularity
// the reaper cannot deliver.
const MinCacheTTL = 500 * time.Millisecond

// Config holds configuration for a Pool.
//
// Concurrency contract: all fields are immutable after NewPool returns. The
// reaper goroutine and every stripe read Create, Destroy and CacheTTL without
// synchronization, relying on this guarantee.
type Config[R any] struct {
	// Create constructs a new resource. It is invoked with no pool lock
	// held and may block; the context is the Take caller's context.
	Create func(ctx context.Context) (R, error)

	// Destroy disposes of a resource. It is invoked with no pool lock held.
	// Errors are logged and swallowed on every path (Destroy, DestroyAll,
	// reaper, Close).
	Destroy func(R) error

	// CacheTTL is the maximum idle age before the reaper evicts a cached
	// resource. Minimum MinCacheTTL.
	CacheTTL time.Duration

	// MaxResources caps the number of concurrently live resources across
	// all stripes, whether out with callers or idle in cache. Minimum 1.
	MaxResources int

	// Stripes is the requested shard count. Clamped to MaxResources during
	// construction so every stripe owns at least one permit. Minimum 1.
	Stripes int

	// ReapInterval is the cadence of the background reaper. Configurable
	// mainly so tests do not wait on wall-clock seconds.
	ReapInterval time.Duration
}

// Validate checks all Config invariants and returns an error describing
// every violation found. It uses errors.Join to report multiple issues at
// once, allowing callers to fix all problems in a single pass rather than
// playing whack-a-mole with one error at a time.
func (c Config[R]) Validate() error {
	var errs []error

	if c.Create == nil {
		errs = append(errs, errors.New("create function must not be nil"))
	}
	if c.Destroy == nil {
		errs = append(errs, errors.New("destroy function must not be nil"))
	}
	if c.CacheTTL < MinCacheTTL {
		errs = append(errs, fmt.Errorf("cache TTL must be at least %s, got %s", MinCacheTTL, c.CacheTTL))
	}
	if c.MaxResources < 1 {
		errs = append(errs, fmt.Errorf("max resources must be at least 1, got %d", c.MaxResources))
	}
	if c.Stripes < 1 {
		errs = append(errs, fmt.Errorf("stripe count must be at least 1, got %d", c.Stripes))
	}
	if c.ReapInterval <= 0 {
		errs = append(errs, fmt.Errorf("reap interval must be greater than 0, got %s", c.ReapInterval))
	}

	return errors.Join(errs...)
}
