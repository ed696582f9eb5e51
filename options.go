package stripedpool

import (
	"fmt"
	"time"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("stripedpool: %s must be greater than 0, got %v", name, v))
	}
}

// Option configures a Pool during construction via New.
// Each With* function returns an Option that sets a specific field.
//
// The With* functions panic on invalid input (non-positive sizes or
// durations, TTLs below the supported minimum). These panics are
// intentional: option values are typically compile-time constants or
// package-level variables, so an invalid value indicates a programmer error
// rather than a runtime condition. The pattern mirrors [regexp.MustCompile]
// — fail fast during initialization instead of returning errors that would
// be universally fatal anyway.
type Option func(*poolConfig)

// WithCacheTTL sets the maximum time an idle resource stays cached before
// the background reaper destroys it. The reaper runs on a coarse periodic
// tick (see WithReapInterval), so the observed idle lifetime ranges from the
// TTL up to the TTL plus one tick.
//
// Default: DefaultCacheTTL.
//
// Panics if d < MinCacheTTL.
func WithCacheTTL(d time.Duration) Option {
	if d < MinCacheTTL {
		panic(fmt.Sprintf("stripedpool: cache TTL must be at least %s, got %s", MinCacheTTL, d))
	}
	return func(c *poolConfig) {
		c.cacheTTL = d
	}
}

// WithMaxResources sets the hard cap on concurrently live resources across
// all stripes, whether borrowed or idle in cache. When every slot is taken,
// Take blocks until a resource is returned or destroyed.
//
// Default: DefaultMaxResourcesPerCPU times the logical CPU count.
//
// Panics if n <= 0.
func WithMaxResources(n int) Option {
	requirePositive("max resources", n)
	return func(c *poolConfig) {
		c.maxResources = n
	}
}

// WithStripes sets the number of independently locked shards the capacity is
// split over. More stripes reduce lock contention at the cost of splitting
// the cache; a stripe count above the resource cap is clamped so every
// stripe keeps at least one slot.
//
// Default: the logical CPU count.
//
// Panics if n <= 0.
func WithStripes(n int) Option {
	requirePositive("stripe count", n)
	return func(c *poolConfig) {
		c.stripes = n
	}
}

// WithReapInterval sets the cadence of the background reaper. Mostly a test
// hook: shorter intervals tighten the eviction window at the cost of more
// wakeups.
//
// Default: DefaultReapInterval.
//
// Panics if d <= 0.
func WithReapInterval(d time.Duration) Option {
	requirePositive("reap interval", d)
	return func(c *poolConfig) {
		c.reapInterval = d
	}
}
