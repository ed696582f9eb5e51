package stripedpool

import (
	"time"

	"github.com/giantswarm/stripedpool/internal/core"
)

// Default configuration values for New. These constants are exported so
// callers can build custom configurations relative to them (e.g.,
// 2 * DefaultCacheTTL).
const (
	// DefaultCacheTTL is the maximum idle age of a cached resource before
	// the background reaper destroys it.
	DefaultCacheTTL = 60 * time.Second

	// DefaultMaxResourcesPerCPU is multiplied by the logical CPU count to
	// derive the default resource cap when WithMaxResources is not given.
	DefaultMaxResourcesPerCPU = 4

	// DefaultReapInterval is the cadence of the background reaper.
	DefaultReapInterval = time.Second

	// MinCacheTTL is the smallest TTL WithCacheTTL accepts. Eviction
	// happens on reaper ticks, so a smaller TTL would promise a granularity
	// the reaper cannot deliver.
	MinCacheTTL = core.MinCacheTTL
)
