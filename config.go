package stripedpool

import (
	"runtime"
	"time"
)

// poolConfig holds the option-assembled configuration for New. Unexported:
// the public surface is the Option functions plus the defaults in
// defaults.go. The create and destroy callbacks are passed to New directly
// because they are required and generic.
type poolConfig struct {
	cacheTTL     time.Duration
	maxResources int
	stripes      int
	reapInterval time.Duration
}

// defaultPoolConfig returns the configuration New starts from before
// applying options.
func defaultPoolConfig() poolConfig {
	return poolConfig{
		cacheTTL:     DefaultCacheTTL,
		maxResources: DefaultMaxResourcesPerCPU * runtime.NumCPU(),
		stripes:      runtime.NumCPU(),
		reapInterval: DefaultReapInterval,
	}
}
