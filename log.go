package stripedpool

import (
	"log/slog"

	"github.com/giantswarm/stripedpool/internal/core"
)

// SetLogger replaces the package-level logger used by stripedpool.
// This allows applications to integrate pool logging with their own logging
// infrastructure. The provided logger should already carry any desired
// attributes; stripedpool will not add additional attributes.
//
// If l is nil, the logger resets to the default: slog.Default() with a
// "component" attribute, re-derived on the next use and then cached. Call
// SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// SetLogger is safe to call concurrently with other pool operations.
//
// Example:
//
//	stripedpool.SetLogger(myLogger.With("component", "stripedpool"))
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
