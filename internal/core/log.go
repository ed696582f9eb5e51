package core

import (
	"log/slog"
	"sync/atomic"
)

// active holds the logger handed out by Logger. A single atomic pointer
// covers both cases: a caller-supplied logger stored by SetLogger, or the
// lazily derived default. nil means nothing has been resolved yet; the next
// Logger call derives the default and races to install it.
var active atomic.Pointer[slog.Logger]

// Logger returns the logger the pool writes through. Until SetLogger has
// been called, this is slog.Default() tagged with a component attribute,
// derived once and reused. Safe for concurrent use.
func Logger() *slog.Logger {
	if l := active.Load(); l != nil {
		return l
	}

	derived := slog.Default().With("component", "stripedpool")
	if active.CompareAndSwap(nil, derived) {
		return derived
	}
	// Lost the install race. Prefer whatever won (it may be a logger a
	// concurrent SetLogger stored), but never hand back nil: a concurrent
	// SetLogger(nil) can clear the slot again, in which case the locally
	// derived logger serves this call.
	if l := active.Load(); l != nil {
		return l
	}
	return derived
}

// SetLogger replaces the logger used by the pool. Passing nil resets to the
// default, which is re-derived from slog.Default() on the next Logger call —
// useful after slog.SetDefault, since the derived logger is otherwise kept
// for the life of the process. Safe to call concurrently with any pool
// operation.
func SetLogger(l *slog.Logger) {
	active.Store(l)
}
