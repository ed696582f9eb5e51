package stripedpool

import "github.com/giantswarm/stripedpool/internal/core"

// Sentinel errors for error inspection with errors.Is.
//
// These use the sentinel.Error const pattern instead of errors.New vars.
// sentinel.Error is a string type implementing error, allowing errors to be
// declared as const. This prevents accidental reassignment and enables
// compile-time immutability, while remaining compatible with errors.Is
// through Go's default == comparison on comparable types.
const (
	// ErrPoolClosed is returned by Take once Close has been called,
	// including by Takes that were already waiting when Close ran.
	ErrPoolClosed = core.ErrPoolClosed
)
