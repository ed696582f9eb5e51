// Package core implements the striped pool engine.
//
// The primary types are:
//   - Pool: the top-level handle owning the stripes and the background reaper.
//   - LocalPool: one shard of the pool — a permit counter, an idle cache and
//     a FIFO of parked waiters, all behind a single mutex.
//   - waiter: the one-shot rendezvous cell a saturated Take parks on.
//
// The public API in the repository root wraps this package; nothing here is
// importable from outside the module.
package core
