// Package stripedpool provides a bounded, striped pool of expensive reusable
// resources — canonically database connections, but also sockets, file
// handles, or anything with a nontrivial construction cost.
//
// The pool is sharded into stripes, each independently locked, so concurrent
// callers contend only within their stripe. Borrowed resources return to an
// idle cache for reuse; a background reaper evicts entries idle past the
// configured TTL; when a stripe has no idle resource and no capacity left,
// callers queue FIFO and are handed the next returned resource directly.
//
// # Basic Usage
//
//	import "github.com/giantswarm/stripedpool"
//
//	create := func(ctx context.Context) (*Conn, error) { return dial(ctx, addr) }
//	destroy := func(c *Conn) error { return c.Close() }
//
//	pool, err := stripedpool.New(create, destroy,
//	    stripedpool.WithMaxResources(16),
//	    stripedpool.WithCacheTTL(30*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Close()
//
//	conn, stripe, err := pool.Take(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Put(stripe, conn)
//
//	// Use conn...
//
// Hand a broken resource to Destroy instead of Put; the freed capacity goes
// to the oldest waiting caller.
//
// # Cancellation
//
// Take blocks only while its stripe is saturated, and that wait respects the
// caller's context. Cancellation while queued is safe: a resource handed to
// a caller that just gave up is passed on to the next waiter or cached, never
// lost.
//
// For a ready-made resource pair pooling SQLite handles, see the sqlitepool
// subpackage.
package stripedpool
