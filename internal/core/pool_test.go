package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// errCreateFailed is the sentinel returned by failing test factories.
//
//nolint:gochecknoglobals // package-level test sentinel; mirrors ErrPoolClosed
var errCreateFailed = errors.New("create failure")

// testResource gives every created resource a distinct identity so tests can
// tell reuse from re-creation by pointer comparison.
type testResource struct {
	id int64
}

// counters tracks factory and destructor invocations across a test pool.
type counters struct {
	created   atomic.Int64
	destroyed atomic.Int64
}

// testConfig returns a pool config backed by counting create/destroy hooks.
// Tests override the sizing fields they exercise.
func testConfig(c *counters) Config[*testResource] {
	return Config[*testResource]{
		Create: func(_ context.Context) (*testResource, error) {
			return &testResource{id: c.created.Add(1)}, nil
		},
		Destroy: func(_ *testResource) error {
			c.destroyed.Add(1)
			return nil
		},
		CacheTTL:     10 * time.Second,
		MaxResources: 2,
		Stripes:      1,
		ReapInterval: time.Second,
	}
}

// waitForParkedWaiter polls until lp has at least one queued waiter. Used to
// order test goroutines around the park point without sleeping blind.
func waitForParkedWaiter(t *testing.T, lp *LocalPool[*testResource]) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		lp.mu.Lock()
		parked := !lp.waiters.empty()
		lp.mu.Unlock()
		if parked {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("waiter never parked")
}

func TestNewPoolRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	var c counters
	cfg := testConfig(&c)
	cfg.MaxResources = 0

	if _, err := NewPool(cfg); err == nil {
		t.Fatal("NewPool accepted an invalid config")
	}
}

// TestNewPoolClampsStripesToMaxResources verifies that a stripe request
// larger than the capacity is clamped so every stripe owns a permit.
func TestNewPoolClampsStripesToMaxResources(t *testing.T) {
	t.Parallel()

	var c counters
	cfg := testConfig(&c)
	cfg.MaxResources = 3
	cfg.Stripes = 5

	p, err := NewPool(cfg)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	if got := len(p.Stripes()); got != 3 {
		t.Errorf("stripe count = %d, want 3 (clamped)", got)
	}
	for i, lp := range p.Stripes() {
		if lp.capacity != 1 {
			t.Errorf("stripe %d capacity = %d, want 1", i, lp.capacity)
		}
	}
}

// TestTakeReusesCachedResource: take → put → take must hand back the same
// resource without invoking the factory again.
func TestTakeReusesCachedResource(t *testing.T) {
	t.Parallel()

	var c counters
	p, err := NewPool(testConfig(&c))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	ctx := context.Background()

	res, lp, err := p.Take(ctx)
	if err != nil {
		t.Fatalf("first Take failed: %v", err)
	}
	p.Put(lp, res)

	again, _, err := p.Take(ctx)
	if err != nil {
		t.Fatalf("second Take failed: %v", err)
	}
	if again != res {
		t.Error("second Take returned a different resource; cache was not reused")
	}
	if got := c.created.Load(); got != 1 {
		t.Errorf("create invoked %d times, want 1", got)
	}
}

// TestSaturationHandOff: with one permit taken, a second Take parks; Put
// must wake it with the same resource and no second create.
func TestSaturationHandOff(t *testing.T) {
	t.Parallel()

	var c counters
	cfg := testConfig(&c)
	cfg.MaxResources = 1

	p, err := NewPool(cfg)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	res, lp, err := p.Take(context.Background())
	if err != nil {
		t.Fatalf("first Take failed: %v", err)
	}

	type takeResult struct {
		res *testResource
		err error
	}
	resultCh := make(chan takeResult, 1)
	go func() {
		waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		r, _, takeErr := p.Take(waitCtx)
		resultCh <- takeResult{res: r, err: takeErr}
	}()

	waitForParkedWaiter(t, lp)
	p.Put(lp, res)

	select {
	case got := <-resultCh:
		if got.err != nil {
			t.Fatalf("parked Take failed: %v", got.err)
		}
		if got.res != res {
			t.Error("parked Take received a different resource; hand-off was not direct")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("parked Take did not wake within 3s of Put")
	}

	if got := c.created.Load(); got != 1 {
		t.Errorf("create invoked %d times, want 1 (hand-off must not create)", got)
	}
}

// TestCancellationDuringWait: a canceled waiter leaves no live waiter
// behind, and a subsequent Put caches the resource for the next Take.
func TestCancellationDuringWait(t *testing.T) {
	t.Parallel()

	var c counters
	cfg := testConfig(&c)
	cfg.MaxResources = 1

	p, err := NewPool(cfg)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	res, lp, err := p.Take(context.Background())
	if err != nil {
		t.Fatalf("first Take failed: %v", err)
	}

	waitCtx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, takeErr := p.Take(waitCtx)
		errCh <- takeErr
	}()

	waitForParkedWaiter(t, lp)
	cancel()

	select {
	case takeErr := <-errCh:
		if !errors.Is(takeErr, context.Canceled) {
			t.Fatalf("canceled Take error = %v, want context.Canceled", takeErr)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("canceled Take did not return within 3s")
	}

	p.Put(lp, res)

	lp.mu.Lock()
	cached := len(lp.cache)
	lp.mu.Unlock()
	if cached != 1 {
		t.Fatalf("cache holds %d entries after put past a canceled waiter, want 1", cached)
	}

	again, _, err := p.Take(context.Background())
	if err != nil {
		t.Fatalf("Take after cancellation failed: %v", err)
	}
	if again != res {
		t.Error("Take after cancellation created a new resource instead of reusing the cache")
	}
	if got := c.created.Load(); got != 1 {
		t.Errorf("create invoked %d times, want 1", got)
	}
}

// TestCreatorFailureRestoresPermit: a failing factory must leave available
// exactly as it found it. The trace [1 0 1 0] interleaves the counter as
// observed outside Take and inside the factory.
func TestCreatorFailureRestoresPermit(t *testing.T) {
	t.Parallel()

	var trace []int
	var calls int

	var p *Pool[*testResource]
	var c counters
	cfg := testConfig(&c)
	cfg.MaxResources = 1
	cfg.Create = func(_ context.Context) (*testResource, error) {
		lp := p.Stripes()[0]
		lp.mu.Lock()
		trace = append(trace, lp.available)
		lp.mu.Unlock()

		calls++
		if calls == 1 {
			return nil, errCreateFailed
		}
		return &testResource{id: int64(calls)}, nil
	}

	p, err := NewPool(cfg)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	readAvailable := func() int {
		lp := p.Stripes()[0]
		lp.mu.Lock()
		defer lp.mu.Unlock()
		return lp.available
	}

	observed := []int{readAvailable()}

	_, _, err = p.Take(context.Background())
	if !errors.Is(err, errCreateFailed) {
		t.Fatalf("first Take error = %v, want to wrap the factory failure", err)
	}
	observed = append(observed, trace[0], readAvailable())

	if _, _, err := p.Take(context.Background()); err != nil {
		t.Fatalf("second Take failed: %v", err)
	}
	observed = append(observed, trace[1])

	want := []int{1, 0, 1, 0}
	for i := range want {
		if observed[i] != want[i] {
			t.Fatalf("available trace = %v, want %v", observed, want)
		}
	}
}

// TestReaperEvictsStale: an entry idle past the TTL is destroyed exactly
// once by the reaper, and the next Take creates afresh.
func TestReaperEvictsStale(t *testing.T) {
	t.Parallel()

	var c counters
	cfg := testConfig(&c)
	cfg.MaxResources = 1
	cfg.CacheTTL = MinCacheTTL
	cfg.ReapInterval = 100 * time.Millisecond

	p, err := NewPool(cfg)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	res, lp, err := p.Take(context.Background())
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	p.Put(lp, res)

	time.Sleep(3 * MinCacheTTL)

	if got := c.destroyed.Load(); got != 1 {
		t.Fatalf("destroy invoked %d times after TTL elapsed, want exactly 1", got)
	}

	if _, _, err := p.Take(context.Background()); err != nil {
		t.Fatalf("Take after reap failed: %v", err)
	}
	if got := c.created.Load(); got != 2 {
		t.Errorf("create invoked %d times, want 2 (cache was reaped)", got)
	}
}

// TestDestroyWakesWaiterWithCreatePermit verifies the permit is released
// before the destructor runs: a parked waiter creates a replacement while
// the destructor is still blocked.
func TestDestroyWakesWaiterWithCreatePermit(t *testing.T) {
	t.Parallel()

	var c counters
	unblock := make(chan struct{})
	cfg := testConfig(&c)
	cfg.MaxResources = 1
	cfg.Destroy = func(_ *testResource) error {
		<-unblock
		c.destroyed.Add(1)
		return nil
	}

	p, err := NewPool(cfg)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer func() {
		close(unblock)
		p.Close()
	}()

	res, lp, err := p.Take(context.Background())
	if err != nil {
		t.Fatalf("first Take failed: %v", err)
	}

	type takeResult struct {
		res *testResource
		err error
	}
	resultCh := make(chan takeResult, 1)
	go func() {
		waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		r, _, takeErr := p.Take(waitCtx)
		resultCh <- takeResult{res: r, err: takeErr}
	}()

	waitForParkedWaiter(t, lp)
	go p.Destroy(lp, res)

	select {
	case got := <-resultCh:
		if got.err != nil {
			t.Fatalf("parked Take failed: %v", got.err)
		}
		if got.res == res {
			t.Error("parked Take received the destroyed resource")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("waiter did not wake while destructor was blocked; permit released too late")
	}

	if got := c.created.Load(); got != 2 {
		t.Errorf("create invoked %d times, want 2", got)
	}
}

func TestTakeContextAlreadyCanceled(t *testing.T) {
	t.Parallel()

	var c counters
	p, err := NewPool(testConfig(&c))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := p.Take(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Take error = %v, want wrapping context.Canceled", err)
	}
}

func TestTakeAfterCloseReturnsErrPoolClosed(t *testing.T) {
	t.Parallel()

	var c counters
	p, err := NewPool(testConfig(&c))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	p.Close()

	if _, _, err := p.Take(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Take on closed pool error = %v, want ErrPoolClosed", err)
	}
}

// TestCloseUnblocksParkedWaiter verifies Close wakes waiters with
// ErrPoolClosed rather than leaving them parked until their contexts expire.
func TestCloseUnblocksParkedWaiter(t *testing.T) {
	t.Parallel()

	var c counters
	cfg := testConfig(&c)
	cfg.MaxResources = 1

	p, err := NewPool(cfg)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	res, lp, err := p.Take(context.Background())
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _, takeErr := p.Take(waitCtx)
		errCh <- takeErr
	}()

	waitForParkedWaiter(t, lp)
	p.Close()

	select {
	case takeErr := <-errCh:
		if !errors.Is(takeErr, ErrPoolClosed) {
			t.Errorf("blocked Take error = %v, want ErrPoolClosed", takeErr)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("blocked Take did not unblock within 3s after Close")
	}

	// Handing the outstanding resource back after Close destroys it.
	p.Put(lp, res)
	if got := c.destroyed.Load(); got != 1 {
		t.Errorf("destroy invoked %d times after Put on closed pool, want 1", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	var c counters
	p, err := NewPool(testConfig(&c))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	p.Close()
	p.Close()
}

func TestCloseDestroysCachedResources(t *testing.T) {
	t.Parallel()

	var c counters
	p, err := NewPool(testConfig(&c))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	ctx := context.Background()
	r1, lp1, err := p.Take(ctx)
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	r2, lp2, err := p.Take(ctx)
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	p.Put(lp1, r1)
	p.Put(lp2, r2)

	p.Close()

	if got := c.destroyed.Load(); got != 2 {
		t.Errorf("destroy invoked %d times on Close, want 2", got)
	}
}

// TestDestroyAllIsIdempotent: two successive DestroyAll calls destroy each
// cached entry at most once, and the pool stays usable.
func TestDestroyAllIsIdempotent(t *testing.T) {
	t.Parallel()

	var c counters
	p, err := NewPool(testConfig(&c))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	ctx := context.Background()
	r1, lp1, err := p.Take(ctx)
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	r2, lp2, err := p.Take(ctx)
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	p.Put(lp1, r1)
	p.Put(lp2, r2)

	p.DestroyAll()
	p.DestroyAll()

	if got := c.destroyed.Load(); got != 2 {
		t.Errorf("destroy invoked %d times across two DestroyAll calls, want 2", got)
	}

	if _, _, err := p.Take(ctx); err != nil {
		t.Errorf("Take after DestroyAll failed: %v", err)
	}
}

// TestDestroyAllLeavesBorrowedResourcesAlone verifies that resources out
// with callers are not destroyed by DestroyAll.
func TestDestroyAllLeavesBorrowedResourcesAlone(t *testing.T) {
	t.Parallel()

	var c counters
	p, err := NewPool(testConfig(&c))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	res, lp, err := p.Take(context.Background())
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}

	p.DestroyAll()

	if got := c.destroyed.Load(); got != 0 {
		t.Fatalf("destroy invoked %d times with no cached entries, want 0", got)
	}

	p.Put(lp, res)
}

// TestStrictSerialization: with one permit and one stripe, no two borrowers
// ever hold a resource at the same time.
func TestStrictSerialization(t *testing.T) {
	t.Parallel()

	var c counters
	cfg := testConfig(&c)
	cfg.MaxResources = 1

	p, err := NewPool(cfg)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	var holders atomic.Int64
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			for range 25 {
				res, lp, takeErr := p.Take(context.Background())
				if takeErr != nil {
					return takeErr
				}
				if n := holders.Add(1); n != 1 {
					t.Errorf("observed %d concurrent holders, want 1", n)
				}
				holders.Add(-1)
				p.Put(lp, res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("borrower failed: %v", err)
	}
}

// TestAccountingInvariantUnderLoad mixes Put and Destroy across stripes and
// verifies every stripe's permits balance once all borrows have returned:
// available + cached == capacity.
func TestAccountingInvariantUnderLoad(t *testing.T) {
	t.Parallel()

	var c counters
	cfg := testConfig(&c)
	cfg.MaxResources = 8
	cfg.Stripes = 3

	p, err := NewPool(cfg)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer p.Close()

	var g errgroup.Group
	for i := range 16 {
		g.Go(func() error {
			for j := range 50 {
				res, lp, takeErr := p.Take(context.Background())
				if takeErr != nil {
					return takeErr
				}
				if (i+j)%3 == 0 {
					p.Destroy(lp, res)
				} else {
					p.Put(lp, res)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("borrower failed: %v", err)
	}

	totalCached := 0
	for i, lp := range p.Stripes() {
		lp.mu.Lock()
		available, cached, capacity := lp.available, len(lp.cache), lp.capacity
		lp.mu.Unlock()

		if available+cached != capacity {
			t.Errorf("stripe %d: available %d + cached %d != capacity %d", i, available, cached, capacity)
		}
		totalCached += cached
	}
	if totalCached > cfg.MaxResources {
		t.Errorf("total cached %d exceeds max resources %d", totalCached, cfg.MaxResources)
	}
	if live := c.created.Load() - c.destroyed.Load(); live != int64(totalCached) {
		t.Errorf("live resources %d != cached %d after all borrows returned", live, totalCached)
	}
}
