package schedule

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
	"sync/atomic"
)

var Logger = logger.GetLogger("schedule")

// --------------------------------------------------------------------------
// Coalescer
// --------------------------------------------------------------------------

// Coalescer collapses any number of flush requests into a single deferred flush.
//
// The first request after idle marks the coalescer pending and posts one run on the loop.
// Further requests are no-ops until that run has finished. A request that arrives while the
// flush itself is executing (for example a write made by the flush) marks a rerun, so exactly
// one more flush follows. The pending flag is cleared as the last step of a run, also when
// the flush fails or panics.
//
// If the loop refuses the post (closed loop) the flush runs synchronously in Request.
//
// Thread-safety: Request may be called from any goroutine.
type Coalescer struct {
	name  string
	loop  Loop
	flush func() error

	mu      sync.Mutex
	pending bool
	running bool
	rerun   bool
	closed  bool
	onError func(error)

	requests atomic.Uint64
	flushes  atomic.Uint64
	failures atomic.Uint64

	requestsTotal *metrics.Counter
	flushesTotal  *metrics.Counter
	errorsTotal   *metrics.Counter
}

// Stats are the per-instance counters of a coalescer.
type Stats struct {
	Requests uint64 // calls to Request
	Flushes  uint64 // executed flushes, successful or not
	Failures uint64 // flushes that returned an error
}

// NewCoalescer creates a coalescer that runs flush on loop. name labels the exported metrics.
func NewCoalescer(name string, loop Loop, flush func() error) *Coalescer {
	if loop == nil {
		loop = Immediate
	}
	return &Coalescer{
		name:          name,
		loop:          loop,
		flush:         flush,
		requestsTotal: metrics.GetOrCreateCounter(fmt.Sprintf(`kvs_flush_requests_total{name=%q}`, name)),
		flushesTotal:  metrics.GetOrCreateCounter(fmt.Sprintf(`kvs_flushes_total{name=%q}`, name)),
		errorsTotal:   metrics.GetOrCreateCounter(fmt.Sprintf(`kvs_flush_errors_total{name=%q}`, name)),
	}
}

// OnError sets a callback for errors returned by deferred flushes. The error is logged either way.
func (c *Coalescer) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// Request asks for a flush. It never blocks on the flush unless the loop refused the post.
func (c *Coalescer) Request() {
	c.requests.Add(1)
	c.requestsTotal.Inc()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.pending {
		if c.running {
			c.rerun = true
		}
		c.mu.Unlock()
		return
	}
	c.pending = true
	c.mu.Unlock()

	if !c.loop.Post(c.run) {
		Logger.Debugf("%s: loop refused flush, flushing synchronously", c.name)
		c.run()
	}
}

// Pending reports whether a flush is scheduled or running.
func (c *Coalescer) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Stats returns a snapshot of the counters.
func (c *Coalescer) Stats() Stats {
	return Stats{
		Requests: c.requests.Load(),
		Flushes:  c.flushes.Load(),
		Failures: c.failures.Load(),
	}
}

// Close turns a scheduled but not yet started flush into a no-op and ignores later requests.
// It does not flush. Owners flush synchronously themselves when they shut down.
func (c *Coalescer) Close() {
	c.mu.Lock()
	c.closed = true
	c.rerun = false
	c.mu.Unlock()
}

func (c *Coalescer) run() {
	c.mu.Lock()
	if c.closed {
		c.pending = false
		c.mu.Unlock()
		return
	}
	c.running = true
	onError := c.onError
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		again := c.rerun && !c.closed
		c.rerun = false
		c.running = false
		c.pending = false
		c.mu.Unlock()

		if again {
			c.Request()
		}
	}()

	c.flushes.Add(1)
	c.flushesTotal.Inc()
	if err := c.flush(); err != nil {
		c.failures.Add(1)
		c.errorsTotal.Inc()
		Logger.Errorf("%s: deferred flush failed: %v", c.name, err)
		if onError != nil {
			onError(err)
		}
	}
}
