package schedule

import (
	"github.com/ValentinKolb/kvs/lib/schedule/internal/queue"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Loop Interface
// --------------------------------------------------------------------------

// Loop is a host event loop that runs posted callbacks later, one at a time.
type Loop interface {
	// Post queues fn. It returns false if the loop no longer accepts work, in which case
	// fn was not queued.
	Post(fn func()) bool
}

// --------------------------------------------------------------------------
// Manual Loop
// --------------------------------------------------------------------------

// ManualLoop is driven by its host: nothing runs until Tick is called. It models a frame
// based host where deferred work runs on the next frame.
//
// Thread-safety: Post may be called from any goroutine. Tick must not be called concurrently
// with itself.
type ManualLoop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
}

// NewManualLoop creates an empty manual loop.
func NewManualLoop() *ManualLoop {
	return &ManualLoop{}
}

func (l *ManualLoop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.queue = append(l.queue, fn)
	return true
}

// Tick runs the callbacks that were queued when the tick started and returns how many ran.
// Callbacks posted while the tick runs are kept for the next tick.
func (l *ManualLoop) Tick() int {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Drain ticks until no callbacks are left or maxTicks ticks ran, and returns the number of ticks.
func (l *ManualLoop) Drain(maxTicks int) int {
	ticks := 0
	for ticks < maxTicks && l.Pending() > 0 {
		l.Tick()
		ticks++
	}
	return ticks
}

// Pending returns the number of queued callbacks.
func (l *ManualLoop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close makes the loop refuse further posts. Already queued callbacks still run on Tick.
func (l *ManualLoop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

// --------------------------------------------------------------------------
// Goroutine Loop
// --------------------------------------------------------------------------

// GoroutineLoop runs posted callbacks on a single dedicated goroutine in the order they
// were queued by each producer. A panicking callback is logged and does not stop the loop.
type GoroutineLoop struct {
	queue  *queue.MPSC[func()]
	done   chan struct{}
	closed atomic.Bool
}

// NewGoroutineLoop starts the consumer goroutine. Close must be called to stop it.
func NewGoroutineLoop() *GoroutineLoop {
	l := &GoroutineLoop{
		queue: queue.New[func()](),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *GoroutineLoop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	return l.queue.Push(fn)
}

// Close stops accepting callbacks, runs the ones already queued and waits for the goroutine to exit.
// Calling Close more than once is safe.
func (l *GoroutineLoop) Close() {
	if l.closed.CompareAndSwap(false, true) {
		l.queue.Close()
	}
	<-l.done
}

func (l *GoroutineLoop) run() {
	defer close(l.done)
	for l.queue.Wait() {
		for {
			fn, ok := l.queue.Pop()
			if !ok {
				break
			}
			safeCall(fn)
		}
	}
}

func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("loop callback panicked: %v", r)
		}
	}()
	fn()
}

// --------------------------------------------------------------------------
// Immediate Loop
// --------------------------------------------------------------------------

type immediateLoop struct{}

func (immediateLoop) Post(fn func()) bool {
	fn()
	return true
}

// Immediate runs every posted callback synchronously inside Post. With it, a Coalescer
// flushes on every request.
var Immediate Loop = immediateLoop{}
