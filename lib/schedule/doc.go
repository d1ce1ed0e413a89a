// Package schedule coalesces bursts of flush requests into single deferred flushes.
//
// Writes to a transactional store are cheap while a transaction is open, committing is not.
// Instead of committing after every write, a store calls Coalescer.Request after each write.
// The coalescer posts one flush on a host Loop and ignores further requests until that flush
// has run, so a burst of writes within one loop turn costs one commit.
//
// Key Components:
//
//   - Loop: the host event loop abstraction. Three implementations are provided:
//
//   - ManualLoop: nothing runs until the host calls Tick. Used by applications with a frame
//     or tick driven main loop and by tests that need to observe the pending state.
//
//   - GoroutineLoop: a single goroutine consuming a lock-free MPSC queue. Used by servers
//     and tools without their own loop.
//
//   - Immediate: runs callbacks synchronously, which disables coalescing.
//
//   - Coalescer: the single-flight guard. It exports the counters kvs_flush_requests_total,
//     kvs_flushes_total and kvs_flush_errors_total (labelled by name) through
//     VictoriaMetrics/metrics.
//
// Usage:
//
//	loop := schedule.NewGoroutineLoop()
//	defer loop.Close()
//
//	c := schedule.NewCoalescer("settings", loop, commit)
//	for _, w := range writes {
//	    apply(w)
//	    c.Request() // one commit for the whole burst
//	}
package schedule
