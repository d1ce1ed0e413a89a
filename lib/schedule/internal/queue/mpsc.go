// Package queue provides an unbounded lock-free Multi-Producer Single-Consumer (MPSC) queue.
//
// Features and Guarantees:
//
//   - Lock-Free pushes: producers only use atomic operations, the mutex is taken only to wake a
//     sleeping consumer
//   - Unbounded Size: the queue grows as needed, limited only by available memory
//   - Single Consumer: Pop and Wait must only be called from one goroutine at a time
//   - No Strict FIFO Guarantee across producers: under concurrent Push() the order is decided
//     by which producer completes its append first. Items of one producer keep their order.
package queue

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// MPSC is a lock-free multi-producer single-consumer queue built on a linked list with a sentinel head.
type MPSC[T any] struct {
	head   atomic.Pointer[node[T]] // owned by the consumer
	tail   atomic.Pointer[node[T]]
	closed atomic.Bool

	// wakes a consumer blocked in Wait
	mu   sync.Mutex
	cond *sync.Cond
}

// New creates an empty queue.
func New[T any]() *MPSC[T] {
	sentinel := &node[T]{}
	q := &MPSC[T]{}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// Push appends an item. It returns false if the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *MPSC[T]) Push(value T) bool {
	if q.closed.Load() {
		return false
	}

	n := &node[T]{value: value}
	var backoff uint8

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, n) {
				// another producer may have advanced the tail already, that is fine
				q.tail.CompareAndSwap(tailNode, n)
				q.wake()
				return true
			}
		} else {
			// help a producer that appended but has not moved the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// spin a little under low contention, then yield
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// wake signals the consumer. Holding mu closes the window between the consumer's
// emptiness check and its cond.Wait.
func (q *MPSC[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// Pop removes the oldest available item without blocking.
//
// Thread-safety: consumer only.
func (q *MPSC[T]) Pop() (value T, ok bool) {
	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		return value, false
	}
	value = next.value
	// next becomes the new sentinel, drop its reference to the value for the gc
	var zero T
	next.value = zero
	q.head.Store(next)
	return value, true
}

// Wait blocks until an item is available or the queue is closed. It returns false once the
// queue is closed and fully drained.
//
// Thread-safety: consumer only.
func (q *MPSC[T]) Wait() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.head.Load().next.Load() != nil {
			return true
		}
		if q.closed.Load() {
			return false
		}
		q.cond.Wait()
	}
}

// Close prevents further pushes. Items already in the queue can still be popped.
func (q *MPSC[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// IsClosed returns true if the queue is closed.
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns an approximate count of the items in the queue.
// This is O(n) and should only be used for debugging.
func (q *MPSC[T]) Len() int {
	count := 0
	for current := q.head.Load().next.Load(); current != nil; current = current.next.Load() {
		count++
	}
	return count
}
