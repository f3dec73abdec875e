// ============================================================================
// cx-taskflow Bounded Queue - MPMC Work-Transport Primitive
// ============================================================================
//
// Package: internal/bqueue
// File: queue.go
// Function: Fixed-capacity, closable, blocking FIFO shared by any number of
//           producer and consumer goroutines.
//
// Design Pattern:
//   Ring buffer of length `cap`, guarded by one mutex and two condition
//   variables (`hasSpace`, `hasData`), directly translating the pthread
//   based queue in original_source/include/cx_cqueue.h into Go idiom.
//
// Suspension points:
//   Put* blocks on hasSpace until len+n <= cap or the queue closes.
//   Get* blocks on hasData until len >= n (or len > 0 for GetAtMost) or the
//   queue closes.
//
// Cancellation:
//   Close() is idempotent, wakes every waiter, and is permanent until Reset.
//   Reset is quiescent-only: valid only on a closed, drained queue with no
//   blocked goroutines (see Reset doc comment).
//
// ============================================================================

package bqueue

import (
	"context"
	"sync"
	"time"
)

// Queue is a fixed-capacity, closable, blocking FIFO of T.
type Queue[T any] struct {
	mu       sync.Mutex
	hasSpace *sync.Cond
	hasData  *sync.Cond

	data   []T
	cap    int
	length int
	head   int // index of the oldest element
	tail   int // index where the next element is written
	closed bool
}

// New creates a Queue with the given fixed capacity. Panics if capacity <= 0,
// mirroring the assert(cap > 0) precondition of cx_cqueue_init.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("bqueue: capacity must be positive")
	}
	q := &Queue[T]{
		data: make([]T, capacity),
		cap:  capacity,
	}
	q.hasSpace = sync.NewCond(&q.mu)
	q.hasData = sync.NewCond(&q.mu)
	return q
}

// Cap returns the queue's fixed capacity.
func (q *Queue[T]) Cap() int { return q.cap }

// Len returns the current number of queued elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}

// IsClosed reports whether Close has been called since the last Reset.
func (q *Queue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close marks the queue closed and wakes every blocked Put*/Get*. Idempotent.
func (q *Queue[T]) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.hasData.Broadcast()
	q.hasSpace.Broadcast()
	return nil
}

// Reset clears the closed flag and the buffer contents, allowing reuse of a
// previously closed queue.
//
// Quiescent-only: the caller must guarantee no goroutine is blocked in (or
// will concurrently call) Put*/Get* on this queue. The original C source
// (cx_cqueue_reset) has the same requirement and does not itself verify it;
// this implementation doesn't either, it only requires the queue be closed.
func (q *Queue[T]) Reset() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		return ErrNotQuiescent
	}
	q.closed = false
	q.length = 0
	q.head = 0
	q.tail = 0
	return nil
}

// waitFor blocks on cond until ready() is true, the queue closes, the
// optional deadline elapses, or ctx is cancelled. Must be called with q.mu
// held; returns with q.mu still held.
func (q *Queue[T]) waitFor(ctx context.Context, deadline *time.Time, cond *sync.Cond, ready func() bool) error {
	if ready() || q.closed {
		return nil
	}

	var timedOut bool
	if deadline != nil {
		timer := time.AfterFunc(time.Until(*deadline), func() {
			q.mu.Lock()
			timedOut = true
			q.mu.Unlock()
			cond.Broadcast()
		})
		defer timer.Stop()
	}
	stopCtx := context.AfterFunc(ctx, cond.Broadcast)
	defer stopCtx()

	for !ready() && !q.closed {
		if deadline != nil && timedOut {
			return ErrTimeout
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		cond.Wait()
	}
	return nil
}

func (q *Queue[T]) putLocked(src []T) {
	n := len(src)
	space := q.cap - q.tail
	if n <= space {
		copy(q.data[q.tail:], src)
	} else {
		copy(q.data[q.tail:], src[:space])
		copy(q.data, src[space:])
	}
	q.tail = (q.tail + n) % q.cap
	q.length += n
}

func (q *Queue[T]) getLocked(dst []T) {
	n := len(dst)
	space := q.cap - q.head
	if n <= space {
		copy(dst, q.data[q.head:q.head+n])
	} else {
		copy(dst, q.data[q.head:])
		copy(dst[space:], q.data[:n-space])
	}
	q.head = (q.head + n) % q.cap
	q.length -= n
}

// PutN blocks until the queue has room for all of src or ctx is done,
// inserting src at the tail in order. Returns ErrClosed if the queue closes
// before or while waiting.
func (q *Queue[T]) PutN(ctx context.Context, src []T) error {
	return q.putN(ctx, nil, src)
}

// PutNTimed is PutN with an absolute deadline computed from the supplied
// relative timeout, returning ErrTimeout if it elapses first.
func (q *Queue[T]) PutNTimed(src []T, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	return q.putN(context.Background(), &deadline, src)
}

func (q *Queue[T]) putN(ctx context.Context, deadline *time.Time, src []T) error {
	n := len(src)
	if n > q.cap {
		return ErrTooLarge
	}
	if n == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ready := func() bool { return n <= q.cap-q.length }
	if err := q.waitFor(ctx, deadline, q.hasSpace, ready); err != nil {
		return err
	}
	if q.closed {
		return ErrClosed
	}

	q.putLocked(src)
	q.hasData.Signal()
	return nil
}

// Put inserts a single value, blocking until space is available or ctx is
// done.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	return q.PutN(ctx, []T{v})
}

// GetN blocks until length >= len(dst) or the queue closes with insufficient
// data, removing len(dst) values from the head in order.
func (q *Queue[T]) GetN(ctx context.Context, dst []T) error {
	return q.getN(ctx, nil, dst)
}

// GetNTimed is GetN with an absolute deadline computed from the supplied
// relative timeout, returning ErrTimeout if it elapses first.
func (q *Queue[T]) GetNTimed(dst []T, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	return q.getN(context.Background(), &deadline, dst)
}

func (q *Queue[T]) getN(ctx context.Context, deadline *time.Time, dst []T) error {
	n := len(dst)
	if n > q.cap {
		return ErrTooLarge
	}
	if n == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ready := func() bool { return n <= q.length }
	if err := q.waitFor(ctx, deadline, q.hasData, ready); err != nil {
		return err
	}
	if n > q.length && q.closed {
		return ErrClosed
	}

	q.getLocked(dst)
	q.hasSpace.Signal()
	return nil
}

// Get removes and returns a single value, blocking until one is available or
// ctx is done.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var out [1]T
	err := q.GetN(ctx, out[:])
	return out[0], err
}

// GetAtMost blocks until length > 0 or the queue closes, then removes
// min(length, len(dst)) values into dst, returning how many were read.
// Returns ErrClosed only when the queue is closed and length was already 0.
func (q *Queue[T]) GetAtMost(ctx context.Context, dst []T) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ready := func() bool { return q.length > 0 }
	if err := q.waitFor(ctx, nil, q.hasData, ready); err != nil {
		return 0, err
	}
	if q.length == 0 && q.closed {
		return 0, ErrClosed
	}

	n := len(dst)
	if q.length < n {
		n = q.length
	}
	q.getLocked(dst[:n])
	q.hasSpace.Signal()
	return n, nil
}
