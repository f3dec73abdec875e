// ============================================================================
// Bounded Queue Error Definitions
// Purpose: Define all Bounded Queue-related error types
// ============================================================================

package bqueue

import "errors"

var (
	// ErrClosed indicates the queue is closed and the operation was abandoned.
	ErrClosed = errors.New("bqueue: closed")

	// ErrTimeout indicates a timed put/get deadline elapsed before the
	// operation could complete.
	ErrTimeout = errors.New("bqueue: timed out")

	// ErrTooLarge indicates a put_n/get_n request exceeds the queue capacity.
	ErrTooLarge = errors.New("bqueue: n exceeds capacity")

	// ErrNotQuiescent indicates Reset was called on a queue that is not
	// closed. Reset does not check for blocked goroutines.
	ErrNotQuiescent = errors.New("bqueue: reset requires a closed, drained queue")
)
