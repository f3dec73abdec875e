// ============================================================================
// Thread Pool Error Definitions
// ============================================================================

package tpool

import "errors"

var (
	// ErrQueueTooSmall indicates the job queue capacity is smaller than the
	// worker count, violating spec.md §4.2's queue_capacity >= thread_count.
	ErrQueueTooSmall = errors.New("tpool: queue capacity must be >= worker count")
)
