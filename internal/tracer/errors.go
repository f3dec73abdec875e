// ============================================================================
// Tracer Error Definitions
// ============================================================================

package tracer

import "errors"

var (
	// ErrWrite indicates a failure while flushing JSON output to a writer.
	ErrWrite = errors.New("tracer: error writing events")
)
