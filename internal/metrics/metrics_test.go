package metrics

// ============================================================================
// Metrics Test File
// Purpose: Verify Collector's Record*/Set* methods move the Prometheus
//   metrics they're documented to drive.
// ============================================================================

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// NewCollector registers against the global Prometheus registry, so every
// Record*/Set* path is exercised against a single Collector instance here
// rather than one per test function, to avoid duplicate registration.
func TestCollectorRecordsMetrics(t *testing.T) {
	c := NewCollector()

	c.RecordCycle()
	c.RecordCycle()
	c.RecordTaskCompleted(0.25)
	c.RecordTracerEvent()
	c.RecordTracerEvent()
	c.RecordTracerEvent()
	c.SetQueueDepth(7)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.cyclesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.tasksCompleted))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.tracerEvents))
	assert.Equal(t, float64(7), testutil.ToFloat64(c.queueDepth))
}
