// ============================================================================
// cx-taskflow Metrics - Prometheus Monitoring
// ============================================================================
//
// Package: internal/metrics
// File: metrics.go
// Purpose: Collect and expose Task Flow metrics for Prometheus monitoring
//
// Metric Categories:
//
//   1. Cycle/task counters - cumulative, monotonically increasing:
//      - flow_cycles_total: Cycles completed across all flows
//      - flow_tasks_completed_total: Individual task completions
//      - flow_tracer_events_total: Tracer events recorded
//
//   2. Duration (Histogram):
//      - flow_task_duration_seconds: Per-task execution latency
//
//   3. Status (Gauge):
//      - flow_queue_depth: Current depth of the thread pool's job queue
//
// HTTP Endpoint:
//   Exposed via /metrics, scraped by Prometheus.
//
// ============================================================================

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects Prometheus metrics for a running Flow. It is optional:
// callers that don't need metrics never construct one.
type Collector struct {
	cyclesTotal    prometheus.Counter
	tasksCompleted prometheus.Counter
	tracerEvents   prometheus.Counter
	taskDuration   prometheus.Histogram
	queueDepth     prometheus.Gauge
}

// NewCollector creates and registers a Collector against the default
// Prometheus registry.
func NewCollector() *Collector {
	c := &Collector{
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flow_cycles_total",
			Help: "Total number of task flow cycles completed",
		}),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flow_tasks_completed_total",
			Help: "Total number of individual task completions",
		}),
		tracerEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flow_tracer_events_total",
			Help: "Total number of tracer events recorded",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flow_task_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flow_queue_depth",
			Help: "Current depth of the thread pool job queue",
		}),
	}

	prometheus.MustRegister(c.cyclesTotal)
	prometheus.MustRegister(c.tasksCompleted)
	prometheus.MustRegister(c.tracerEvents)
	prometheus.MustRegister(c.taskDuration)
	prometheus.MustRegister(c.queueDepth)

	return c
}

// RecordCycle records a completed task flow cycle.
func (c *Collector) RecordCycle() {
	c.cyclesTotal.Inc()
}

// RecordTaskCompleted records one task's completion with its duration.
func (c *Collector) RecordTaskCompleted(durationSeconds float64) {
	c.tasksCompleted.Inc()
	c.taskDuration.Observe(durationSeconds)
}

// RecordTracerEvent records one tracer event being appended.
func (c *Collector) RecordTracerEvent() {
	c.tracerEvents.Inc()
}

// SetQueueDepth records the thread pool's current job queue depth.
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// StartServer starts a Prometheus metrics HTTP server on the given port,
// blocking until the server fails. No handle is returned for shutting it
// down.
func StartServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, nil)
}
