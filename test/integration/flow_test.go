// ============================================================================
// cx-taskflow Integration Test Suite
// ============================================================================
//
// Package: test/integration
// File: flow_test.go
// Functionality: End-to-end wiring of taskflow.Flow with a tracer and a
//   metrics observer, across the diamond DAG topology from spec.md §8
//   concrete scenario 5.
//
// Test Objectives:
//   1. verify a flow built from YAML config runs its full task graph
//   2. verify the tracer records begin/end events for every task execution
//      and exports valid JSON
//   3. verify the metrics observer sees one cycle record per cycle and one
//      task record per task execution
//
// ============================================================================

package integration

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/cx-taskflow/internal/config"
	"github.com/ChuLiYu/cx-taskflow/internal/taskflow"
	"github.com/ChuLiYu/cx-taskflow/internal/tracer"
)

const diamondConfigYAML = `
flow:
  worker_count: 4
  queue_capacity: 32
  tracer_capacity: 1000
  cycles: 10
tasks:
  - name: t1
  - name: t2
    predecessors: [t1]
  - name: t3
    predecessors: [t1]
  - name: t4
    predecessors: [t2, t3]
`

type fakeObserver struct {
	mu          sync.Mutex
	cycles      int
	taskResults int
}

func (f *fakeObserver) RecordCycle() {
	f.mu.Lock()
	f.cycles++
	f.mu.Unlock()
}

func (f *fakeObserver) RecordTaskCompleted(float64) {
	f.mu.Lock()
	f.taskResults++
	f.mu.Unlock()
}

// TestFlowConfigTracerMetricsIntegration builds a Flow from a YAML config,
// wires a tracer and a metrics observer, runs it to completion, and checks
// that every component observed the expected number of events.
func TestFlowConfigTracerMetricsIntegration(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "flow.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(diamondConfigYAML), 0o644))

	cfg, err := config.LoadFile(configPath)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	tr := tracer.New(cfg.Flow.TracerCapacity)
	flow, err := taskflow.New(cfg.Flow.WorkerCount, tr)
	require.NoError(t, err)
	defer flow.Close()

	obs := &fakeObserver{}
	flow.SetMetrics(obs)

	refs := make(map[string]taskflow.TaskRef, len(cfg.Tasks))
	for _, spec := range cfg.Tasks {
		ref, err := flow.AddTask(spec.Name, func(any) { time.Sleep(time.Millisecond) }, nil)
		require.NoError(t, err)
		refs[spec.Name] = ref
	}
	for _, spec := range cfg.Tasks {
		for _, pred := range spec.Predecessors {
			require.NoError(t, flow.SetTaskDep(refs[spec.Name], refs[pred]))
		}
	}

	require.NoError(t, flow.Start(cfg.Flow.Cycles))
	require.NoError(t, flow.Wait(5*time.Second))

	status := flow.Status()
	assert.False(t, status.Running)
	assert.Equal(t, cfg.Flow.Cycles, status.CyclesRun)

	obs.mu.Lock()
	assert.Equal(t, cfg.Flow.Cycles, obs.cycles)
	assert.Equal(t, cfg.Flow.Cycles*len(cfg.Tasks), obs.taskResults)
	obs.mu.Unlock()

	assert.Equal(t, cfg.Flow.Cycles*len(cfg.Tasks)*2, tr.Count()) // begin+end per task run

	var buf strings.Builder
	require.NoError(t, tr.WriteJSON(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "["))
	assert.True(t, strings.HasSuffix(buf.String(), "]"))
}
