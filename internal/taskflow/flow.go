// ============================================================================
// cx-taskflow Task Flow - DAG Execution Engine
// ============================================================================
//
// Package: internal/taskflow
// File: flow.go
// Function: Runs a directed acyclic task graph over a tpool.Pool, cycle by
//   cycle, with optional tracing and an optional natural-stop callback.
//
// Design Pattern:
//   Grounded on original_source/src/cx_tflow.c: cx_tflow_start discovers
//   source/sink tasks and dispatches sources; cx_tflow_wrapper is the
//   completion protocol every task runs through (trace, bump the task's
//   cycle counter, sink bookkeeping, successor-readiness check via the
//   witness cycle of a successor's first input, restart or stop); cx_tflow_
//   wait/stop use an absolute-deadline condition wait with a 50-year default
//   when no timeout is given. Struct shape (owned slice + cached index
//   slices behind one mutex) grounded on the teacher's
//   internal/jobmanager/job_manager.go; Start/Stop/logging shape grounded on
//   the teacher's internal/controller/controller.go.
//
// Task storage: tasks are boxed and held in one arena (Flow.tasks); TaskRef
// is a stable index handle into that arena, per spec DESIGN NOTES on cyclic
// task ownership (a task's inputs and outputs would otherwise form
// reference cycles that Go's GC handles fine, but that a handle design
// keeps explicit and easy to validate).
//
// ============================================================================

// Package taskflow implements a directed-acyclic-graph task scheduler: tasks
// declare dependencies on one another and are run, cycle by cycle, across a
// fixed-size worker pool.
package taskflow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ChuLiYu/cx-taskflow/internal/tpool"
	"github.com/ChuLiYu/cx-taskflow/internal/tracer"
	"github.com/ChuLiYu/cx-taskflow/pkg/types"
)

// defaultWaitTimeout stands in for "wait forever" the way the original C
// implementation defaults an all-zero timespec to 50 years.
const defaultWaitTimeout = 50 * 365 * 24 * time.Hour

// poolQueueCapacity is the job queue capacity backing the internal thread
// pool, matching the fixed capacity original_source/src/cx_tflow.c passes
// to cx_tpool_new.
const poolQueueCapacity = 32

// TaskRef is a stable, non-owning handle to a task added with AddTask. A
// TaskRef is only valid for the Flow that produced it.
type TaskRef struct {
	idx int
}

// Status reports a flow's running state and cycle progress.
type Status = types.FlowStatus

// task is one node in the graph.
type task struct {
	name   string
	fn     func(arg any)
	arg    any
	inps   []TaskRef
	outs   []TaskRef
	cycles int
	udata  any
}

// Flow is a task graph plus the scheduler driving it across cycles.
type Flow struct {
	mu     sync.Mutex
	stopCv *sync.Cond
	pool   *tpool.Pool
	tracer *tracer.Tracer

	cycles    int // target cycle count, 0 = unlimited
	runCycles int
	runSinks  int

	tasks   []*task
	sources []TaskRef
	sinks   []TaskRef

	stop    bool
	running bool

	stopCb      func(*Flow, any)
	stopCbUdata any

	metrics metricsObserver
	log     *slog.Logger
}

// metricsObserver is the subset of internal/metrics.Collector the flow
// reports to. Kept as an interface so taskflow never imports the metrics
// package (and net/http with it) directly — the CLI layer wires a
// *metrics.Collector in via SetMetrics.
type metricsObserver interface {
	RecordCycle()
	RecordTaskCompleted(durationSeconds float64)
}

// SetMetrics attaches an optional metrics observer. Never required: a Flow
// with no observer set behaves identically, just unobserved.
func (f *Flow) SetMetrics(m metricsObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = m
}

// New creates a Flow backed by a workerCount-sized thread pool. tr is
// optional; pass nil to disable tracing.
func New(workerCount int, tr *tracer.Tracer) (*Flow, error) {
	queueCap := poolQueueCapacity
	if workerCount > queueCap {
		queueCap = workerCount
	}
	pool, err := tpool.New(queueCap, workerCount)
	if err != nil {
		return nil, fmt.Errorf("taskflow: %w", err)
	}
	f := &Flow{
		pool:   pool,
		tracer: tr,
		log:    slog.Default().With("component", "taskflow"),
	}
	f.stopCv = sync.NewCond(&f.mu)
	return f, nil
}

// AddTask registers a new task. The flow must not be running.
func (f *Flow) AddTask(name string, fn func(arg any), arg any) (TaskRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return TaskRef{}, ErrInvalidState
	}

	for _, t := range f.tasks {
		if t.name == name {
			return TaskRef{}, ErrDuplicateName
		}
	}

	f.tasks = append(f.tasks, &task{name: name, fn: fn, arg: arg})
	return TaskRef{idx: len(f.tasks) - 1}, nil
}

// SetTaskDep declares predecessor as a dependency of task: predecessor must
// complete before task runs in a given cycle. The flow must not be running.
func (f *Flow) SetTaskDep(t, predecessor TaskRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return ErrInvalidState
	}

	tk, err := f.taskLocked(t)
	if err != nil {
		return err
	}
	dep, err := f.taskLocked(predecessor)
	if err != nil {
		return err
	}
	if t.idx == predecessor.idx {
		return ErrSelfDep
	}
	for _, existing := range tk.inps {
		if existing.idx == predecessor.idx {
			return ErrDuplicateDep
		}
	}

	tk.inps = append(tk.inps, predecessor)
	dep.outs = append(dep.outs, t)
	return nil
}

// SetTaskUserData attaches an opaque value to task, retrievable from
// within the task's own function or by any caller holding the TaskRef.
func (f *Flow) SetTaskUserData(t TaskRef, udata any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tk, err := f.taskLocked(t)
	if err != nil {
		return err
	}
	tk.udata = udata
	return nil
}

// TaskUserData returns the value previously set with SetTaskUserData.
func (f *Flow) TaskUserData(t TaskRef) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tk, err := f.taskLocked(t)
	if err != nil {
		return nil, err
	}
	return tk.udata, nil
}

// TaskCount returns the number of tasks added so far.
func (f *Flow) TaskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

// TaskAt returns the TaskRef for the task added at index i.
func (f *Flow) TaskAt(i int) (TaskRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.tasks) {
		return TaskRef{}, ErrInvalidRef
	}
	return TaskRef{idx: i}, nil
}

// FindTask returns the TaskRef for the task with the given name, if any.
func (f *Flow) FindTask(name string) (TaskRef, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.name == name {
			return TaskRef{idx: i}, true
		}
	}
	return TaskRef{}, false
}

// TaskName returns the name of t, or "" if t is not a valid reference into
// this flow.
func (f *Flow) TaskName(t TaskRef) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	tk, err := f.taskLocked(t)
	if err != nil {
		return ""
	}
	return tk.name
}

// TaskInputs returns the dependencies (predecessors) of t.
func (f *Flow) TaskInputs(t TaskRef) []TaskRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	tk, err := f.taskLocked(t)
	if err != nil {
		return nil
	}
	out := make([]TaskRef, len(tk.inps))
	copy(out, tk.inps)
	return out
}

// TaskOutputs returns the dependants (successors) of t.
func (f *Flow) TaskOutputs(t TaskRef) []TaskRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	tk, err := f.taskLocked(t)
	if err != nil {
		return nil
	}
	out := make([]TaskRef, len(tk.outs))
	copy(out, tk.outs)
	return out
}

// taskLocked resolves a TaskRef to its backing task. Caller must hold f.mu.
func (f *Flow) taskLocked(t TaskRef) (*task, error) {
	if t.idx < 0 || t.idx >= len(f.tasks) {
		return nil, ErrInvalidRef
	}
	return f.tasks[t.idx], nil
}

// SetStopCallback registers a callback invoked once the flow stops after
// naturally completing its target cycle count. It is not invoked when the
// flow is stopped via Stop.
func (f *Flow) SetStopCallback(cb func(*Flow, any), udata any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCb = cb
	f.stopCbUdata = udata
}

// Start begins running tasks for the given number of cycles. If cycles is
// 0, the flow runs until Stop is called. The flow must have at least one
// task and must not already be running.
func (f *Flow) Start(cycles int) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return ErrInvalidState
	}
	if len(f.tasks) == 0 {
		f.mu.Unlock()
		return ErrEmpty
	}

	f.sources = f.sources[:0]
	f.sinks = f.sinks[:0]
	for i, t := range f.tasks {
		if len(t.inps) == 0 {
			f.sources = append(f.sources, TaskRef{idx: i})
		}
		if len(t.outs) == 0 {
			f.sinks = append(f.sinks, TaskRef{idx: i})
		}
	}

	f.cycles = cycles
	f.runCycles = 0
	f.running = true
	f.stop = false
	f.log.Info("flow starting", "tasks", len(f.tasks), "cycles", cycles)
	f.mu.Unlock()

	return f.restart()
}

// restart dispatches every source task to begin a new cycle.
func (f *Flow) restart() error {
	f.mu.Lock()
	f.runSinks = 0
	sources := make([]TaskRef, len(f.sources))
	copy(sources, f.sources)
	f.mu.Unlock()

	for _, ref := range sources {
		r := ref
		if err := f.pool.Run(func(any) { f.onTaskDone(r) }, nil); err != nil {
			return fmt.Errorf("taskflow: %w", err)
		}
	}
	return nil
}

// onTaskDone is the wrapper every task runs inside: it executes the task
// function with tracing, then decides whether the task's successors are
// ready, whether the current cycle has completed, and whether the flow
// should restart or stop.
func (f *Flow) onTaskDone(ref TaskRef) {
	f.mu.Lock()
	t := f.tasks[ref.idx]
	f.mu.Unlock()

	start := time.Now()
	if f.tracer != nil {
		f.tracer.Begin(t.name, "task")
	}
	t.fn(t.arg)
	if f.tracer != nil {
		f.tracer.End(t.name, "task")
	}
	duration := time.Since(start)

	f.mu.Lock()
	t.cycles++
	if f.metrics != nil {
		f.metrics.RecordTaskCompleted(duration.Seconds())
	}

	if len(t.outs) == 0 {
		f.runSinks++
		if f.runSinks == len(f.sinks) {
			f.runCycles++
			if f.metrics != nil {
				f.metrics.RecordCycle()
			}
			reachedTarget := f.cycles != 0 && f.runCycles >= f.cycles
			explicitStop := f.stop
			if explicitStop || reachedTarget {
				f.running = false
				cb, cbUdata := f.stopCb, f.stopCbUdata
				invokeCb := reachedTarget && !explicitStop && cb != nil
				f.log.Info("flow stopped", "run_cycles", f.runCycles, "explicit_stop", explicitStop)
				f.mu.Unlock()
				f.stopCv.Broadcast()
				if invokeCb {
					cb(f, cbUdata)
				}
				return
			}
			f.mu.Unlock()
			if err := f.restart(); err != nil {
				f.log.Error("flow restart failed", "error", err)
			}
			return
		}
		f.mu.Unlock()
		return
	}

	for _, outRef := range t.outs {
		outTask := f.tasks[outRef.idx]
		inputsOK := true
		var witnessCycles int
		for i, inpRef := range outTask.inps {
			inpTask := f.tasks[inpRef.idx]
			if i == 0 {
				witnessCycles = inpTask.cycles
			}
			if inpTask.cycles != witnessCycles {
				inputsOK = false
			}
		}
		if inputsOK {
			r := outRef
			if err := f.pool.Run(func(any) { f.onTaskDone(r) }, nil); err != nil {
				f.log.Error("dispatch failed", "task", outTask.name, "error", err)
			}
		}
	}
	f.mu.Unlock()
}

// TraceInstant emits a scoped instant event on the flow's tracer, if one is
// set. It is an escape hatch for task functions that want to record a point
// event beyond the begin/end pair onTaskDone already wraps every task in.
func (f *Flow) TraceInstant(name, cat string, scope tracer.Scope) {
	if f.tracer != nil {
		f.tracer.Instant(name, cat, scope)
	}
}

// Stop requests the flow finish its current cycle and then stop, waiting
// up to timeout for it to do so. A zero timeout waits indefinitely.
func (f *Flow) Stop(timeout time.Duration) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return ErrInvalidState
	}
	f.stop = true
	f.mu.Unlock()

	return f.Wait(timeout)
}

// Wait blocks until the flow is no longer running, or timeout elapses. A
// zero timeout waits indefinitely.
func (f *Flow) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	deadline := time.Now().Add(timeout)

	f.mu.Lock()
	defer f.mu.Unlock()

	timer := time.AfterFunc(timeout, f.stopCv.Broadcast)
	defer timer.Stop()

	for f.running {
		if time.Now().After(deadline) {
			return fmt.Errorf("taskflow: timeout waiting for flow to stop")
		}
		f.stopCv.Wait()
	}
	return nil
}

// Status reports the flow's current running state and cycle progress.
func (f *Flow) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{
		Running:      f.running,
		CyclesTarget: f.cycles,
		CyclesRun:    f.runCycles,
	}
}

// QueueDepth returns the current number of pending jobs on the flow's
// thread pool queue, for callers polling it into a gauge.
func (f *Flow) QueueDepth() int {
	return f.pool.WorkLen()
}

// Close releases the flow's thread pool. The flow must not be running.
func (f *Flow) Close() {
	f.pool.Close()
}
