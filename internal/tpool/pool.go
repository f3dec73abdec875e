// ============================================================================
// cx-taskflow Thread Pool - Fixed-Size Worker Pool over a Bounded Queue
// ============================================================================
//
// Package: internal/tpool
// File: pool.go
// Function: Runs N worker goroutines draining one closable bqueue.Queue[Job].
//
// Design Pattern:
//   Grounded on the teacher's internal/worker/worker_pool.go (Pool lifecycle,
//   WaitGroup join-on-close) generalized onto the bqueue.Queue[Job] required
//   by spec.md §4.2, rather than a bare Go channel. Worker loop is the direct
//   translation of original_source/src/cx_tpool.c's cx_tpool_worker.
//
// Concurrency Contract:
//   All coordination is on the job queue; no additional locks. Dispatch order
//   is FIFO; completion order is not guaranteed.
//
// ============================================================================

package tpool

import (
	"context"
	"errors"
	"sync"

	"github.com/ChuLiYu/cx-taskflow/internal/bqueue"
)

// Job is one unit of work: a function pointer plus an opaque argument. The
// pool never inspects Arg.
type Job struct {
	Fn  func(arg any)
	Arg any
}

// Pool is a fixed-size set of worker goroutines consuming Jobs from a shared
// bqueue.Queue.
type Pool struct {
	queue   *bqueue.Queue[Job]
	wg      sync.WaitGroup
	workers int
}

// New creates and starts a Pool with the given worker count backed by a job
// queue of the given capacity. queueCapacity must be >= workerCount.
func New(queueCapacity, workerCount int) (*Pool, error) {
	if queueCapacity < workerCount {
		return nil, ErrQueueTooSmall
	}
	p := &Pool{
		queue:   bqueue.New[Job](queueCapacity),
		workers: workerCount,
	}
	p.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go p.workerLoop()
	}
	return p, nil
}

func (p *Pool) workerLoop() {
	defer p.wg.Done()
	ctx := context.Background()
	for {
		job, err := p.queue.Get(ctx)
		if errors.Is(err, bqueue.ErrClosed) {
			return
		}
		job.Fn(job.Arg)
	}
}

// Run submits (fn, arg) to the pool, blocking if the job queue is full.
// Returns bqueue.ErrClosed if the pool has been closed.
func (p *Pool) Run(fn func(arg any), arg any) error {
	return p.queue.Put(context.Background(), Job{Fn: fn, Arg: arg})
}

// WorkLen returns the current number of queued, not-yet-dispatched jobs.
func (p *Pool) WorkLen() int {
	return p.queue.Len()
}

// WorkerCount returns the fixed number of worker goroutines.
func (p *Pool) WorkerCount() int {
	return p.workers
}

// Close closes the job queue and waits for every worker to exit. A closed
// queue still hands out the jobs it holds, so workers run every job that
// was queued before Close and exit once the queue is empty. Safe to call
// regardless of how many jobs remain unprocessed.
func (p *Pool) Close() {
	_ = p.queue.Close()
	p.wg.Wait()
}
