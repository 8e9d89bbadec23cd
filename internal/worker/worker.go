// Package worker runs background work: a bounded task queue for job dispatch
// and a scheduler for periodic sweeps.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrQueueFull is returned by Submit when the buffer is at capacity.
	ErrQueueFull = errors.New("task queue full")

	// ErrQueueStopped is returned by Submit before Start or after Stop.
	ErrQueueStopped = errors.New("task queue stopped")
)

// TaskFunc is a unit of background work.
type TaskFunc func(ctx context.Context) error

type task struct {
	name       string
	fn         TaskFunc
	enqueuedAt time.Time
}

// Config holds queue configuration.
type Config struct {
	Workers  int
	Capacity int
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Workers   int   `json:"workers"`
	Capacity  int   `json:"capacity"`
	Queued    int   `json:"queued"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Panicked  int64 `json:"panicked"`
	Rejected  int64 `json:"rejected"`
}

// Queue is a fixed pool of goroutines reading a buffered channel.
// Submit never blocks.
type Queue struct {
	workers  int
	capacity int
	tasks    chan task
	logger   *slog.Logger

	mu      sync.RWMutex
	started bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	panicked  atomic.Int64
	rejected  atomic.Int64
}

// New creates a queue.
func New(cfg Config, logger *slog.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		workers:  cfg.Workers,
		capacity: cfg.Capacity,
		tasks:    make(chan task, cfg.Capacity),
		logger:   logger.With("component", "worker"),
	}
}

// Start launches the workers. Tasks run on a context derived from ctx that
// outlives ctx's cancellation until Stop gives up draining.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))

	q.logger.Info("starting", "workers", q.workers, "capacity", q.capacity)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.runWorker(i)
	}
}

// Submit enqueues fn without blocking.
func (q *Queue) Submit(name string, fn TaskFunc) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.started || q.closed {
		q.rejected.Add(1)
		return ErrQueueStopped
	}
	select {
	case q.tasks <- task{name: name, fn: fn, enqueuedAt: time.Now()}:
		return nil
	default:
		q.rejected.Add(1)
		return ErrQueueFull
	}
}

// Stop refuses new tasks and waits for queued and running tasks to finish.
// When ctx expires first, running tasks are cancelled and Stop returns ctx.Err().
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.started || q.closed {
		q.closed = true
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.logger.Info("stopping", "queued", len(q.tasks))

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.logger.Info("stopped")
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		q.logger.Warn("stopped before drain completed", "error", ctx.Err())
		return ctx.Err()
	}
}

// Stats returns current counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Workers:   q.workers,
		Capacity:  q.capacity,
		Queued:    len(q.tasks),
		Running:   q.running.Load(),
		Completed: q.completed.Load(),
		Failed:    q.failed.Load(),
		Panicked:  q.panicked.Load(),
		Rejected:  q.rejected.Load(),
	}
}

func (q *Queue) runWorker(workerID int) {
	defer q.wg.Done()
	for t := range q.tasks {
		q.run(workerID, t)
	}
}

func (q *Queue) run(workerID int, t task) {
	q.running.Add(1)
	defer q.running.Add(-1)

	start := time.Now()
	err := q.safeCall(t)
	switch {
	case err != nil:
		q.failed.Add(1)
		q.logger.Error("task failed",
			"worker_id", workerID,
			"task", t.name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
	default:
		q.completed.Add(1)
		q.logger.Debug("task completed",
			"worker_id", workerID,
			"task", t.name,
			"wait_ms", start.Sub(t.enqueuedAt).Milliseconds(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (q *Queue) safeCall(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.panicked.Add(1)
			q.logger.Error("task panicked", "task", t.name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("task %s panicked: %v", t.name, r)
		}
	}()
	return t.fn(q.ctx)
}
