package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Task is one job's pipeline function. It must honor ctx cancellation.
type Task func(ctx context.Context)

// RunnerStats reports the current state of the pipeline runner.
type RunnerStats struct {
	Active    int   `json:"active"`
	Completed int64 `json:"completed"`
}

// Runner executes background job pipelines: bounded global concurrency,
// at most one running pipeline per job id, and cancellation by job id.
// Two different jobs never block each other beyond the worker slot limit.
type Runner struct {
	slots  chan struct{}
	mu     sync.Mutex
	active map[string]context.CancelFunc
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger

	closed    atomic.Bool
	completed atomic.Int64
}

// NewRunner creates a runner with the given number of worker slots.
func NewRunner(workers int, log zerolog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		slots:  make(chan struct{}, workers),
		active: make(map[string]context.CancelFunc),
		ctx:    ctx,
		cancel: cancel,
		log:    log.With().Str("component", "runner").Logger(),
	}
}

// Submit schedules fn for jobID. Returns false if a pipeline for that id is
// already active or the runner is shutting down; the caller treats that as
// a duplicate-scheduling bug, not a retryable condition.
func (r *Runner) Submit(jobID string, fn Task) bool {
	if r.closed.Load() {
		return false
	}

	r.mu.Lock()
	if _, dup := r.active[jobID]; dup {
		r.mu.Unlock()
		return false
	}
	jobCtx, cancel := context.WithCancel(r.ctx)
	r.active[jobID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.active, jobID)
			r.mu.Unlock()
			cancel()
		}()

		select {
		case r.slots <- struct{}{}:
		case <-jobCtx.Done():
			return
		}
		defer func() { <-r.slots }()

		fn(jobCtx)
		r.completed.Add(1)
	}()
	return true
}

// Cancel cancels the running pipeline for jobID, if any.
func (r *Runner) Cancel(jobID string) bool {
	r.mu.Lock()
	cancel, ok := r.active[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Stats returns current runner statistics.
func (r *Runner) Stats() RunnerStats {
	r.mu.Lock()
	active := len(r.active)
	r.mu.Unlock()
	return RunnerStats{
		Active:    active,
		Completed: r.completed.Load(),
	}
}

// Shutdown stops accepting new jobs and waits for running pipelines to
// finish. If ctx expires first, remaining pipelines are cancelled and
// waited for.
func (r *Runner) Shutdown(ctx context.Context) {
	r.closed.Store(true)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.log.Warn().Msg("shutdown deadline reached, cancelling running pipelines")
		r.cancel()
		<-done
	}
	r.cancel()
	r.log.Info().Int64("completed", r.completed.Load()).Msg("pipeline runner stopped")
}
