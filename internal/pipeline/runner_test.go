package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunnerDuplicateSubmitRejected(t *testing.T) {
	r := NewRunner(2, zerolog.Nop())

	release := make(chan struct{})
	running := make(chan struct{})

	if !r.Submit("job1", func(ctx context.Context) {
		close(running)
		<-release
	}) {
		t.Fatal("first Submit = false")
	}
	<-running

	if r.Submit("job1", func(ctx context.Context) {}) {
		t.Error("duplicate Submit = true, want false while job is active")
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Shutdown(ctx)

	if got := r.Stats().Completed; got != 1 {
		t.Errorf("completed = %d, want 1", got)
	}
}

func TestRunnerSameIDAfterCompletion(t *testing.T) {
	r := NewRunner(1, zerolog.Nop())

	done := make(chan struct{})
	r.Submit("job1", func(ctx context.Context) { close(done) })
	<-done

	// The first run may not have deregistered yet; poll briefly.
	deadline := time.After(time.Second)
	for {
		if r.Submit("job1", func(ctx context.Context) {}) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("could not resubmit job id after completion")
		case <-time.After(5 * time.Millisecond):
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Shutdown(ctx)
}

func TestRunnerCancelByID(t *testing.T) {
	r := NewRunner(1, zerolog.Nop())

	var cancelled atomic.Bool
	running := make(chan struct{})
	r.Submit("job1", func(ctx context.Context) {
		close(running)
		<-ctx.Done()
		cancelled.Store(true)
	})
	<-running

	if !r.Cancel("job1") {
		t.Fatal("Cancel = false for active job")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Shutdown(ctx)

	if !cancelled.Load() {
		t.Error("job did not observe cancellation")
	}

	if r.Cancel("job1") {
		t.Error("Cancel = true for finished job")
	}
}

func TestRunnerBoundedConcurrency(t *testing.T) {
	r := NewRunner(2, zerolog.Nop())

	var running atomic.Int32
	var peak atomic.Int32
	block := make(chan struct{})

	for _, id := range []string{"a", "b", "c", "d"} {
		r.Submit(id, func(ctx context.Context) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-block
			running.Add(-1)
		})
	}

	time.Sleep(50 * time.Millisecond)
	close(block)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Shutdown(ctx)

	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
	if got := r.Stats().Completed; got != 4 {
		t.Errorf("completed = %d, want 4", got)
	}
}

func TestRunnerRejectsAfterShutdown(t *testing.T) {
	r := NewRunner(1, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Shutdown(ctx)

	if r.Submit("late", func(ctx context.Context) {}) {
		t.Error("Submit accepted after shutdown")
	}
}
