package workflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/acme/click-to-call/pkg/errors"
	"github.com/acme/click-to-call/pkg/logger"
)

// Func is one detached admission or completion workflow.
type Func func(ctx context.Context) error

// Runner executes workflows outside the request that triggered them and
// drains them on shutdown.
type Runner struct {
	base   context.Context
	cancel context.CancelFunc
	log    *logger.Logger

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	active   atomic.Int64
}

// New constructs a runner. Workflows run on a context that is only cancelled
// when Shutdown gives up waiting.
func New(log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Runner{base: base, cancel: cancel, log: log.Named("workflow")}
}

// Go starts fn in its own goroutine. It fails once the runner is draining.
func (r *Runner) Go(name string, fn Func) error {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return fmt.Errorf("workflow: %w: runner is shutting down", apperrors.ErrUnavailable)
	}
	r.wg.Add(1)
	r.mu.Unlock()

	r.active.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.active.Add(-1)
		defer func() {
			if p := recover(); p != nil {
				r.log.Error("workflow panicked", zap.String("workflow", name), zap.Any("panic", p))
			}
		}()

		started := time.Now()
		if err := fn(r.base); err != nil {
			r.log.Error("workflow failed", zap.String("workflow", name), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
			return
		}
		r.log.Debug("workflow finished", zap.String("workflow", name), zap.Duration("elapsed", time.Since(started)))
	}()
	return nil
}

// Active returns the number of workflows still running.
func (r *Runner) Active() int {
	return int(r.active.Load())
}

// Shutdown stops accepting workflows and waits for running ones. When ctx
// expires first the remaining workflows are cancelled and ctx's error is
// returned.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.draining = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.log.Warn("workflow drain timed out", zap.Int("active", r.Active()))
		r.cancel()
		<-done
		return ctx.Err()
	}
}
