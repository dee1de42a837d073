package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/acme/click-to-call/pkg/errors"
)

func TestShutdownWaitsForWorkflows(t *testing.T) {
	r := New(nil)
	var finished atomic.Bool
	if err := r.Go("slow", func(ctx context.Context) error {
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return nil
	}); err != nil {
		t.Fatalf("go: %v", err)
	}

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !finished.Load() {
		t.Fatalf("shutdown returned before the workflow finished")
	}
	if r.Active() != 0 {
		t.Fatalf("expected no active workflows, got %d", r.Active())
	}
}

func TestGoRejectedWhileDraining(t *testing.T) {
	r := New(nil)
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	err := r.Go("late", func(ctx context.Context) error { return nil })
	if !errors.Is(err, apperrors.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestShutdownTimeoutCancelsWorkflows(t *testing.T) {
	r := New(nil)
	cancelled := make(chan struct{})
	_ = r.Go("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	select {
	case <-cancelled:
	default:
		t.Fatalf("workflow context was not cancelled")
	}
}

func TestPanicIsContained(t *testing.T) {
	r := New(nil)
	_ = r.Go("panics", func(ctx context.Context) error { panic("boom") })
	_ = r.Go("fails", func(ctx context.Context) error { return errors.New("nope") })
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
