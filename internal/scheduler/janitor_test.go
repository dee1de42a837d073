package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/acme/click-to-call/internal/domain"
	"github.com/acme/click-to-call/internal/pending"
)

func seeded(now time.Time) *pending.Registry {
	r := pending.NewRegistry()
	r.Add(domain.PendingCall{TrunkNumber: "100", DestinationNumber: "1", CreatedAt: now.Add(-3 * time.Hour)})
	r.Add(domain.PendingCall{TrunkNumber: "100", DestinationNumber: "2", CreatedAt: now.Add(-90 * time.Minute)})
	r.Add(domain.PendingCall{TrunkNumber: "101", DestinationNumber: "3", CreatedAt: now.Add(-time.Minute)})
	return r
}

func TestSweepReportsWithoutEvicting(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	r := seeded(now)
	j := NewJanitor(r, JanitorConfig{StaleAfter: time.Hour}, nil)
	j.now = func() time.Time { return now }

	stale, evicted := j.Sweep(context.Background())
	if stale != 2 || evicted != 0 {
		t.Fatalf("expected 2 stale 0 evicted, got %d %d", stale, evicted)
	}
	if r.Len() != 3 {
		t.Fatalf("report-only sweep must keep entries, got %d", r.Len())
	}
}

func TestSweepEvicts(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	r := seeded(now)
	j := NewJanitor(r, JanitorConfig{StaleAfter: time.Hour, EvictAfter: 2 * time.Hour}, nil)
	j.now = func() time.Time { return now }

	_, evicted := j.Sweep(context.Background())
	if evicted != 1 {
		t.Fatalf("expected one eviction, got %d", evicted)
	}
	if r.Len() != 2 {
		t.Fatalf("expected two entries left, got %d", r.Len())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	j := NewJanitor(pending.NewRegistry(), JanitorConfig{Interval: 5 * time.Millisecond, StaleAfter: time.Hour}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := j.Run(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}
