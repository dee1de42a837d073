package trunkpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/acme/click-to-call/internal/domain"
	apperrors "github.com/acme/click-to-call/pkg/errors"
	"github.com/acme/click-to-call/pkg/logger"
)

const defaultPollInterval = 5 * time.Second

// Options tunes acquisition behaviour.
type Options struct {
	// PollInterval bounds how long a waiter sleeps before rescanning even
	// without a release notification.
	PollInterval time.Duration
	// AcquireTimeout caps the wait for a free channel. Zero waits forever.
	AcquireTimeout time.Duration
	Logger         *logger.Logger
}

type trunk struct {
	id        string
	capacity  int
	available int
	// gate is a one-slot semaphore serializing redirect changes on this trunk.
	gate chan struct{}
}

// Pool tracks per-trunk channel capacity and a per-trunk redirect lock.
type Pool struct {
	mu      sync.Mutex
	trunks  []*trunk
	byID    map[string]*trunk
	changed chan struct{}

	pollInterval   time.Duration
	acquireTimeout time.Duration
	log            *logger.Logger
}

// New builds a pool from the given trunks. Every trunk starts fully
// available. Iteration order for acquisition follows the slice order.
func New(numbers []domain.TrunkNumber, opts Options) (*Pool, error) {
	if len(numbers) == 0 {
		return nil, fmt.Errorf("trunkpool: %w: no trunk numbers configured", apperrors.ErrConfiguration)
	}

	p := &Pool{
		trunks:         make([]*trunk, 0, len(numbers)),
		byID:           make(map[string]*trunk, len(numbers)),
		changed:        make(chan struct{}),
		pollInterval:   opts.PollInterval,
		acquireTimeout: opts.AcquireTimeout,
		log:            opts.Logger,
	}
	if p.pollInterval <= 0 {
		p.pollInterval = defaultPollInterval
	}
	if p.log == nil {
		p.log = logger.NewNop()
	}

	for _, n := range numbers {
		if n.ID == "" {
			return nil, fmt.Errorf("trunkpool: %w: empty trunk id", apperrors.ErrConfiguration)
		}
		if n.Capacity <= 0 {
			return nil, fmt.Errorf("trunkpool: %w: trunk %s capacity must be positive, got %d", apperrors.ErrConfiguration, n.ID, n.Capacity)
		}
		if _, dup := p.byID[n.ID]; dup {
			return nil, fmt.Errorf("trunkpool: %w: duplicate trunk %s", apperrors.ErrConfiguration, n.ID)
		}
		t := &trunk{id: n.ID, capacity: n.Capacity, available: n.Capacity, gate: make(chan struct{}, 1)}
		p.trunks = append(p.trunks, t)
		p.byID[n.ID] = t
	}

	return p, nil
}

// Acquire reserves one channel on the first trunk, in iteration order, that
// has spare capacity. It blocks until a channel frees up, the context is
// cancelled, or the configured acquire timeout elapses.
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	var deadline <-chan time.Time
	if p.acquireTimeout > 0 {
		timer := time.NewTimer(p.acquireTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	waiting := false
	for {
		id, available, wait := p.tryAcquire()
		if id != "" {
			p.log.Info("trunk acquired", zap.String("trunk", id), zap.Int("available", available))
			return id, nil
		}
		if !waiting {
			waiting = true
			p.log.Info("trunk pool exhausted, waiting for a free channel")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline:
			return "", fmt.Errorf("trunkpool: acquire: %w after %s", apperrors.ErrTimeout, p.acquireTimeout)
		case <-wait:
		case <-ticker.C:
		}
	}
}

func (p *Pool) tryAcquire() (string, int, <-chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.trunks {
		if t.available > 0 {
			t.available--
			return t.id, t.available, nil
		}
	}
	return "", 0, p.changed
}

// Release returns one channel to the trunk. Releasing a trunk that is already
// at full capacity is absorbed. It reports whether the trunk is known.
func (p *Pool) Release(id string) bool {
	p.mu.Lock()
	t, ok := p.byID[id]
	if !ok {
		p.mu.Unlock()
		p.log.Warn("release of unknown trunk ignored", zap.String("trunk", id))
		return false
	}
	if t.available >= t.capacity {
		p.mu.Unlock()
		p.log.Debug("duplicate trunk release absorbed", zap.String("trunk", id))
		return true
	}
	t.available++
	available := t.available
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()

	p.log.Info("trunk released", zap.String("trunk", id), zap.Int("available", available))
	return true
}

// Lock takes the redirect lock of a trunk. It is independent of capacity.
func (p *Pool) Lock(ctx context.Context, id string) error {
	t, ok := p.byID[id]
	if !ok {
		return fmt.Errorf("trunkpool: lock %s: %w", id, apperrors.ErrNotFound)
	}
	select {
	case t.gate <- struct{}{}:
		p.log.Debug("trunk locked", zap.String("trunk", id))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases the redirect lock. Unlocking a free trunk is a no-op.
func (p *Pool) Unlock(id string) {
	t, ok := p.byID[id]
	if !ok {
		return
	}
	select {
	case <-t.gate:
		p.log.Debug("trunk unlocked", zap.String("trunk", id))
	default:
	}
}

// Available returns the free channel count of a trunk.
func (p *Pool) Available(id string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.byID[id]
	if !ok {
		return 0, false
	}
	return t.available, true
}

// Snapshot returns the state of every trunk in iteration order.
func (p *Pool) Snapshot() []domain.TrunkNumber {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.TrunkNumber, 0, len(p.trunks))
	for _, t := range p.trunks {
		out = append(out, domain.TrunkNumber{
			ID:        t.id,
			Capacity:  t.capacity,
			Available: t.available,
			Busy:      len(t.gate) == 1,
		})
	}
	return out
}

// Len returns the number of trunks in the pool.
func (p *Pool) Len() int {
	return len(p.trunks)
}
