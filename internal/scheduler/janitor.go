package scheduler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/acme/click-to-call/internal/domain"
	"github.com/acme/click-to-call/pkg/logger"
)

// PendingSource exposes the pending calls the janitor inspects.
type PendingSource interface {
	Stale(before time.Time) []domain.PendingCall
	Evict(before time.Time) []domain.PendingCall
}

// JanitorConfig tunes the stale pending call sweep.
type JanitorConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	// EvictAfter removes entries older than this. Zero only reports them.
	EvictAfter time.Duration
}

// Janitor periodically reports, and optionally evicts, pending calls whose
// completion event never arrived. Trunk capacity is left untouched.
type Janitor struct {
	source PendingSource
	cfg    JanitorConfig
	log    *logger.Logger
	now    func() time.Time
}

// NewJanitor constructs a janitor.
func NewJanitor(source PendingSource, cfg JanitorConfig, log *logger.Logger) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Janitor{source: source, cfg: cfg, log: log.Named("janitor"), now: time.Now}
}

// Run executes the sweep loop until cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many entries were stale and evicted.
func (j *Janitor) Sweep(ctx context.Context) (stale, evicted int) {
	_, span := otel.Tracer("clicktocall.janitor").Start(ctx, "janitor.sweep")
	defer span.End()

	now := j.now()
	if j.cfg.StaleAfter > 0 {
		for _, p := range j.source.Stale(now.Add(-j.cfg.StaleAfter)) {
			stale++
			j.log.Warn("pending call has no completion",
				zap.String("trunk", p.TrunkNumber),
				zap.String("destination", p.DestinationNumber),
				zap.String("correlation_id", p.CorrelationID),
				zap.Duration("age", now.Sub(p.CreatedAt)),
			)
		}
	}
	if j.cfg.EvictAfter > 0 {
		removed := j.source.Evict(now.Add(-j.cfg.EvictAfter))
		evicted = len(removed)
		if evicted > 0 {
			j.log.Info("evicted pending calls", zap.Int("count", evicted))
		}
	}

	span.SetAttributes(attribute.Int("pending.stale", stale), attribute.Int("pending.evicted", evicted))
	return stale, evicted
}
