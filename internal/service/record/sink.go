package record

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/acme/click-to-call/internal/domain"
	"github.com/acme/click-to-call/internal/queue"
	"github.com/acme/click-to-call/internal/repository"
	"github.com/acme/click-to-call/pkg/logger"
)

// Publisher emits an event for each stored record.
type Publisher interface {
	PublishCallCompleted(ctx context.Context, msg queue.CallCompletedMessage) error
}

// Sink stores finished call records and announces them.
type Sink struct {
	store     repository.CallRecordStore
	publisher Publisher
	log       *logger.Logger
}

// NewSink builds a sink. publisher may be nil.
func NewSink(store repository.CallRecordStore, publisher Publisher, log *logger.Logger) *Sink {
	if log == nil {
		log = logger.NewNop()
	}
	return &Sink{store: store, publisher: publisher, log: log}
}

// SaveCallRecord persists the record, then publishes it. A failed publish is
// logged and does not fail the save.
func (s *Sink) SaveCallRecord(ctx context.Context, rec *domain.CallRecord) error {
	if err := s.store.SaveCallRecord(ctx, rec); err != nil {
		return fmt.Errorf("record sink: save: %w", err)
	}
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishCallCompleted(ctx, queue.NewCallCompletedMessage(rec)); err != nil {
		s.log.WithContext(ctx).Warn("record sink: publish failed",
			zap.String("unique_id", rec.UniqueID),
			zap.Error(err),
		)
	}
	return nil
}

// GetCallRecord loads a stored record by its unique id.
func (s *Sink) GetCallRecord(ctx context.Context, uniqueID string) (*domain.CallRecord, error) {
	return s.store.GetCallRecord(ctx, uniqueID)
}
