package repository

import (
	"context"
	"time"

	"github.com/acme/click-to-call/internal/domain"
	apperrors "github.com/acme/click-to-call/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// CallRecordStore persists finished call records.
type CallRecordStore interface {
	SaveCallRecord(ctx context.Context, record *domain.CallRecord) error
	GetCallRecord(ctx context.Context, uniqueID string) (*domain.CallRecord, error)
	ListCallRecordsByDay(ctx context.Context, day time.Time, limit int) ([]domain.CallRecord, error)
}

// DayBucket truncates a timestamp to its UTC calendar day.
func DayBucket(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
