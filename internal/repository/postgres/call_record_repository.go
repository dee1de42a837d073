package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/acme/click-to-call/internal/domain"
	"github.com/acme/click-to-call/internal/repository"
)

// Schema creates the call_records table when it does not yet exist.
const Schema = `CREATE TABLE IF NOT EXISTS call_records (
	unique_id          TEXT PRIMARY KEY,
	correlation_id     TEXT NOT NULL DEFAULT '',
	source_number      TEXT NOT NULL DEFAULT '',
	destination_number TEXT NOT NULL DEFAULT '',
	internal_number    TEXT NOT NULL DEFAULT '',
	direction          SMALLINT NOT NULL DEFAULT 0,
	status             SMALLINT NOT NULL DEFAULT 0,
	call_started_at    TIMESTAMPTZ NOT NULL,
	call_ended_at      TIMESTAMPTZ NOT NULL,
	ringing_time       INTEGER NOT NULL DEFAULT 0,
	talking_time       INTEGER NOT NULL DEFAULT 0,
	audio_file         TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS call_records_started_idx ON call_records (call_started_at);`

const selectColumns = `unique_id, correlation_id, source_number, destination_number, internal_number,
	direction, status, call_started_at, call_ended_at, ringing_time, talking_time, audio_file, created_at`

// CallRecordRepository implements repository.CallRecordStore on Postgres.
type CallRecordRepository struct {
	db *sqlx.DB
}

var _ repository.CallRecordStore = (*CallRecordRepository)(nil)

// NewCallRecordRepository builds the repository.
func NewCallRecordRepository(db *sqlx.DB) *CallRecordRepository {
	return &CallRecordRepository{db: db}
}

// EnsureSchema applies Schema.
func (r *CallRecordRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("call records: ensure schema: %w", err)
	}
	return nil
}

// SaveCallRecord inserts the record. A record whose unique id already exists
// is kept as first written.
func (r *CallRecordRepository) SaveCallRecord(ctx context.Context, record *domain.CallRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO call_records (
		unique_id, correlation_id, source_number, destination_number, internal_number,
		direction, status, call_started_at, call_ended_at, ringing_time, talking_time, audio_file, created_at
	) VALUES (
		:unique_id, :correlation_id, :source_number, :destination_number, :internal_number,
		:direction, :status, :call_started_at, :call_ended_at, :ringing_time, :talking_time, :audio_file, :created_at
	) ON CONFLICT (unique_id) DO NOTHING`, record)
	if err != nil {
		return fmt.Errorf("call records: insert: %w", err)
	}
	return nil
}

// GetCallRecord fetches a record by unique id.
func (r *CallRecordRepository) GetCallRecord(ctx context.Context, uniqueID string) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	err := r.db.GetContext(ctx, &rec, `SELECT `+selectColumns+` FROM call_records WHERE unique_id = $1`, uniqueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("call records: get: %w", err)
	}
	return &rec, nil
}

// ListCallRecordsByDay lists records started on the given UTC day, newest first.
func (r *CallRecordRepository) ListCallRecordsByDay(ctx context.Context, day time.Time, limit int) ([]domain.CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	start := repository.DayBucket(day)
	var records []domain.CallRecord
	err := r.db.SelectContext(ctx, &records, `SELECT `+selectColumns+` FROM call_records
		WHERE call_started_at >= $1 AND call_started_at < $2
		ORDER BY call_started_at DESC LIMIT $3`, start, start.Add(24*time.Hour), limit)
	if err != nil {
		return nil, fmt.Errorf("call records: list by day: %w", err)
	}
	return records, nil
}
