package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/acme/click-to-call/internal/domain"
	"github.com/acme/click-to-call/internal/repository"
)

// Schema lists the CQL statements backing the store.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS call_records (
		unique_id text PRIMARY KEY,
		correlation_id text, source_number text, destination_number text, internal_number text,
		direction int, status int, call_started_at timestamp, call_ended_at timestamp,
		ringing_time int, talking_time int, audio_file text, created_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS call_records_by_day (
		bucket date, call_started_at timestamp, unique_id text,
		correlation_id text, source_number text, destination_number text, internal_number text,
		direction int, status int, call_ended_at timestamp,
		ringing_time int, talking_time int, audio_file text, created_at timestamp,
		PRIMARY KEY ((bucket), call_started_at, unique_id)
	) WITH CLUSTERING ORDER BY (call_started_at DESC, unique_id ASC)`,
}

// CallRecordStore persists call records in Scylla, keyed by id and by day.
type CallRecordStore struct {
	session *gocql.Session
}

var _ repository.CallRecordStore = (*CallRecordStore)(nil)

// NewCallRecordStore creates a new call record store.
func NewCallRecordStore(session *gocql.Session) *CallRecordStore {
	return &CallRecordStore{session: session}
}

// EnsureSchema creates the tables.
func (s *CallRecordStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if err := s.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("call record store: ensure schema: %w", err)
		}
	}
	return nil
}

// SaveCallRecord writes the record to both tables. The id table insert is
// lightweight-transactional so the first write for an id wins.
func (s *CallRecordStore) SaveCallRecord(ctx context.Context, r *domain.CallRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	applied, err := s.session.Query(`INSERT INTO call_records (unique_id, correlation_id, source_number, destination_number, internal_number,
		direction, status, call_started_at, call_ended_at, ringing_time, talking_time, audio_file, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`,
		r.UniqueID, r.CorrelationID, r.SourceNumber, r.DestinationNumber, r.InternalNumber,
		int(r.Direction), int(r.Status), r.StartedAt, r.EndedAt, r.RingingTime, r.TalkingTime, r.AudioFile, r.CreatedAt,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("call record store: insert call_records: %w", err)
	}
	if !applied {
		return nil
	}

	if err := s.session.Query(`INSERT INTO call_records_by_day (bucket, call_started_at, unique_id, correlation_id, source_number,
		destination_number, internal_number, direction, status, call_ended_at, ringing_time, talking_time, audio_file, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		repository.DayBucket(r.StartedAt), r.StartedAt, r.UniqueID, r.CorrelationID, r.SourceNumber,
		r.DestinationNumber, r.InternalNumber, int(r.Direction), int(r.Status), r.EndedAt, r.RingingTime, r.TalkingTime, r.AudioFile, r.CreatedAt,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("call record store: insert call_records_by_day: %w", err)
	}
	return nil
}

// GetCallRecord retrieves a record by unique id.
func (s *CallRecordStore) GetCallRecord(ctx context.Context, uniqueID string) (*domain.CallRecord, error) {
	var (
		r                 domain.CallRecord
		direction, status int
	)
	err := s.session.Query(`SELECT unique_id, correlation_id, source_number, destination_number, internal_number,
		direction, status, call_started_at, call_ended_at, ringing_time, talking_time, audio_file, created_at
		FROM call_records WHERE unique_id = ?`, uniqueID).WithContext(ctx).Scan(
		&r.UniqueID, &r.CorrelationID, &r.SourceNumber, &r.DestinationNumber, &r.InternalNumber,
		&direction, &status, &r.StartedAt, &r.EndedAt, &r.RingingTime, &r.TalkingTime, &r.AudioFile, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("call record store: get: %w", err)
	}
	r.Direction = domain.Direction(direction)
	r.Status = domain.CallStatus(status)
	return &r, nil
}

// ListCallRecordsByDay lists records started on the given UTC day, newest first.
func (s *CallRecordStore) ListCallRecordsByDay(ctx context.Context, day time.Time, limit int) ([]domain.CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	iter := s.session.Query(`SELECT unique_id, call_started_at, correlation_id, source_number, destination_number, internal_number,
		direction, status, call_ended_at, ringing_time, talking_time, audio_file, created_at
		FROM call_records_by_day WHERE bucket = ? LIMIT ?`, repository.DayBucket(day), limit).WithContext(ctx).Iter()

	records := make([]domain.CallRecord, 0, limit)
	var (
		r                 domain.CallRecord
		direction, status int
	)
	for iter.Scan(&r.UniqueID, &r.StartedAt, &r.CorrelationID, &r.SourceNumber, &r.DestinationNumber, &r.InternalNumber,
		&direction, &status, &r.EndedAt, &r.RingingTime, &r.TalkingTime, &r.AudioFile, &r.CreatedAt) {
		r.Direction = domain.Direction(direction)
		r.Status = domain.CallStatus(status)
		records = append(records, r)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("call record store: iter close: %w", err)
	}
	return records, nil
}
