package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/acme/click-to-call/internal/domain"
	"github.com/acme/click-to-call/internal/repository"
)

// CallRecordStore keeps call records in memory. Used for local runs and tests.
type CallRecordStore struct {
	mu      sync.Mutex
	records []domain.CallRecord
	byID    map[string]int
}

var _ repository.CallRecordStore = (*CallRecordStore)(nil)

func NewCallRecordStore() *CallRecordStore {
	return &CallRecordStore{byID: map[string]int{}}
}

func (s *CallRecordStore) SaveCallRecord(_ context.Context, r *domain.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[r.UniqueID]; exists {
		return nil
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.byID[r.UniqueID] = len(s.records)
	s.records = append(s.records, *r)
	return nil
}

func (s *CallRecordStore) GetCallRecord(_ context.Context, uniqueID string) (*domain.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[uniqueID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r := s.records[idx]
	return &r, nil
}

func (s *CallRecordStore) ListCallRecordsByDay(_ context.Context, day time.Time, limit int) ([]domain.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := repository.DayBucket(day)
	out := make([]domain.CallRecord, 0)
	for _, r := range s.records {
		if repository.DayBucket(r.StartedAt).Equal(bucket) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Records returns a copy of every stored record in insertion order.
func (s *CallRecordStore) Records() []domain.CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CallRecord, len(s.records))
	copy(out, s.records)
	return out
}
