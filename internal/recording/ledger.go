package recording

import (
	"context"
	"fmt"
	"sort"
	"sync"

	redis "github.com/redis/go-redis/v9"
)

// DefaultLedgerKey is the redis set holding recordings not yet downloaded.
const DefaultLedgerKey = "records_to_downloads"

// Ledger tracks recordings that were announced but not yet downloaded.
type Ledger interface {
	MarkPending(ctx context.Context, recordingID string) error
	MarkDone(ctx context.Context, recordingID string) error
	Pending(ctx context.Context) ([]string, error)
}

// RedisLedger stores the pending set in redis.
type RedisLedger struct {
	client *redis.Client
	key    string
}

// NewRedisLedger builds a ledger on the given redis set key.
func NewRedisLedger(client *redis.Client, key string) *RedisLedger {
	if key == "" {
		key = DefaultLedgerKey
	}
	return &RedisLedger{client: client, key: key}
}

// MarkPending adds the recording to the pending set.
func (l *RedisLedger) MarkPending(ctx context.Context, recordingID string) error {
	if err := l.client.SAdd(ctx, l.key, recordingID).Err(); err != nil {
		return fmt.Errorf("recording ledger: sadd: %w", err)
	}
	return nil
}

// MarkDone removes the recording from the pending set.
func (l *RedisLedger) MarkDone(ctx context.Context, recordingID string) error {
	if err := l.client.SRem(ctx, l.key, recordingID).Err(); err != nil {
		return fmt.Errorf("recording ledger: srem: %w", err)
	}
	return nil
}

// Pending lists recordings still awaiting download, sorted.
func (l *RedisLedger) Pending(ctx context.Context) ([]string, error) {
	ids, err := l.client.SMembers(ctx, l.key).Result()
	if err != nil {
		return nil, fmt.Errorf("recording ledger: smembers: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// MemoryLedger is an in-process ledger used when redis is not configured.
type MemoryLedger struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{ids: map[string]struct{}{}}
}

func (l *MemoryLedger) MarkPending(_ context.Context, recordingID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids[recordingID] = struct{}{}
	return nil
}

func (l *MemoryLedger) MarkDone(_ context.Context, recordingID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.ids, recordingID)
	return nil
}

func (l *MemoryLedger) Pending(_ context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
