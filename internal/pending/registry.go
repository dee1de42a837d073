package pending

import (
	"sync"
	"time"

	"github.com/acme/click-to-call/internal/domain"
)

// Registry holds admitted calls until their completion event arrives.
// Lookups are exact on already-normalized numbers.
type Registry struct {
	mu      sync.Mutex
	entries []domain.PendingCall
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends an entry. Duplicate trunk and destination pairs are allowed.
func (r *Registry) Add(call domain.PendingCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, call)
}

// TakeMatching removes and returns the most recently added entry for the
// trunk and destination. The boolean is false when nothing matches.
func (r *Registry) TakeMatching(trunkNumber, destinationNumber string) (domain.PendingCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.TrunkNumber == trunkNumber && e.DestinationNumber == destinationNumber {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return e, true
		}
	}
	return domain.PendingCall{}, false
}

// Len returns the number of pending entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// List returns a copy of all pending entries, oldest first.
func (r *Registry) List() []domain.PendingCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.PendingCall, len(r.entries))
	copy(out, r.entries)
	return out
}

// Stale returns entries created before the threshold.
func (r *Registry) Stale(before time.Time) []domain.PendingCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PendingCall
	for _, e := range r.entries {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	return out
}

// Evict removes and returns entries created before the threshold.
func (r *Registry) Evict(before time.Time) []domain.PendingCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []domain.PendingCall
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.CreatedAt.Before(before) {
			evicted = append(evicted, e)
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return evicted
}
