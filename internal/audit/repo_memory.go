package audit

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory append-only repository, used when no database
// is configured and in tests.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ListByEntry returns up to limit events for entryID, newest first.
func (r *MemoryRepo) ListByEntry(_ context.Context, entryID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.events[i].EntryID == entryID {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}
