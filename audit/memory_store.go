package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the trail in process memory. It backs development runs
// and deployments without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Append(_ context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return applyLimit(out, f.Limit), nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
	return nil
}
