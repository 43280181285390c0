package transcript

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory [Store] for deployments without a database and
// for tests. Entries are kept per call in arrival order.
//
// MemStore is safe for concurrent use.
type MemStore struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string][]Entry)}
}

// Record appends one line to the call's transcript.
func (s *MemStore) Record(_ context.Context, callID, speaker, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[callID] = append(s.entries[callID], Entry{
		CallID:    callID,
		Speaker:   speaker,
		Text:      text,
		CreatedAt: time.Now(),
	})
	return nil
}

// Recent returns the call's newest entries in chronological order.
func (s *MemStore) Recent(_ context.Context, callID string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.entries[callID]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}
	return append([]Entry(nil), all[start:]...), nil
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)
