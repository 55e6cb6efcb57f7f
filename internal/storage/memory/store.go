// Package memory provides in-memory Output and Cursor stores for dry runs
// and tests. Nothing survives the process.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
)

// RecordStore is an in-memory crawler.OutputStore.
type RecordStore struct {
	mu      sync.RWMutex
	records []crawler.FieldRecord
}

// NewRecordStore constructs an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

// Append adds records in order.
func (s *RecordStore) Append(_ context.Context, records []crawler.FieldRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// MaxID returns the highest stored id.
func (s *RecordStore) MaxID(_ context.Context) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return 0, false, nil
	}
	maxID := s.records[0].ID
	for _, r := range s.records[1:] {
		maxID = max(maxID, r.ID)
	}
	return maxID, true, nil
}

// Count returns the number of stored records.
func (s *RecordStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// List returns a copy of the records in append order.
func (s *RecordStore) List(_ context.Context) ([]crawler.FieldRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.FieldRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// CursorStore is an in-memory crawler.CursorStore.
type CursorStore struct {
	mu    sync.RWMutex
	state *crawler.CrawlState
}

// NewCursorStore constructs an empty CursorStore.
func NewCursorStore() *CursorStore {
	return &CursorStore{}
}

// Load returns the saved state or crawler.ErrStateNotFound.
func (s *CursorStore) Load(_ context.Context) (crawler.CrawlState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return crawler.CrawlState{}, crawler.ErrStateNotFound
	}
	return *s.state, nil
}

// Save replaces the stored state.
func (s *CursorStore) Save(_ context.Context, state crawler.CrawlState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &state
	return nil
}

var (
	_ crawler.OutputStore = (*RecordStore)(nil)
	_ crawler.CursorStore = (*CursorStore)(nil)
)
