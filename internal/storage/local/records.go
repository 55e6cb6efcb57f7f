package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
)

// RecordStore keeps the Output Store as one JSON array. Every Append
// rewrites the whole file atomically.
type RecordStore struct {
	mu      sync.RWMutex
	path    string
	records []crawler.FieldRecord
}

var _ crawler.OutputStore = (*RecordStore)(nil)

// NewRecordStore opens the records file under cfg.Dir, loading any records
// already present.
func NewRecordStore(cfg Config) (*RecordStore, error) {
	cfg = cfg.withDefaults()
	if err := ensureDir(cfg.Dir); err != nil {
		return nil, err
	}
	path, err := resolve(cfg.Dir, cfg.RecordsFile)
	if err != nil {
		return nil, err
	}
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	return &RecordStore{path: path, records: records}, nil
}

func readRecords(path string) ([]crawler.FieldRecord, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- path is resolved inside the storage directory.
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var records []crawler.FieldRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode records %s: %w", path, err)
	}
	return records, nil
}

// Path returns the location of the records file.
func (s *RecordStore) Path() string {
	return s.path
}

// Append adds records to the end of the file. On error the file and the
// in-memory view are unchanged.
func (s *RecordStore) Append(ctx context.Context, records []crawler.FieldRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]crawler.FieldRecord, 0, len(s.records)+len(records))
	next = append(next, s.records...)
	next = append(next, records...)
	raw, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := writeAtomic(ctx, s.path, raw); err != nil {
		return err
	}
	s.records = next
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

// List returns a copy of all records in append order.
func (s *RecordStore) List(_ context.Context) ([]crawler.FieldRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.FieldRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}
