package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
)

// CursorStore persists the CrawlState as a small JSON object.
type CursorStore struct {
	path string
}

var _ crawler.CursorStore = (*CursorStore)(nil)

// NewCursorStore prepares the state file location under cfg.Dir.
func NewCursorStore(cfg Config) (*CursorStore, error) {
	cfg = cfg.withDefaults()
	if err := ensureDir(cfg.Dir); err != nil {
		return nil, err
	}
	path, err := resolve(cfg.Dir, cfg.StateFile)
	if err != nil {
		return nil, err
	}
	return &CursorStore{path: path}, nil
}

// Path returns the location of the state file.
func (s *CursorStore) Path() string {
	return s.path
}

// Load reads the state file, returning crawler.ErrStateNotFound when it does
// not exist yet.
func (s *CursorStore) Load(ctx context.Context) (crawler.CrawlState, error) {
	if err := ctx.Err(); err != nil {
		return crawler.CrawlState{}, err
	}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return crawler.CrawlState{}, crawler.ErrStateNotFound
	}
	if err != nil {
		return crawler.CrawlState{}, fmt.Errorf("read state: %w", err)
	}
	var state crawler.CrawlState
	if err := json.Unmarshal(raw, &state); err != nil {
		return crawler.CrawlState{}, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	return state, nil
}

// Save replaces the state file atomically.
func (s *CursorStore) Save(ctx context.Context, state crawler.CrawlState) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return writeAtomic(ctx, s.path, raw)
}
