package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves one archive document by id. Ordinary network, HTTP, and
// robots failures are returned as *FetchError; context errors are returned
// as-is.
type Fetcher interface {
	Fetch(ctx context.Context, id int) (RawDocument, error)
}

// OutputStore is the append-only collection of field records.
type OutputStore interface {
	// Append stores all records or none of them.
	Append(ctx context.Context, records []FieldRecord) error
	// MaxID returns the highest id stored; ok is false for an empty store.
	MaxID(ctx context.Context) (id int, ok bool, err error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]FieldRecord, error)
}

// CursorStore persists the CrawlState atomically.
type CursorStore interface {
	// Load returns ErrStateNotFound when nothing was saved yet.
	Load(ctx context.Context) (CrawlState, error)
	Save(ctx context.Context, state CrawlState) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces round IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
