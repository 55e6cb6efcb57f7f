package crawler

import (
	"errors"
	"fmt"
)

// ErrStateNotFound is returned by a CursorStore that holds no state yet.
var ErrStateNotFound = errors.New("crawl state not found")

// Kind classifies the errors a round can return. A missing label or marker
// is not an error at all: the extractor leaves the field nil.
type Kind int

// Error regimes.
const (
	KindNone Kind = iota
	// KindFetchFailure is a per-id failure, recorded and not fatal.
	KindFetchFailure
	// KindPersistenceFailure aborts the round without advancing the cursor.
	KindPersistenceFailure
	// KindOther covers everything else, including context cancellation.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindFetchFailure:
		return "fetch_failure"
	case KindPersistenceFailure:
		return "persistence_failure"
	default:
		return "other"
	}
}

// FetchError reports an ordinary failure to retrieve one document.
type FetchError struct {
	ID         int
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch document %d (%s): status %d: %s", e.ID, e.URL, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("fetch document %d (%s): %s", e.ID, e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed write to the Output Store or the Cursor
// Store. The round that produced it did not advance the cursor.
type PersistenceError struct {
	Phase Phase
	Op    string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Phase, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return KindFetchFailure
	}
	var persistErr *PersistenceError
	if errors.As(err, &persistErr) {
		return KindPersistenceFailure
	}
	return KindOther
}
