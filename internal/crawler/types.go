package crawler

import (
	"strings"
	"time"
)

// FetchedAtLayout is the timestamp layout stored in FieldRecord.FetchedAt.
const FetchedAtLayout = "2006-01-02 15:04:05"

// RawDocument is the parsed form of one archive page as handed over by a
// Fetcher. Regions maps a region label to its text fragments in document
// order.
type RawDocument struct {
	ID      int
	URL     string
	Title   string
	Regions map[string][]string
}

// Fragments returns the fragments of the labeled region, or nil.
func (d RawDocument) Fragments(label string) []string {
	if d.Regions == nil {
		return nil
	}
	return d.Regions[label]
}

// FieldRecord is one entry of the Output Store. Nil pointers are absent
// fields and serialize as JSON null.
type FieldRecord struct {
	ID          int     `json:"id"`
	URL         string  `json:"url"`
	FetchedAt   string  `json:"fetched_at"`
	Title       *string `json:"title"`
	Section     *string `json:"section"`
	Persons     *string `json:"persons"`
	Places      *string `json:"places"`
	Keywords    *string `json:"keywords"`
	Content     *string `json:"content"`
	Notes       *string `json:"notes"`
	Translation *string `json:"translation"`
	Error       *string `json:"error,omitempty"`
}

// Failed reports whether the record stands in for a failed fetch.
func (r FieldRecord) Failed() bool {
	return r.Error != nil
}

// KeywordTags splits the comma-joined keyword field into trimmed, unique,
// non-empty tags in first-seen order.
func (r FieldRecord) KeywordTags() []string {
	if r.Keywords == nil {
		return nil
	}
	parts := strings.Split(*r.Keywords, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// FailureRecord synthesizes the placeholder record kept for an id whose
// fetch failed.
func FailureRecord(id int, url string, fetchedAt time.Time, reason string) FieldRecord {
	return FieldRecord{
		ID:        id,
		URL:       url,
		FetchedAt: fetchedAt.Format(FetchedAtLayout),
		Error:     &reason,
	}
}

// CrawlState is the cursor persisted between rounds.
type CrawlState struct {
	LastID         int `json:"last_id" mapstructure:"last_id"`
	TotalCollected int `json:"total_collected" mapstructure:"total_collected"`
	RoundCount     int `json:"round_count" mapstructure:"round_count"`
}

// InitialState is the cursor used before any round ran for a job that
// starts at startID.
func InitialState(startID int) CrawlState {
	return CrawlState{LastID: startID - 1}
}

// Phase names the step a round reached.
type Phase string

// Round phases in execution order.
const (
	PhasePlanning   Phase = "planning"
	PhaseProcessing Phase = "processing"
	PhasePersisting Phase = "persisting"
	PhaseAdvancing  Phase = "advancing"
	PhaseRoundDone  Phase = "round_done"
)

// RoundReport summarizes one round for the Round Driver.
type RoundReport struct {
	RoundID   string
	Phase     Phase
	Planned   []int
	Succeeded int
	Failed    int
	// Done reports that the planner has nothing left for this job.
	Done  bool
	State CrawlState
}
