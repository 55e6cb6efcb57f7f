// Package plan computes which document ids a round should process.
package plan

import "github.com/JakeFAU/archive-harvester/internal/crawler"

// Config bounds the id space of a job.
type Config struct {
	// BatchSize is the maximum number of ids per round.
	BatchSize int
	// TotalItems is the number of documents the job collects.
	TotalItems int
	// StartID is the first id of the job.
	StartID int
}

// EndID is the last id of the job's range.
func (c Config) EndID() int {
	return c.StartID + c.TotalItems - 1
}

// Next returns the ids of the next round in ascending order, or nil when the
// job is complete.
func Next(state crawler.CrawlState, cfg Config) []int {
	if cfg.BatchSize <= 0 || cfg.TotalItems <= 0 {
		return nil
	}
	if state.TotalCollected >= cfg.TotalItems {
		return nil
	}
	first := state.LastID + 1
	last := min(state.LastID+cfg.BatchSize, cfg.EndID())
	if first > last {
		return nil
	}
	ids := make([]int, 0, last-first+1)
	for id := first; id <= last; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Complete reports whether Next would return no ids.
func Complete(state crawler.CrawlState, cfg Config) bool {
	return len(Next(state, cfg)) == 0
}
