// Package driver repeats crawl rounds with a pause between them until the
// job is complete, a round fails, or the context ends.
package driver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
)

// Rounder runs a single round.
type Rounder interface {
	RunRound(ctx context.Context) (crawler.RoundReport, error)
}

// Sleeper waits between rounds.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Config controls the loop.
type Config struct {
	// Pause is the wait between two rounds.
	Pause time.Duration
	// MaxRounds stops the loop after that many rounds; 0 means unlimited.
	MaxRounds int
}

// Result summarizes a Run.
type Result struct {
	Rounds    int
	Succeeded int
	Failed    int
	// Complete is true when the planner reported the job finished.
	Complete bool
	State    crawler.CrawlState
}

// Driver is the round loop.
type Driver struct {
	cfg     Config
	rounder Rounder
	sleeper Sleeper
	logger  *zap.Logger
}

// New constructs a Driver.
func New(cfg Config, rounder Rounder, sleeper Sleeper, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{cfg: cfg, rounder: rounder, sleeper: sleeper, logger: logger}
}

// Run loops until completion. A round error stops the loop immediately and
// is returned unchanged; no round is retried.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	var res Result
	for {
		report, err := d.rounder.RunRound(ctx)
		if report.RoundID != "" {
			res.State = report.State
		}
		if err != nil {
			d.logger.Error("round failed; stopping",
				zap.String("round_id", report.RoundID),
				zap.String("phase", string(report.Phase)),
				zap.String("kind", crawler.KindOf(err).String()),
				zap.Error(err))
			return res, err
		}
		if len(report.Planned) > 0 {
			res.Rounds++
			res.Succeeded += report.Succeeded
			res.Failed += report.Failed
		}
		if report.Done {
			res.Complete = true
			d.logger.Info("target reached",
				zap.Int("rounds", res.Rounds),
				zap.Int("last_id", report.State.LastID),
				zap.Int("total_collected", report.State.TotalCollected))
			return res, nil
		}
		if d.cfg.MaxRounds > 0 && res.Rounds >= d.cfg.MaxRounds {
			d.logger.Info("round limit reached", zap.Int("rounds", res.Rounds))
			return res, nil
		}
		d.logger.Debug("pausing before next round", zap.Duration("pause", d.cfg.Pause))
		if err := d.sleeper.Sleep(ctx, d.cfg.Pause); err != nil {
			return res, fmt.Errorf("interrupted between rounds: %w", err)
		}
	}
}
