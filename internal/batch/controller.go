// Package batch runs one crawl round at a time: plan the next ids, fetch and
// extract each, persist the records, and only then advance the cursor.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
	"github.com/JakeFAU/archive-harvester/internal/extract"
	"github.com/JakeFAU/archive-harvester/internal/metrics"
	"github.com/JakeFAU/archive-harvester/internal/plan"
)

// Config controls the id range of the job.
type Config struct {
	BatchSize  int
	TotalItems int
	StartID    int
	// URLTemplate builds the document URL recorded for failed fetches that
	// did not report one. It takes the id as its single %d verb.
	URLTemplate string
}

func (c Config) plan() plan.Config {
	return plan.Config{BatchSize: c.BatchSize, TotalItems: c.TotalItems, StartID: c.StartID}
}

// Controller owns the in-memory CrawlState between rounds. At most one
// Controller may operate on a given pair of stores.
type Controller struct {
	cfg     Config
	fetcher crawler.Fetcher
	records crawler.OutputStore
	cursor  crawler.CursorStore
	clock   crawler.Clock
	ids     crawler.IDGenerator
	logger  *zap.Logger

	// run serializes rounds; mu guards state alone.
	run   sync.Mutex
	mu    sync.Mutex
	state crawler.CrawlState
}

// New constructs a Controller starting from state.
func New(
	cfg Config,
	state crawler.CrawlState,
	fetcher crawler.Fetcher,
	records crawler.OutputStore,
	cursor crawler.CursorStore,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	logger *zap.Logger,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:     cfg,
		fetcher: fetcher,
		records: records,
		cursor:  cursor,
		clock:   clock,
		ids:     ids,
		logger:  logger,
		state:   state,
	}
}

// State returns the cursor as of the last completed round.
func (c *Controller) State() crawler.CrawlState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done reports whether the planner has nothing left to schedule.
func (c *Controller) Done() bool {
	return plan.Complete(c.State(), c.cfg.plan())
}

// RunRound executes one round. Fetch failures are recorded and do not fail
// the round. A *crawler.PersistenceError means the cursor was not advanced;
// a context error means the round was abandoned before anything was
// persisted.
func (c *Controller) RunRound(ctx context.Context) (crawler.RoundReport, error) {
	c.run.Lock()
	defer c.run.Unlock()

	current := c.State()
	roundID, err := c.ids.NewID()
	if err != nil {
		return crawler.RoundReport{}, fmt.Errorf("new round id: %w", err)
	}
	report := crawler.RoundReport{RoundID: roundID, Phase: crawler.PhasePlanning, State: current}
	logger := c.logger.With(zap.String("round_id", roundID))

	ids := plan.Next(current, c.cfg.plan())
	if len(ids) == 0 {
		report.Phase = crawler.PhaseRoundDone
		report.Done = true
		metrics.ObserveRound(metrics.RoundJobDone)
		logger.Info("job complete",
			zap.Int("last_id", current.LastID),
			zap.Int("total_collected", current.TotalCollected))
		return report, nil
	}
	report.Planned = ids
	logger.Info("round planned", zap.Int("first_id", ids[0]), zap.Int("last_id", ids[len(ids)-1]))

	report.Phase = crawler.PhaseProcessing
	produced := make([]crawler.FieldRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := c.process(ctx, logger, id)
		if err != nil {
			metrics.ObserveRound(metrics.RoundCanceled)
			logger.Warn("round abandoned", zap.Int("doc_id", id), zap.Error(err))
			return report, fmt.Errorf("round %s abandoned at document %d: %w", roundID, id, err)
		}
		if rec.Failed() {
			report.Failed++
		} else {
			report.Succeeded++
		}
		produced = append(produced, rec)
	}

	report.Phase = crawler.PhasePersisting
	if err := c.records.Append(ctx, produced); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.ObserveRound(metrics.RoundCanceled)
			return report, fmt.Errorf("round %s abandoned before persisting: %w", roundID, ctxErr)
		}
		metrics.ObserveRound(metrics.RoundFailed)
		logger.Error("append records failed", zap.Error(err))
		return report, &crawler.PersistenceError{Phase: crawler.PhasePersisting, Op: "append records", Err: err}
	}

	report.Phase = crawler.PhaseAdvancing
	next, err := c.advance(ctx, current)
	if err != nil {
		metrics.ObserveRound(metrics.RoundFailed)
		logger.Error("recompute cursor failed", zap.Error(err))
		return report, &crawler.PersistenceError{Phase: crawler.PhaseAdvancing, Op: "recompute cursor", Err: err}
	}
	if err := c.cursor.Save(ctx, next); err != nil {
		metrics.ObserveRound(metrics.RoundFailed)
		logger.Error("save cursor failed", zap.Error(err))
		return report, &crawler.PersistenceError{Phase: crawler.PhaseAdvancing, Op: "save cursor", Err: err}
	}
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	report.Phase = crawler.PhaseRoundDone
	report.State = next
	report.Done = plan.Complete(next, c.cfg.plan())
	metrics.ObserveRound(metrics.RoundCompleted)
	metrics.SetCursor(next.LastID, next.TotalCollected, next.RoundCount)
	logger.Info("round complete",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("last_id", next.LastID),
		zap.Int("total_collected", next.TotalCollected),
		zap.Int("round_count", next.RoundCount),
		zap.Bool("done", report.Done))
	return report, nil
}

// process fetches and extracts one document. The only error it returns is
// the context's; fetch failures become failure records.
func (c *Controller) process(ctx context.Context, logger *zap.Logger, id int) (crawler.FieldRecord, error) {
	if err := ctx.Err(); err != nil {
		return crawler.FieldRecord{}, err
	}
	doc, err := c.fetcher.Fetch(ctx, id)
	fetchedAt := c.clock.Now()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return crawler.FieldRecord{}, ctxErr
		}
		var fetchErr *crawler.FetchError
		if !errors.As(err, &fetchErr) {
			fetchErr = &crawler.FetchError{ID: id, Reason: err.Error(), Err: err}
		}
		url := fetchErr.URL
		if url == "" {
			url = c.urlFor(id)
		}
		logger.Warn("fetch failed",
			zap.Int("doc_id", id),
			zap.String("url", url),
			zap.Int("status", fetchErr.StatusCode),
			zap.Error(err))
		metrics.ObserveDocument(metrics.DocumentFailed)
		return crawler.FailureRecord(id, url, fetchedAt, err.Error()), nil
	}

	if doc.ID == 0 {
		doc.ID = id
	}
	if doc.URL == "" {
		doc.URL = c.urlFor(id)
	}
	rec := extract.BuildRecord(doc, fetchedAt)
	metrics.ObserveDocument(metrics.DocumentSucceeded)
	logger.Debug("document extracted", zap.Int("doc_id", id), zap.Bool("has_content", rec.Content != nil))
	return rec, nil
}

// advance derives the next cursor from the Output Store.
func (c *Controller) advance(ctx context.Context, current crawler.CrawlState) (crawler.CrawlState, error) {
	maxID, ok, err := c.records.MaxID(ctx)
	if err != nil {
		return crawler.CrawlState{}, err
	}
	count, err := c.records.Count(ctx)
	if err != nil {
		return crawler.CrawlState{}, err
	}
	next := current
	if ok && maxID > next.LastID {
		next.LastID = maxID
	}
	next.TotalCollected = count
	next.RoundCount++
	return next, nil
}

func (c *Controller) urlFor(id int) string {
	if c.cfg.URLTemplate == "" {
		return ""
	}
	return fmt.Sprintf(c.cfg.URLTemplate, id)
}
