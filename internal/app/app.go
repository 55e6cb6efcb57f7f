// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/archive-harvester/internal/batch"
	"github.com/JakeFAU/archive-harvester/internal/clock/system"
	"github.com/JakeFAU/archive-harvester/internal/config"
	"github.com/JakeFAU/archive-harvester/internal/crawler"
	"github.com/JakeFAU/archive-harvester/internal/driver"
	collyfetcher "github.com/JakeFAU/archive-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/archive-harvester/internal/id/uuid"
	"github.com/JakeFAU/archive-harvester/internal/logging"
	"github.com/JakeFAU/archive-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/archive-harvester/internal/sink/zotero"
	"github.com/JakeFAU/archive-harvester/internal/storage"
)

// App holds the shared services of one harvester process: configuration,
// logger, and the opened stores.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	stores  *storage.Stores
	fetcher crawler.Fetcher
	clock   *system.Clock
}

// Option customizes New.
type Option func(*App)

// WithLogger replaces the logger built from the logging configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithFetcher replaces the Colly fetcher.
func WithFetcher(f crawler.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// New builds the App and opens its stores. It fails fast when any store
// cannot be opened.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, clock: system.New()}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		logger, err := logging.New(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		a.logger = logger
	}

	stores, err := storage.Open(ctx, cfg.Storage, cfg.Cursor, a.logger.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}
	a.stores = stores

	if a.fetcher == nil {
		limiter := ratelimit.New(ratelimit.Config{Delay: cfg.Fetcher.Delay})
		a.fetcher = collyfetcher.New(collyfetcher.Config{
			URLTemplate:   cfg.Fetcher.URLTemplate,
			UserAgent:     cfg.Fetcher.UserAgent,
			RespectRobots: cfg.Fetcher.RespectRobots,
			Timeout:       cfg.Fetcher.Timeout,
			MaxAttempts:   cfg.Fetcher.MaxAttempts,
			Backoff:       cfg.Fetcher.Backoff,
		}, limiter, a.logger.Named("fetcher"))
	}

	a.logger.Debug("application services initialized",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("cursor_backend", cfg.Cursor.Backend))
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Records returns the Output Store.
func (a *App) Records() crawler.OutputStore {
	return a.stores.Records
}

// Cursor returns the Cursor Store.
func (a *App) Cursor() crawler.CursorStore {
	return a.stores.Cursor
}

// Controller loads the persisted cursor, initializing it on first use, and
// returns a Controller resuming from it.
func (a *App) Controller(ctx context.Context) (*batch.Controller, error) {
	state, err := storage.LoadOrInit(ctx, a.stores.Cursor, a.cfg.Crawl.StartID)
	if err != nil {
		return nil, err
	}
	a.logger.Info("resuming crawl",
		zap.Int("last_id", state.LastID),
		zap.Int("total_collected", state.TotalCollected),
		zap.Int("round_count", state.RoundCount))

	return batch.New(
		batch.Config{
			BatchSize:   a.cfg.Crawl.BatchSize,
			TotalItems:  a.cfg.Crawl.TotalItems,
			StartID:     a.cfg.Crawl.StartID,
			URLTemplate: a.cfg.Fetcher.URLTemplate,
		},
		state,
		a.fetcher,
		a.stores.Records,
		a.stores.Cursor,
		a.clock,
		uuid.New(),
		a.logger.Named("batch"),
	), nil
}

// Driver wraps rounder in the round loop.
func (a *App) Driver(rounder driver.Rounder) *driver.Driver {
	return driver.New(
		driver.Config{Pause: a.cfg.Crawl.RoundPause, MaxRounds: a.cfg.Crawl.MaxRounds},
		rounder,
		a.clock,
		a.logger.Named("driver"),
	)
}

// Exporter returns the RDF encoder configured by the sink section.
func (a *App) Exporter() *zotero.Encoder {
	return zotero.New(a.cfg.Sink.Config)
}

// Close releases the stores and flushes the logger.
func (a *App) Close() {
	if a.stores != nil {
		if err := a.stores.Close(); err != nil {
			a.logger.Warn("error closing stores", zap.Error(err))
		}
	}
	// Sync on a terminal stderr returns EINVAL; nothing to do about it.
	_ = a.logger.Sync()
}
