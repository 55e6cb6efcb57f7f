// Package storage selects and opens the configured Output Store and Cursor
// Store backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
	"github.com/JakeFAU/archive-harvester/internal/storage/local"
	"github.com/JakeFAU/archive-harvester/internal/storage/memory"
	"github.com/JakeFAU/archive-harvester/internal/storage/postgres"
	"github.com/JakeFAU/archive-harvester/internal/storage/redis"
	"github.com/JakeFAU/archive-harvester/internal/storage/sqlite"
)

// Backend names.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config selects the Output Store backend. Unless the cursor section names
// its own backend, the cursor lives next to the records.
type Config struct {
	Backend     string          `mapstructure:"backend"`
	Dir         string          `mapstructure:"dir"`
	RecordsFile string          `mapstructure:"records_file"`
	StateFile   string          `mapstructure:"state_file"`
	SQLiteFile  string          `mapstructure:"sqlite_file"`
	Postgres    postgres.Config `mapstructure:"postgres"`
}

// CursorConfig optionally moves the Cursor Store to another backend.
type CursorConfig struct {
	Backend string       `mapstructure:"backend"`
	Redis   redis.Config `mapstructure:"redis"`
}

// Stores bundles the opened stores with their cleanup.
type Stores struct {
	Records crawler.OutputStore
	Cursor  crawler.CursorStore
	closers []func() error
}

// Close releases every backend opened by Open.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the stores named by cfg and cursorCfg.
func Open(ctx context.Context, cfg Config, cursorCfg CursorConfig, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	stores := &Stores{}
	fail := func(err error) (*Stores, error) {
		_ = stores.Close()
		return nil, err
	}

	backend := normalize(cfg.Backend, BackendFile)
	var sameBackendCursor crawler.CursorStore
	switch backend {
	case BackendFile:
		fileCfg := local.Config{Dir: cfg.Dir, RecordsFile: cfg.RecordsFile, StateFile: cfg.StateFile}
		records, err := local.NewRecordStore(fileCfg)
		if err != nil {
			return fail(fmt.Errorf("open record file: %w", err))
		}
		cursor, err := local.NewCursorStore(fileCfg)
		if err != nil {
			return fail(fmt.Errorf("open state file: %w", err))
		}
		stores.Records, sameBackendCursor = records, cursor
		logger.Info("using file storage", zap.String("records", records.Path()), zap.String("state", cursor.Path()))
	case BackendMemory:
		stores.Records, sameBackendCursor = memory.NewRecordStore(), memory.NewCursorStore()
		logger.Warn("using in-memory storage; nothing will be kept after exit")
	case BackendSQLite:
		db, err := sqlite.Open(cfg.Dir, cfg.SQLiteFile)
		if err != nil {
			return fail(fmt.Errorf("open sqlite: %w", err))
		}
		stores.closers = append(stores.closers, db.Close)
		stores.Records, sameBackendCursor = db.Records(), db.Cursor()
		logger.Info("using sqlite storage", zap.String("path", db.Path()))
	case BackendPostgres:
		pg, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return fail(fmt.Errorf("open postgres: %w", err))
		}
		stores.closers = append(stores.closers, func() error { pg.Close(); return nil })
		if err := pg.EnsureSchema(ctx); err != nil {
			return fail(err)
		}
		stores.Records, sameBackendCursor = pg.Records(), pg.Cursor()
		logger.Info("using postgres storage")
	default:
		return fail(fmt.Errorf("unknown storage backend %q", cfg.Backend))
	}

	switch cursorBackend := normalize(cursorCfg.Backend, backend); cursorBackend {
	case backend:
		stores.Cursor = sameBackendCursor
	case BackendRedis:
		rc, err := redis.New(cursorCfg.Redis)
		if err != nil {
			return fail(fmt.Errorf("open redis cursor: %w", err))
		}
		stores.closers = append(stores.closers, rc.Close)
		stores.Cursor = rc
		logger.Info("using redis cursor", zap.String("addr", cursorCfg.Redis.Addr))
	case BackendMemory:
		stores.Cursor = memory.NewCursorStore()
	case BackendFile:
		cursor, err := local.NewCursorStore(local.Config{Dir: cfg.Dir, StateFile: cfg.StateFile})
		if err != nil {
			return fail(fmt.Errorf("open state file: %w", err))
		}
		stores.Cursor = cursor
	default:
		return fail(fmt.Errorf("cursor backend %q must match storage backend %q or be one of file, memory, redis",
			cursorBackend, backend))
	}
	return stores, nil
}

func normalize(name, fallback string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fallback
	}
	return name
}

// LoadOrInit returns the persisted cursor, creating and saving the initial
// one for startID when none exists.
func LoadOrInit(ctx context.Context, cursor crawler.CursorStore, startID int) (crawler.CrawlState, error) {
	state, err := cursor.Load(ctx)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, crawler.ErrStateNotFound) {
		return crawler.CrawlState{}, fmt.Errorf("load crawl state: %w", err)
	}
	state = crawler.InitialState(startID)
	if err := cursor.Save(ctx, state); err != nil {
		return crawler.CrawlState{}, fmt.Errorf("save initial crawl state: %w", err)
	}
	return state, nil
}
