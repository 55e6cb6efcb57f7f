// Package postgres provides Postgres-backed Output and Cursor stores.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Default table names.
const (
	DefaultRecordsTable = "records"
	DefaultStateTable   = "crawl_state"
)

// Config controls the Postgres connection pool and table names.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	RecordsTable    string        `mapstructure:"records_table"`
	StateTable      string        `mapstructure:"state_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// pool is the subset of *pgxpool.Pool the stores use.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store owns the pool shared by the record and cursor views.
type Store struct {
	pool         pool
	recordsTable string
	stateTable   string
}

// Open connects to Postgres using cfg.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(p, cfg.RecordsTable, cfg.StateTable)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, recordsTable, stateTable string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if recordsTable == "" {
		recordsTable = DefaultRecordsTable
	}
	if stateTable == "" {
		stateTable = DefaultStateTable
	}
	for _, table := range []string{recordsTable, stateTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &Store{pool: p, recordsTable: recordsTable, stateTable: stateTable}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	seq         BIGSERIAL PRIMARY KEY,
	id          INTEGER NOT NULL,
	url         TEXT NOT NULL,
	fetched_at  TEXT NOT NULL,
	title       TEXT,
	section     TEXT,
	persons     TEXT,
	places      TEXT,
	keywords    TEXT,
	content     TEXT,
	notes       TEXT,
	translation TEXT,
	error       TEXT
)`, s.recordsTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_id_idx ON %[1]s (id)`, s.recordsTable),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	singleton       BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
	last_id         INTEGER NOT NULL,
	total_collected INTEGER NOT NULL,
	round_count     INTEGER NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, s.stateTable),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Records returns the Output Store view.
func (s *Store) Records() *RecordStore {
	return &RecordStore{store: s}
}

// Cursor returns the Cursor Store view.
func (s *Store) Cursor() *CursorStore {
	return &CursorStore{store: s}
}

// RecordStore implements crawler.OutputStore.
type RecordStore struct {
	store *Store
}

// CursorStore implements crawler.CursorStore.
type CursorStore struct {
	store *Store
}

var (
	_ crawler.OutputStore = (*RecordStore)(nil)
	_ crawler.CursorStore = (*CursorStore)(nil)
)

// Append inserts all records inside one transaction.
func (r *RecordStore) Append(ctx context.Context, records []crawler.FieldRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, url, fetched_at, title, section, persons, places, keywords, content, notes, translation, error
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, r.store.recordsTable)

	tx, err := r.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, rec := range records {
		if _, err = tx.Exec(ctx, query, recordArgs(rec)...); err != nil {
			return fmt.Errorf("insert record %d: %w", rec.ID, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func recordArgs(rec crawler.FieldRecord) []any {
	return []any{
		rec.ID,
		rec.URL,
		rec.FetchedAt,
		rec.Title,
		rec.Section,
		rec.Persons,
		rec.Places,
		rec.Keywords,
		rec.Content,
		rec.Notes,
		rec.Translation,
		rec.Error,
	}
}

// MaxID returns the highest stored id.
func (r *RecordStore) MaxID(ctx context.Context) (int, bool, error) {
	var maxID, count int
	query := fmt.Sprintf(`SELECT COALESCE(MAX(id), 0), COUNT(*) FROM %s`, r.store.recordsTable)
	if err := r.store.pool.QueryRow(ctx, query).Scan(&maxID, &count); err != nil {
		return 0, false, fmt.Errorf("query max id: %w", err)
	}
	return maxID, count > 0, nil
}

// Count returns the number of stored records.
func (r *RecordStore) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.store.recordsTable)
	if err := r.store.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// List returns all records in append order.
func (r *RecordStore) List(ctx context.Context) ([]crawler.FieldRecord, error) {
	query := fmt.Sprintf(`
SELECT id, url, fetched_at, title, section, persons, places, keywords, content, notes, translation, error
FROM %s ORDER BY seq`, r.store.recordsTable)
	rows, err := r.store.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []crawler.FieldRecord
	for rows.Next() {
		var rec crawler.FieldRecord
		if err := rows.Scan(
			&rec.ID, &rec.URL, &rec.FetchedAt,
			&rec.Title, &rec.Section, &rec.Persons, &rec.Places, &rec.Keywords,
			&rec.Content, &rec.Notes, &rec.Translation, &rec.Error,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Load returns the stored cursor or crawler.ErrStateNotFound.
func (c *CursorStore) Load(ctx context.Context) (crawler.CrawlState, error) {
	var state crawler.CrawlState
	query := fmt.Sprintf(`SELECT last_id, total_collected, round_count FROM %s`, c.store.stateTable)
	err := c.store.pool.QueryRow(ctx, query).Scan(&state.LastID, &state.TotalCollected, &state.RoundCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.CrawlState{}, crawler.ErrStateNotFound
	}
	if err != nil {
		return crawler.CrawlState{}, fmt.Errorf("load crawl state: %w", err)
	}
	return state, nil
}

// Save upserts the single cursor row.
func (c *CursorStore) Save(ctx context.Context, state crawler.CrawlState) error {
	query := fmt.Sprintf(`
INSERT INTO %s (singleton, last_id, total_collected, round_count, updated_at)
VALUES (TRUE, $1, $2, $3, NOW())
ON CONFLICT (singleton) DO UPDATE SET
	last_id = EXCLUDED.last_id,
	total_collected = EXCLUDED.total_collected,
	round_count = EXCLUDED.round_count,
	updated_at = EXCLUDED.updated_at`, c.store.stateTable)
	if _, err := c.store.pool.Exec(ctx, query, state.LastID, state.TotalCollected, state.RoundCount); err != nil {
		return fmt.Errorf("save crawl state: %w", err)
	}
	return nil
}
