package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JakeFAU/archive-harvester/internal/crawler"
	"github.com/JakeFAU/archive-harvester/internal/storage/sqlite/migrations"
)

// DefaultFile is the database file name used inside the storage directory.
const DefaultFile = "harvester.db"

// Store owns the database handle shared by the record and cursor views.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database under dir and applies pending
// migrations.
func Open(dir, file string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if strings.TrimSpace(file) == "" {
		file = DefaultFile
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dir, file)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; the driver serializes anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Records returns the Output Store view of the database.
func (s *Store) Records() *RecordStore {
	return &RecordStore{db: s.db}
}

// Cursor returns the Cursor Store view of the database.
func (s *Store) Cursor() *CursorStore {
	return &CursorStore{db: s.db}
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// RecordStore implements crawler.OutputStore over the records table.
type RecordStore struct {
	db *sql.DB
}

// CursorStore implements crawler.CursorStore over the crawl_state table.
type CursorStore struct {
	db *sql.DB
}

var (
	_ crawler.OutputStore = (*RecordStore)(nil)
	_ crawler.CursorStore = (*CursorStore)(nil)
)

const insertRecord = `
	INSERT INTO records (id, url, fetched_at, title, section, persons, places, keywords, content, notes, translation, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Append inserts all records in one transaction.
func (s *RecordStore) Append(ctx context.Context, records []crawler.FieldRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.ID, r.URL, r.FetchedAt,
			nullString(r.Title), nullString(r.Section), nullString(r.Persons), nullString(r.Places),
			nullString(r.Keywords), nullString(r.Content), nullString(r.Notes), nullString(r.Translation),
			nullString(r.Error),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert record %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// MaxID returns the highest stored id.
func (s *RecordStore) MaxID(ctx context.Context) (int, bool, error) {
	var maxID sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(id) FROM records").Scan(&maxID); err != nil {
		return 0, false, fmt.Errorf("query max id: %w", err)
	}
	if !maxID.Valid {
		return 0, false, nil
	}
	return int(maxID.Int64), true, nil
}

// Count returns the number of stored records.
func (s *RecordStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// List returns every record in append order.
func (s *RecordStore) List(ctx context.Context) ([]crawler.FieldRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, fetched_at, title, section, persons, places, keywords, content, notes, translation, error
		FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []crawler.FieldRecord
	for rows.Next() {
		var (
			r                                                  crawler.FieldRecord
			title, section, persons, places, keywords, content sql.NullString
			notes, translation, errText                        sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.URL, &r.FetchedAt,
			&title, &section, &persons, &places, &keywords, &content, &notes, &translation, &errText); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Title = stringPtr(title)
		r.Section = stringPtr(section)
		r.Persons = stringPtr(persons)
		r.Places = stringPtr(places)
		r.Keywords = stringPtr(keywords)
		r.Content = stringPtr(content)
		r.Notes = stringPtr(notes)
		r.Translation = stringPtr(translation)
		r.Error = stringPtr(errText)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Load returns the stored cursor or crawler.ErrStateNotFound.
func (s *CursorStore) Load(ctx context.Context) (crawler.CrawlState, error) {
	var state crawler.CrawlState
	err := s.db.QueryRowContext(ctx,
		"SELECT last_id, total_collected, round_count FROM crawl_state WHERE singleton = 1",
	).Scan(&state.LastID, &state.TotalCollected, &state.RoundCount)
	if errors.Is(err, sql.ErrNoRows) {
		return crawler.CrawlState{}, crawler.ErrStateNotFound
	}
	if err != nil {
		return crawler.CrawlState{}, fmt.Errorf("load crawl state: %w", err)
	}
	return state, nil
}

// Save upserts the single cursor row.
func (s *CursorStore) Save(ctx context.Context, state crawler.CrawlState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_state (singleton, last_id, total_collected, round_count, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(singleton) DO UPDATE SET
			last_id = excluded.last_id,
			total_collected = excluded.total_collected,
			round_count = excluded.round_count,
			updated_at = excluded.updated_at`,
		state.LastID, state.TotalCollected, state.RoundCount)
	if err != nil {
		return fmt.Errorf("save crawl state: %w", err)
	}
	return nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
