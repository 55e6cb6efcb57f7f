package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/archive-harvester/internal/storage"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Crawl.BatchSize)
	assert.Equal(t, 10, cfg.Crawl.TotalItems)
	assert.Equal(t, 1, cfg.Crawl.StartID)
	assert.Equal(t, 10*time.Second, cfg.Crawl.RoundPause)
	assert.Zero(t, cfg.Crawl.MaxRounds)
	assert.Equal(t, DefaultURLTemplate, cfg.Fetcher.URLTemplate)
	assert.Equal(t, "AcademicResearchBot/1.0", cfg.Fetcher.UserAgent)
	assert.Equal(t, 3*time.Second, cfg.Fetcher.Delay)
	assert.Equal(t, 30*time.Second, cfg.Fetcher.Timeout)
	assert.True(t, cfg.Fetcher.RespectRobots)
	assert.Equal(t, 3, cfg.Fetcher.MaxAttempts)
	assert.Equal(t, storage.BackendFile, cfg.Storage.Backend)
	assert.Equal(t, "data", cfg.Storage.Dir)
	assert.Equal(t, "documents.json", cfg.Storage.RecordsFile)
	assert.Equal(t, "state.json", cfg.Storage.StateFile)
	assert.Empty(t, cfg.Cursor.Backend)
	assert.Equal(t, "es", cfg.Sink.Language)
	assert.Equal(t, "Archivo del Libertador", cfg.Sink.Archive)
	assert.Equal(t, "documents.rdf", cfg.Sink.Output)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Server.Listen)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawl:
  batch_size: 5
  total_items: 500
  start_id: 100
  round_pause: 1m
  max_rounds: 3
fetcher:
  user_agent: test-agent
  delay: 500ms
  respect_robots: false
storage:
  backend: sqlite
  dir: /var/lib/harvester
  sqlite_file: archive.db
cursor:
  backend: redis
  redis:
    addr: localhost:6379
    key: archive:state
sink:
  language: en
  skip_failed: true
  output: out.rdf
logging:
  development: false
  level: debug
server:
  listen: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, CrawlConfig{BatchSize: 5, TotalItems: 500, StartID: 100, RoundPause: time.Minute, MaxRounds: 3}, cfg.Crawl)
	assert.Equal(t, "test-agent", cfg.Fetcher.UserAgent)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetcher.Delay)
	assert.False(t, cfg.Fetcher.RespectRobots)
	assert.Equal(t, storage.BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "archive.db", cfg.Storage.SQLiteFile)
	assert.Equal(t, storage.BackendRedis, cfg.Cursor.Backend)
	assert.Equal(t, "localhost:6379", cfg.Cursor.Redis.Addr)
	assert.Equal(t, "archive:state", cfg.Cursor.Redis.Key)
	assert.Equal(t, "en", cfg.Sink.Language)
	assert.Equal(t, "Archivo del Libertador", cfg.Sink.Archive)
	assert.True(t, cfg.Sink.SkipFailed)
	assert.Equal(t, "out.rdf", cfg.Sink.Output)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9090", cfg.Server.Listen)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HARVESTER_CRAWL_BATCH_SIZE", "7")
	t.Setenv("HARVESTER_FETCHER_DELAY", "250ms")
	t.Setenv("HARVESTER_STORAGE_BACKEND", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Crawl.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Fetcher.Delay)
	assert.Equal(t, storage.BackendMemory, cfg.Storage.Backend)
}

func TestLoadRejectsNonPositiveStartID(t *testing.T) {
	t.Setenv("HARVESTER_CRAWL_START_ID", "0")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawl.start_id")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"batch size", func(c *Config) { c.Crawl.BatchSize = 0 }, "crawl.batch_size"},
		{"total items", func(c *Config) { c.Crawl.TotalItems = -1 }, "crawl.total_items"},
		{"start id", func(c *Config) { c.Crawl.StartID = 0 }, "crawl.start_id"},
		{"negative pause", func(c *Config) { c.Crawl.RoundPause = -time.Second }, "crawl.round_pause"},
		{"template", func(c *Config) { c.Fetcher.URLTemplate = "https://archive.test/doc" }, "fetcher.url_template"},
		{"timeout", func(c *Config) { c.Fetcher.Timeout = 0 }, "fetcher.timeout"},
		{"attempts", func(c *Config) { c.Fetcher.MaxAttempts = 0 }, "fetcher.max_attempts"},
		{"backend", func(c *Config) { c.Storage.Backend = "s3" }, `storage.backend "s3"`},
		{"postgres dsn", func(c *Config) { c.Storage.Backend = storage.BackendPostgres }, "storage.postgres.dsn"},
		{"redis addr", func(c *Config) { c.Cursor.Backend = storage.BackendRedis }, "cursor.redis.addr"},
		{"sink output", func(c *Config) { c.Sink.Output = "" }, "sink.output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	require.NoError(t, base.Validate())
}
