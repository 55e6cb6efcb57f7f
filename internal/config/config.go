// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/archive-harvester/internal/logging"
	"github.com/JakeFAU/archive-harvester/internal/sink/zotero"
	"github.com/JakeFAU/archive-harvester/internal/storage"
	"github.com/JakeFAU/archive-harvester/internal/storage/local"
	"github.com/JakeFAU/archive-harvester/internal/storage/postgres"
	"github.com/JakeFAU/archive-harvester/internal/storage/redis"
	"github.com/JakeFAU/archive-harvester/internal/storage/sqlite"
)

// EnvPrefix prefixes every environment override, e.g. HARVESTER_CRAWL_BATCH_SIZE.
const EnvPrefix = "HARVESTER"

// DefaultURLTemplate addresses documents of the Archivo del Libertador.
const DefaultURLTemplate = "https://www.archivodellibertador.gob.ve/archlib/web/index.php/site/documento?id=%d"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Crawl   CrawlConfig          `mapstructure:"crawl"`
	Fetcher FetcherConfig        `mapstructure:"fetcher"`
	Storage storage.Config       `mapstructure:"storage"`
	Cursor  storage.CursorConfig `mapstructure:"cursor"`
	Sink    SinkConfig           `mapstructure:"sink"`
	Logging logging.Config       `mapstructure:"logging"`
	Server  ServerConfig         `mapstructure:"server"`
}

// CrawlConfig bounds the job and paces its rounds.
type CrawlConfig struct {
	BatchSize  int           `mapstructure:"batch_size"`
	TotalItems int           `mapstructure:"total_items"`
	StartID    int           `mapstructure:"start_id"`
	RoundPause time.Duration `mapstructure:"round_pause"`
	MaxRounds  int           `mapstructure:"max_rounds"`
}

// FetcherConfig governs how documents are requested.
type FetcherConfig struct {
	URLTemplate   string        `mapstructure:"url_template"`
	UserAgent     string        `mapstructure:"user_agent"`
	Delay         time.Duration `mapstructure:"delay"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	Backoff       time.Duration `mapstructure:"backoff"`
}

// SinkConfig configures the RDF export.
type SinkConfig struct {
	zotero.Config `mapstructure:",squash"`
	Output        string `mapstructure:"output"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// Load builds a Config from defaults, an optional file, and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.batch_size", 2)
	v.SetDefault("crawl.total_items", 10)
	v.SetDefault("crawl.start_id", 1)
	v.SetDefault("crawl.round_pause", 10*time.Second)
	v.SetDefault("crawl.max_rounds", 0)
	v.SetDefault("fetcher.url_template", DefaultURLTemplate)
	v.SetDefault("fetcher.user_agent", "AcademicResearchBot/1.0")
	v.SetDefault("fetcher.delay", 3*time.Second)
	v.SetDefault("fetcher.timeout", 30*time.Second)
	v.SetDefault("fetcher.respect_robots", true)
	v.SetDefault("fetcher.max_attempts", 3)
	v.SetDefault("fetcher.backoff", time.Second)
	v.SetDefault("storage.backend", storage.BackendFile)
	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.records_file", local.DefaultRecordsFile)
	v.SetDefault("storage.state_file", local.DefaultStateFile)
	v.SetDefault("storage.sqlite_file", sqlite.DefaultFile)
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.records_table", postgres.DefaultRecordsTable)
	v.SetDefault("storage.postgres.state_table", postgres.DefaultStateTable)
	v.SetDefault("storage.postgres.max_conns", 4)
	v.SetDefault("storage.postgres.min_conns", 0)
	v.SetDefault("storage.postgres.max_conn_lifetime", time.Hour)
	v.SetDefault("cursor.backend", "")
	v.SetDefault("cursor.redis.addr", "")
	v.SetDefault("cursor.redis.password", "")
	v.SetDefault("cursor.redis.db", 0)
	v.SetDefault("cursor.redis.key", redis.DefaultKey)
	v.SetDefault("sink.language", zotero.DefaultLanguage)
	v.SetDefault("sink.archive", zotero.DefaultArchive)
	v.SetDefault("sink.skip_failed", false)
	v.SetDefault("sink.output", "documents.rdf")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("server.listen", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Crawl.BatchSize <= 0 {
		errs = append(errs, errors.New("crawl.batch_size must be > 0"))
	}
	if c.Crawl.TotalItems <= 0 {
		errs = append(errs, errors.New("crawl.total_items must be > 0"))
	}
	if c.Crawl.StartID < 1 {
		errs = append(errs, errors.New("crawl.start_id must be >= 1"))
	}
	if c.Crawl.RoundPause < 0 {
		errs = append(errs, errors.New("crawl.round_pause must be >= 0"))
	}
	if c.Crawl.MaxRounds < 0 {
		errs = append(errs, errors.New("crawl.max_rounds must be >= 0"))
	}
	if strings.Count(c.Fetcher.URLTemplate, "%d") != 1 {
		errs = append(errs, errors.New("fetcher.url_template must contain exactly one %d"))
	}
	if c.Fetcher.Delay < 0 {
		errs = append(errs, errors.New("fetcher.delay must be >= 0"))
	}
	if c.Fetcher.Timeout <= 0 {
		errs = append(errs, errors.New("fetcher.timeout must be > 0"))
	}
	if c.Fetcher.MaxAttempts <= 0 {
		errs = append(errs, errors.New("fetcher.max_attempts must be > 0"))
	}
	switch c.Storage.Backend {
	case storage.BackendFile, storage.BackendMemory, storage.BackendSQLite:
	case storage.BackendPostgres:
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, errors.New("storage.postgres.dsn must be set for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend))
	}
	if c.Cursor.Backend == storage.BackendRedis && c.Cursor.Redis.Addr == "" {
		errs = append(errs, errors.New("cursor.redis.addr must be set for the redis cursor backend"))
	}
	if c.Sink.Output == "" {
		errs = append(errs, errors.New("sink.output must be set"))
	}
	return errors.Join(errs...)
}
