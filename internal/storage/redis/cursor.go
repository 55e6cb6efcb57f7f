// Package redis stores the crawl cursor as one JSON value under a Redis key.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
)

// DefaultKey is the key holding the cursor JSON.
const DefaultKey = "harvester:state"

// Config controls the Redis connection.
type Config struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// CursorStore implements crawler.CursorStore with a single SET per save,
// which Redis applies atomically.
type CursorStore struct {
	client client
	key    string
}

var _ crawler.CursorStore = (*CursorStore)(nil)

// New connects to the Redis server in cfg.
func New(cfg Config) (*CursorStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("cursor.redis.addr is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(rdb, cfg.Key)
}

// NewWithClient constructs a store from an existing client (primarily for
// testing).
func NewWithClient(c client, key string) (*CursorStore, error) {
	if c == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	return &CursorStore{client: c, key: key}, nil
}

// Load returns the stored cursor or crawler.ErrStateNotFound.
func (s *CursorStore) Load(ctx context.Context) (crawler.CrawlState, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return crawler.CrawlState{}, crawler.ErrStateNotFound
	}
	if err != nil {
		return crawler.CrawlState{}, fmt.Errorf("get %s: %w", s.key, err)
	}
	var state crawler.CrawlState
	if err := json.Unmarshal(raw, &state); err != nil {
		return crawler.CrawlState{}, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return state, nil
}

// Save replaces the stored cursor. The key never expires.
func (s *CursorStore) Save(ctx context.Context, state crawler.CrawlState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}

// Close releases the client connection.
func (s *CursorStore) Close() error {
	return s.client.Close()
}
