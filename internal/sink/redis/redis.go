// Package redissink caches the latest batch of each category in Redis so
// dashboards can read samples without touching the durable sinks.
package redissink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/sink"
)

const (
	defaultPrefix = "scraper"
	defaultTTL    = 24 * time.Hour
)

// Config holds connection settings for the cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

type client interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Sink overwrites `<prefix>:<category>` with every stored batch.
type Sink struct {
	client client
	prefix string
	ttl    time.Duration
}

var (
	_ scrape.Sink         = (*Sink)(nil)
	_ scrape.SampleReader = (*Sink)(nil)
)

// New dials Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Addr == "" {
		return nil, errors.New("sink.redis.addr is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newSink(rdb, cfg.Prefix, cfg.TTL), nil
}

func newSink(c client, prefix string, ttl time.Duration) *Sink {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Sink{client: c, prefix: prefix, ttl: ttl}
}

// Key returns the cache key for category.
func (s *Sink) Key(category string) string {
	return s.prefix + ":" + category
}

// Store implements scrape.Sink.
func (s *Sink) Store(ctx context.Context, category string, records []scrape.Record) error {
	if category == "" {
		return errors.New("category is required")
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	if err := s.client.Set(ctx, s.Key(category), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.Key(category), err)
	}
	return nil
}

// Latest implements scrape.SampleReader. A missing or expired key yields no
// records.
func (s *Sink) Latest(ctx context.Context, category string, limit int) ([]scrape.Record, error) {
	data, err := s.client.Get(ctx, s.Key(category)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.Key(category), err)
	}
	var records []scrape.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Key(category), err)
	}
	return sink.Head(records, limit), nil
}

// Ping checks connectivity for readiness checks.
func (s *Sink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Sink) Close() error {
	return s.client.Close()
}
