// Package postgres stores one row per record in a Postgres table:
//
//	CREATE TABLE scraped_records (
//		run_category text        NOT NULL,
//		source       text        NOT NULL,
//		scraped_at   timestamptz NOT NULL,
//		payload      jsonb       NOT NULL
//	);
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

const defaultTable = "scraped_records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var columns = []string{"run_category", "source", "scraped_at", "payload"}

// Config controls the connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, rows pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// Sink bulk-inserts batches with COPY.
type Sink struct {
	pool  copier
	table string
}

var _ scrape.Sink = (*Sink)(nil)

// New connects a pool for cfg.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, errors.New("sink.postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
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
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Sink{pool: pool, table: table}, nil
}

// NewWithPool builds a sink over an existing pool (tests pass pgxmock).
func NewWithPool(pool copier, table string) (*Sink, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Sink{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Store implements scrape.Sink. Empty batches are a no-op.
func (s *Sink) Store(ctx context.Context, category string, records []scrape.Record) error {
	if s == nil || s.pool == nil {
		return errors.New("postgres sink is not configured")
	}
	if len(records) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(records))
	for i, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %d: %w", i, err)
		}
		rows = append(rows, []any{category, rec.Source(), rec.ScrapedAt(), payload})
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{s.table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy records: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copy records: wrote %d of %d rows", n, len(rows))
	}
	return nil
}

// Ping checks connectivity for readiness checks.
func (s *Sink) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Sink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
