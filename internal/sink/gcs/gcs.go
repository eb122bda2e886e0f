// Package gcs stores batches as JSON objects in a Google Cloud Storage
// bucket under <prefix>/<category>/<YYYYMMDD_HHMMSS>.json.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/JakeFAU/multisource-scraper/internal/clock/system"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/sink"
)

const contentType = "application/json"

// Config captures the bucket layout.
type Config struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// Sink writes batches to a bucket.
type Sink struct {
	client *storage.Client
	bucket string
	prefix string
	clock  scrape.Clock
}

var (
	_ scrape.Sink         = (*Sink)(nil)
	_ scrape.SampleReader = (*Sink)(nil)
)

// New creates a bucket-backed sink. A nil clock uses the system clock.
func New(client *storage.Client, cfg Config, clock scrape.Clock) (*Sink, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("sink.gcs.bucket is required")
	}
	if clock == nil {
		clock = system.New()
	}
	return &Sink{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		clock:  clock,
	}, nil
}

// ObjectName returns the object path for a batch of category stored at
// stamp.
func (s *Sink) ObjectName(category, stamp string) string {
	return path.Join(s.prefix, category, stamp+".json")
}

// Store implements scrape.Sink.
func (s *Sink) Store(ctx context.Context, category string, records []scrape.Record) error {
	if strings.TrimSpace(category) == "" || strings.Contains(category, "/") {
		return fmt.Errorf("invalid category %q", category)
	}
	if records == nil {
		records = []scrape.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	name := s.ObjectName(category, sink.Stamp(s.clock.Now()))
	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Latest implements scrape.SampleReader by reading the newest object under
// the category prefix.
func (s *Sink) Latest(ctx context.Context, category string, limit int) ([]scrape.Record, error) {
	bucket := s.client.Bucket(s.bucket)
	it := bucket.Objects(ctx, &storage.Query{Prefix: path.Join(s.prefix, category) + "/"})
	var newest string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		if strings.HasSuffix(attrs.Name, ".json") && attrs.Name > newest {
			newest = attrs.Name
		}
	}
	if newest == "" {
		return nil, nil
	}
	reader, err := bucket.Object(newest).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", newest, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", newest, err)
	}
	var records []scrape.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode object %s: %w", newest, err)
	}
	return sink.Head(records, limit), nil
}
