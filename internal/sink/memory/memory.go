// Package memory keeps stored batches in process memory for tests and dry
// runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/sink"
)

// Batch is one stored batch.
type Batch struct {
	Category string
	Records  []scrape.Record
}

// Sink records every batch. It also serves samples from the latest batch of
// each category.
type Sink struct {
	mu      sync.RWMutex
	batches []Batch
	err     error
}

var (
	_ scrape.Sink         = (*Sink)(nil)
	_ scrape.SampleReader = (*Sink)(nil)
)

// New returns an empty Sink.
func New() *Sink {
	return &Sink{}
}

// FailWith makes later Store calls return err (nil restores success).
func (s *Sink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Store implements scrape.Sink.
func (s *Sink) Store(ctx context.Context, category string, records []scrape.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := make([]scrape.Record, len(records))
	for i, rec := range records {
		cp[i] = rec.Clone()
	}
	s.batches = append(s.batches, Batch{Category: category, Records: cp})
	return nil
}

// Latest implements scrape.SampleReader.
func (s *Sink) Latest(_ context.Context, category string, limit int) ([]scrape.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.batches) - 1; i >= 0; i-- {
		if s.batches[i].Category == category {
			return append([]scrape.Record(nil), sink.Head(s.batches[i].Records, limit)...), nil
		}
	}
	return nil, nil
}

// Batches returns a copy of the stored batches in order.
func (s *Sink) Batches() []Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Batch(nil), s.batches...)
}
