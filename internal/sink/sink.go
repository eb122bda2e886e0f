// Package sink fans record batches out to storage backends. Backends live in
// subpackages; all implement scrape.Sink.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/multisource-scraper/internal/metrics"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

// StampLayout formats batch timestamps in object and file names.
const StampLayout = "20060102_150405"

// Named is a sink with a label for metrics and logs.
type Named struct {
	Name string
	Sink scrape.Sink
}

// Multi stores every batch in each sink in order. All sinks are tried; the
// first error is returned with the others joined behind it.
type Multi struct {
	sinks []Named
}

var _ scrape.Sink = (*Multi)(nil)

// NewMulti returns a Multi over sinks, skipping nil entries.
func NewMulti(sinks ...Named) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s.Sink != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of wrapped sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Store implements scrape.Sink.
func (m *Multi) Store(ctx context.Context, category string, records []scrape.Record) error {
	var errs []error
	for _, s := range m.sinks {
		err := s.Sink.Store(ctx, category, records)
		metrics.ObserveSinkWrite(s.Name, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Stamp formats at for names.
func Stamp(at time.Time) string {
	return at.UTC().Format(StampLayout)
}

// Head returns at most n records from the front of records.
func Head(records []scrape.Record, n int) []scrape.Record {
	if n <= 0 || n >= len(records) {
		return records
	}
	return records[:n]
}
