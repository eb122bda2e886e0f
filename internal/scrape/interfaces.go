package scrape

import (
	"context"
	"time"
)

// Source produces a batch of records for a set of parameters.
type Source interface {
	Name() string
	Scrape(ctx context.Context, params Params) ([]Record, error)
}

// Lifecycle is implemented by sources that hold resources (sessions, browser
// tabs) for the duration of one invocation. Acquire returns the context that
// carries those resources; Scrape and Release receive it. Release is always
// called after a successful Acquire, whether Scrape failed or not.
type Lifecycle interface {
	Acquire(ctx context.Context) (context.Context, error)
	Release(ctx context.Context) error
}

// Sink accepts one category's batch of records.
type Sink interface {
	Store(ctx context.Context, category string, records []Record) error
}

// SampleReader returns the latest stored records of a category.
type SampleReader interface {
	Latest(ctx context.Context, category string, limit int) ([]Record, error)
}

// Publisher pushes notifications (run summaries) to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
