package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/multisource-scraper/internal/events"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

// PublisherSink forwards run_done events to a topic so downstream consumers
// learn when fresh data has landed.
type PublisherSink struct {
	publisher scrape.Publisher
	topic     string
}

// NewPublisherSink returns a sink publishing to topic.
func NewPublisherSink(publisher scrape.Publisher, topic string) (*PublisherSink, error) {
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	return &PublisherSink{publisher: publisher, topic: topic}, nil
}

// Consume publishes every run_done event in batch. All events are attempted;
// the errors are joined.
func (s *PublisherSink) Consume(ctx context.Context, batch []events.Event) error {
	var errs []error
	for _, evt := range batch {
		if evt.Stage != events.StageRunDone {
			continue
		}
		if _, err := s.publisher.Publish(ctx, s.topic, evt); err != nil {
			errs = append(errs, fmt.Errorf("publish run %s: %w", evt.RunID, err))
		}
	}
	return errors.Join(errs...)
}

// Close implements events.Sink; the publisher is owned by the caller.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
