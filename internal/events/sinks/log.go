package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/events"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("events")}
}

// Consume logs each event. Source failures log at warn level.
func (s *LogSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.Time("ts", evt.TS),
		}
		if evt.Source != "" {
			fields = append(fields, zap.String("source", evt.Source))
		}
		if evt.Terminal() {
			fields = append(fields, zap.Int("records", evt.Records), zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		if evt.Stage == events.StageSourceError {
			s.logger.Warn("run event", fields...)
			continue
		}
		s.logger.Info("run event", fields...)
	}
	return nil
}

// Close implements events.Sink; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
