package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/multisource-scraper/internal/events"
)

// PrometheusSink derives run and source collectors from the event stream.
type PrometheusSink struct {
	runsStarted    prometheus.Counter
	runsCompleted  prometheus.Counter
	runsInFlight   prometheus.Gauge
	runRecords     prometheus.Histogram
	sourceOutcomes *prometheus.CounterVec
	sourceRuntime  *prometheus.HistogramVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against reg (the default
// registerer when nil).
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_event_runs_started_total",
			Help: "Runs that emitted a start event.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_event_runs_completed_total",
			Help: "Runs that emitted a done event.",
		}),
		runsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_event_runs_in_flight",
			Help: "Runs started but not yet done.",
		}),
		runRecords: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_event_run_records",
			Help:    "Records produced per run.",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 1000, 5000},
		}),
		sourceOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_event_source_outcomes_total",
			Help: "Finished source invocations partitioned by source and result.",
		}, []string{"source", "result"}),
		sourceRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_event_source_runtime_seconds",
			Help:    "Wall time per finished source invocation.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"source"}),
		tracker: &runTracker{running: map[string]struct{}{}},
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsInFlight,
		s.runRecords,
		s.sourceOutcomes,
		s.sourceRuntime,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register event collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt events.Event) {
	switch evt.Stage {
	case events.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsInFlight.Inc()
		}
	case events.StageRunDone:
		s.runsCompleted.Inc()
		s.runRecords.Observe(float64(evt.Records))
		if s.tracker.complete(evt.RunID) {
			s.runsInFlight.Dec()
		}
	case events.StageSourceDone:
		s.observeSource(evt, "success")
	case events.StageSourceError:
		s.observeSource(evt, "error")
	}
}

func (s *PrometheusSink) observeSource(evt events.Event, result string) {
	s.sourceOutcomes.WithLabelValues(evt.Source, result).Inc()
	if evt.Dur > 0 {
		s.sourceRuntime.WithLabelValues(evt.Source).Observe(evt.Dur.Seconds())
	}
}

// Close implements events.Sink; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func (t *runTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
