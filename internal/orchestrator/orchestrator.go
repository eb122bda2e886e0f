// Package orchestrator runs a set of named sources concurrently under a
// concurrency cap. Every invocation is isolated: a failing or panicking
// source is captured in its own RunResult and never affects its siblings.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/clock/system"
	"github.com/JakeFAU/multisource-scraper/internal/events"
	"github.com/JakeFAU/multisource-scraper/internal/id/uuid"
	"github.com/JakeFAU/multisource-scraper/internal/metrics"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

// Config bounds a run.
type Config struct {
	// MaxConcurrent is the number of sources allowed in flight at once.
	MaxConcurrent int
	// RunTimeout, when positive, is a deadline applied to every invocation.
	RunTimeout time.Duration
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithEmitter sends lifecycle events to e.
func WithEmitter(e events.Emitter) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.emitter = e
		}
	}
}

// WithClock replaces the system clock.
func WithClock(c scrape.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithIDs replaces the UUIDv7 generator used for runs started without a
// run ID in their context.
func WithIDs(ids scrape.IDGenerator) Option {
	return func(o *Orchestrator) {
		if ids != nil {
			o.ids = ids
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// Orchestrator fans sources out. It holds no per-run state and is safe for
// concurrent runs; each run gets its own semaphore.
type Orchestrator struct {
	cfg     Config
	emitter events.Emitter
	clock   scrape.Clock
	ids     scrape.IDGenerator
	logger  *zap.Logger
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	if cfg.MaxConcurrent <= 0 {
		return nil, fmt.Errorf("max concurrent must be > 0, got %d", cfg.MaxConcurrent)
	}
	if cfg.RunTimeout < 0 {
		return nil, fmt.Errorf("run timeout must be >= 0, got %s", cfg.RunTimeout)
	}
	o := &Orchestrator{
		cfg:     cfg,
		emitter: events.Discard,
		clock:   system.New(),
		ids:     uuid.New(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("orchestrator")
	return o, nil
}

type runIDKey struct{}

// WithRunID tags ctx with the run identifier used in lifecycle events.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run identifier set by WithRunID.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Run invokes every source with its parameters and waits for all of them.
// The result holds exactly one entry per source name.
func (o *Orchestrator) Run(
	ctx context.Context,
	sources map[string]scrape.Source,
	params map[string]scrape.Params,
) map[string]scrape.RunResult {
	runID := RunIDFromContext(ctx)
	if runID == "" {
		id, err := o.ids.NewID()
		if err != nil {
			id = fmt.Sprintf("run-%d", o.clock.Now().UnixNano())
			o.logger.Warn("run id generation failed, using clock id", zap.String("run_id", id), zap.Error(err))
		}
		runID = id
		ctx = WithRunID(ctx, runID)
	}
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	start := o.clock.Now()
	o.emit(events.Event{RunID: runID, Stage: events.StageRunStart, Records: 0})
	o.logger.Info("run started", zap.String("run_id", runID), zap.Int("sources", len(sources)))

	var (
		mu      sync.Mutex
		results = make(map[string]scrape.RunResult, len(sources))
		wg      sync.WaitGroup
		slots   = make(chan struct{}, o.cfg.MaxConcurrent)
	)
	for name, src := range sources {
		p := params[name].Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := o.dispatch(ctx, slots, runID, name, src, p)
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	total := 0
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		total += len(res.Records)
	}
	dur := o.clock.Now().Sub(start)
	o.emit(events.Event{
		RunID: runID, Stage: events.StageRunDone, Records: total, Dur: nonNegative(dur),
		Note: fmt.Sprintf("%d of %d sources failed", failed, len(results)),
	})
	o.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.Int("records", total),
		zap.Int("failed", failed),
		zap.Duration("dur", dur))
	return results
}

// dispatch waits for a slot and then invokes the source.
func (o *Orchestrator) dispatch(
	ctx context.Context,
	slots chan struct{},
	runID, name string,
	src scrape.Source,
	params scrape.Params,
) scrape.RunResult {
	select {
	case slots <- struct{}{}:
	case <-ctx.Done():
		err := &scrape.SourceError{Source: name, Err: fmt.Errorf("wait for slot: %w", ctx.Err())}
		o.finish(runID, name, scrape.RunResult{Source: name, Err: err}, 0)
		return scrape.RunResult{Source: name, Err: err}
	}
	metrics.IncActiveSources()
	defer func() {
		<-slots
		metrics.DecActiveSources()
	}()

	o.emit(events.Event{RunID: runID, Stage: events.StageSourceStart, Source: name})
	start := o.clock.Now()
	res := o.invoke(ctx, name, src, params)
	o.finish(runID, name, res, o.clock.Now().Sub(start))
	return res
}

// invoke runs one source with lifecycle management and panic capture.
func (o *Orchestrator) invoke(ctx context.Context, name string, src scrape.Source, params scrape.Params) (res scrape.RunResult) {
	res.Source = name
	ctx, span := otel.Tracer("github.com/JakeFAU/multisource-scraper/internal/orchestrator").Start(ctx, "source.scrape")
	span.SetAttributes(attribute.String("source.name", name))
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("source panicked", zap.String("source", name), zap.Any("panic", r))
			res = scrape.RunResult{Source: name, Err: &scrape.SourceError{Source: name, Err: fmt.Errorf("panic: %v", r)}}
		}
		if res.Err != nil {
			span.SetStatus(codes.Error, res.Err.Error())
			span.RecordError(res.Err)
		} else {
			span.SetAttributes(attribute.Int("source.records", len(res.Records)))
		}
		span.End()
	}()

	if src == nil {
		res.Err = &scrape.SourceError{Source: name, Err: errors.New("source is nil")}
		return res
	}
	if lc, ok := src.(scrape.Lifecycle); ok {
		scoped, err := lc.Acquire(ctx)
		if err != nil {
			res.Err = &scrape.SourceError{Source: name, Err: fmt.Errorf("acquire: %w", err)}
			return res
		}
		ctx = scoped
		defer func() {
			if err := lc.Release(context.WithoutCancel(ctx)); err != nil {
				o.logger.Warn("source release failed", zap.String("source", name), zap.Error(err))
			}
		}()
	}

	records, err := src.Scrape(ctx, params)
	if err != nil {
		var srcErr *scrape.SourceError
		if !errors.As(err, &srcErr) {
			err = &scrape.SourceError{Source: name, Err: err}
		}
		res.Err = err
		return res
	}
	res.Records = o.validRecords(name, records)
	return res
}

// validRecords drops records missing their provenance fields.
func (o *Orchestrator) validRecords(name string, records []scrape.Record) []scrape.Record {
	out := make([]scrape.Record, 0, len(records))
	for _, rec := range records {
		if !rec.Valid() {
			o.logger.Warn("dropping record without provenance", zap.String("source", name))
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (o *Orchestrator) finish(runID, name string, res scrape.RunResult, dur time.Duration) {
	dur = nonNegative(dur)
	if res.Err != nil {
		metrics.ObserveSource(name, scrape.ErrorKind(res.Err), 0, dur)
		o.logger.Warn("source failed", zap.String("source", name), zap.Error(res.Err))
		o.emit(events.Event{RunID: runID, Stage: events.StageSourceError, Source: name, Dur: dur, Note: res.Err.Error()})
		return
	}
	metrics.ObserveSource(name, "ok", len(res.Records), dur)
	o.emit(events.Event{RunID: runID, Stage: events.StageSourceDone, Source: name, Records: len(res.Records), Dur: dur})
}

func (o *Orchestrator) emit(evt events.Event) {
	if evt.TS.IsZero() {
		evt.TS = o.clock.Now().UTC()
	}
	o.emitter.Emit(evt)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
