// Package manager is the trigger surface of the scraper: full runs over the
// category registry, single-category convenience runs, job search and the
// dashboard views over run history and stored samples.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/clock/system"
	"github.com/JakeFAU/multisource-scraper/internal/history"
	"github.com/JakeFAU/multisource-scraper/internal/id/uuid"
	"github.com/JakeFAU/multisource-scraper/internal/metrics"
	"github.com/JakeFAU/multisource-scraper/internal/normalize"
	"github.com/JakeFAU/multisource-scraper/internal/orchestrator"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

// DefaultSampleLimit is the number of records per category in samples.
const DefaultSampleLimit = 5

const defaultJobLocation = "South Africa"

// Runner fans sources out; *orchestrator.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, sources map[string]scrape.Source, params map[string]scrape.Params) map[string]scrape.RunResult
}

// Deps are the collaborators of a Manager. Sources and Runner are required.
type Deps struct {
	Sources Registry
	Runner  Runner
	// Sink receives every non-empty normalized batch. Nil discards.
	Sink scrape.Sink
	// Samples serves dashboard samples. Nil disables them.
	Samples scrape.SampleReader
	History *history.History
	Clock   scrape.Clock
	IDs     scrape.IDGenerator
	// Targets replaces DefaultTargets for RunOnce and empty runs.
	Targets map[string]scrape.Params
	Logger  *zap.Logger
}

// Manager coordinates runs. It is safe for concurrent use.
type Manager struct {
	sources Registry
	runner  Runner
	sink    scrape.Sink
	samples scrape.SampleReader
	history *history.History
	clock   scrape.Clock
	ids     scrape.IDGenerator
	targets map[string]scrape.Params
	ranker  *normalize.Ranker
	logger  *zap.Logger
}

// Report is the outcome of one run.
type Report struct {
	RunID     string                      `json:"run_id"`
	Timestamp time.Time                   `json:"timestamp"`
	Results   map[string]scrape.RunResult `json:"results"`
	Summary   scrape.RunSummary           `json:"summary"`
}

// WebsiteRequest describes an ad-hoc selector extraction.
type WebsiteRequest struct {
	URL       string            `json:"url"`
	Selectors map[string]string `json:"selectors"`
	Render    bool              `json:"render"`
	// AutoRender renders only pages that look like client-side app shells.
	AutoRender bool   `json:"auto_render"`
	WaitFor    string `json:"wait_for"`
}

// Dashboard is the combined dashboard view.
type Dashboard struct {
	Stats         *history.Stats             `json:"stats"`
	RecentData    map[string][]scrape.Record `json:"recent_data"`
	ActiveSources []string                   `json:"active_scrapers"`
	SystemStatus  string                     `json:"system_status"`
}

// New validates deps and returns a Manager.
func New(deps Deps) (*Manager, error) {
	if len(deps.Sources) == 0 {
		return nil, errors.New("manager needs at least one source")
	}
	if deps.Runner == nil {
		return nil, errors.New("manager runner is required")
	}
	m := &Manager{
		sources: deps.Sources,
		runner:  deps.Runner,
		sink:    deps.Sink,
		samples: deps.Samples,
		history: deps.History,
		clock:   deps.Clock,
		ids:     deps.IDs,
		targets: deps.Targets,
		logger:  deps.Logger,
	}
	if m.history == nil {
		m.history = history.New(history.DefaultCapacity)
	}
	if m.clock == nil {
		m.clock = system.New()
	}
	if m.ids == nil {
		m.ids = uuid.New()
	}
	if len(m.targets) == 0 {
		m.targets = DefaultTargets()
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.Named("manager")
	m.ranker = normalize.NewRanker(m.clock)
	return m, nil
}

// Categories returns the registered category names, sorted.
func (m *Manager) Categories() []string { return m.sources.Names() }

// Run scrapes targets, normalizes and stores each successful batch and
// records the run in history. Unknown categories get an error entry and the
// run continues. Sink failures are returned as a *scrape.RunError next to a
// complete report.
func (m *Manager) Run(ctx context.Context, targets map[string]scrape.Params) (Report, error) {
	if len(targets) == 0 {
		targets = m.targets
	}
	runID, err := m.ids.NewID()
	if err != nil {
		return Report{}, &scrape.RunError{Op: "id", Err: err}
	}
	start := m.clock.Now()
	logger := m.logger.With(zap.String("run_id", runID))

	selected := make(map[string]scrape.Source, len(targets))
	unknown := map[string]scrape.RunResult{}
	for name := range targets {
		src, ok := m.sources[name]
		if !ok {
			logger.Warn("unknown category", zap.String("category", name))
			unknown[name] = scrape.RunResult{
				Source: name,
				Err:    &scrape.SourceError{Source: name, Err: scrape.ErrUnknownCategory},
			}
			continue
		}
		selected[name] = src
	}

	results := m.runner.Run(orchestrator.WithRunID(ctx, runID), selected, targets)
	for name, res := range unknown {
		results[name] = res
	}
	storeErr := m.store(ctx, results)

	report := Report{
		RunID:     runID,
		Timestamp: start.UTC(),
		Results:   results,
		Summary:   scrape.Summarize(runID, start, results),
	}
	report.Summary.Duration = m.clock.Now().Sub(start)
	m.history.Append(report.Summary)

	status := "ok"
	if storeErr != nil {
		status = "error"
	}
	metrics.ObserveRun(status, report.Summary.Duration)
	logger.Info("run recorded",
		zap.Int("categories", len(results)),
		zap.Int("total_items", report.Summary.TotalItems),
		zap.Strings("failed", report.Summary.Failed))
	if storeErr != nil {
		return report, &scrape.RunError{Op: "store", Err: storeErr}
	}
	return report, nil
}

// store normalizes each successful result in place and hands non-empty
// batches to the sink, in category order. Every batch is attempted.
func (m *Manager) store(ctx context.Context, results map[string]scrape.RunResult) error {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		res := results[name]
		if res.Err != nil {
			continue
		}
		res.Records = normalize.NormalizeAll(res.Records)
		results[name] = res
		if m.sink == nil || len(res.Records) == 0 {
			continue
		}
		if err := m.sink.Store(ctx, name, res.Records); err != nil {
			m.logger.Error("store batch failed", zap.String("category", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("store %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// RunOnce runs the default targets. It satisfies scheduler.Runner.
func (m *Manager) RunOnce(ctx context.Context) error {
	_, err := m.Run(ctx, nil)
	return err
}

// SearchJobs searches every job board for query and its individual words
// and returns the merged records ranked against query.
func (m *Manager) SearchJobs(ctx context.Context, query, location string) ([]scrape.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is required")
	}
	if strings.TrimSpace(location) == "" {
		location = defaultJobLocation
	}
	records, err := m.runCategory(ctx, CategoryJobs, scrape.Params{
		"keywords": searchKeywords(query),
		"location": location,
	})
	if err != nil {
		return nil, err
	}
	return m.ranker.Rank(records, query), nil
}

func searchKeywords(query string) []string {
	out := []string{query}
	for _, word := range strings.Fields(query) {
		if !strings.EqualFold(word, query) {
			out = append(out, word)
		}
	}
	return out
}

// Markets scrapes the financial category for markets (all when empty).
func (m *Manager) Markets(ctx context.Context, markets []string) ([]scrape.Record, error) {
	return m.runCategory(ctx, CategoryFinancial, scrape.Params{"markets": markets})
}

// Odds scrapes the odds category for sports (soccer and rugby when empty).
func (m *Manager) Odds(ctx context.Context, sports []string) ([]scrape.Record, error) {
	if len(sports) == 0 {
		sports = []string{"soccer", "rugby"}
	}
	return m.runCategory(ctx, CategoryOdds, scrape.Params{"sports": sports})
}

// Website extracts req.Selectors from req.URL.
func (m *Manager) Website(ctx context.Context, req WebsiteRequest) ([]scrape.Record, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, errors.New("url is required")
	}
	params := scrape.Params{
		"urls":      []string{req.URL},
		"selectors": req.Selectors,
		"render":    req.Render,
	}
	if req.AutoRender {
		params["auto_render"] = true
	}
	if req.WaitFor != "" {
		params["wait_for"] = req.WaitFor
	}
	return m.runCategory(ctx, CategoryWeb, params)
}

// runCategory runs one category through the runner without touching the
// sink or history, and returns its normalized records.
func (m *Manager) runCategory(ctx context.Context, name string, params scrape.Params) ([]scrape.Record, error) {
	src, ok := m.sources[name]
	if !ok {
		return nil, &scrape.SourceError{Source: name, Err: scrape.ErrUnknownCategory}
	}
	runID, err := m.ids.NewID()
	if err != nil {
		return nil, &scrape.RunError{Op: "id", Err: err}
	}
	results := m.runner.Run(orchestrator.WithRunID(ctx, runID),
		map[string]scrape.Source{name: src},
		map[string]scrape.Params{name: params})
	res, ok := results[name]
	if !ok {
		return nil, &scrape.RunError{Op: "run " + name, Err: errors.New("no result")}
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return normalize.NormalizeAll(res.Records), nil
}

// Stats returns the latest-run statistics.
func (m *Manager) Stats() (history.Stats, bool) {
	return m.history.Stats()
}

// History returns a snapshot of recorded runs, oldest first.
func (m *Manager) History() []scrape.RunSummary {
	return m.history.Entries()
}

// Samples returns up to limit of the latest stored records per category.
// Categories whose samples cannot be read are logged and omitted.
func (m *Manager) Samples(ctx context.Context, limit int) (map[string][]scrape.Record, error) {
	if m.samples == nil {
		return nil, errors.New("samples are not configured")
	}
	if limit <= 0 {
		limit = DefaultSampleLimit
	}
	out := map[string][]scrape.Record{}
	for _, name := range m.Categories() {
		records, err := m.samples.Latest(ctx, name, limit)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("read samples: %w", ctxErr)
			}
			m.logger.Warn("read samples failed", zap.String("category", name), zap.Error(err))
			continue
		}
		if len(records) > 0 {
			out[name] = records
		}
	}
	return out, nil
}

// Dashboard combines stats, samples and the registered categories.
func (m *Manager) Dashboard(ctx context.Context) (Dashboard, error) {
	d := Dashboard{ActiveSources: m.Categories(), SystemStatus: "active", RecentData: map[string][]scrape.Record{}}
	if stats, ok := m.Stats(); ok {
		d.Stats = &stats
	}
	if m.samples == nil {
		return d, nil
	}
	samples, err := m.Samples(ctx, DefaultSampleLimit)
	if err != nil {
		return Dashboard{}, err
	}
	d.RecentData = samples
	return d, nil
}
