// Package web extracts fields from arbitrary pages with CSS selectors.
//
// Params:
//
//	urls         []string           pages to visit
//	selectors    map[string]string  field name to CSS selector
//	render       bool               load pages in the headless renderer
//	auto_render  bool               render only pages that look like app shells
//	wait_for     string             selector to wait for when rendering
//	wait_ms      int                bound on the wait, in milliseconds
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/fetcher"
	"github.com/JakeFAU/multisource-scraper/internal/headless/detector"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

// FieldSourceURL records the page a web record was extracted from.
const FieldSourceURL = "source_url"

// ErrNoSelectors is returned when a run names no selectors.
var ErrNoSelectors = errors.New("no selectors given")

// Selector scrapes one record per page.
type Selector struct {
	source.Base
	detector *detector.Heuristic
}

// New creates the web source.
func New(deps source.Deps) *Selector {
	return &Selector{
		Base:     source.NewBase("web", deps),
		detector: detector.NewHeuristic(detector.DefaultMinTextBytes),
	}
}

// Scrape implements scrape.Source.
func (s *Selector) Scrape(ctx context.Context, params scrape.Params) ([]scrape.Record, error) {
	urls := params.Strings("urls")
	if len(urls) == 0 {
		return []scrape.Record{}, nil
	}
	selectors := params.StringMap("selectors")
	if len(selectors) == 0 {
		return nil, &scrape.SourceError{Source: s.Name(), Err: ErrNoSelectors}
	}
	mode := loadStatic
	switch {
	case params.Bool("render", false):
		mode = loadRendered
	case params.Bool("auto_render", false):
		mode = loadAuto
	}
	opts := fetcher.RenderOptions{
		WaitFor: params.String("wait_for"),
		Timeout: time.Duration(params.Int("wait_ms", 0)) * time.Millisecond,
	}

	batch := source.NewBatch(s.Name())
	for _, target := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := s.load(ctx, target, mode, opts)
		if err != nil {
			s.Logger().Warn("page skipped", zap.String("url", target), zap.Error(err))
			batch.Fail(err)
			continue
		}
		batch.Add(s.Extract(doc, target, selectors))
	}
	return batch.Result()
}

type loadMode int

const (
	loadStatic loadMode = iota
	loadRendered
	loadAuto
)

func (s *Selector) load(ctx context.Context, target string, mode loadMode, opts fetcher.RenderOptions) (*goquery.Document, error) {
	if mode == loadRendered {
		return s.Render(ctx, target, opts)
	}
	body, err := s.Get(ctx, target, nil)
	switch {
	case mode == loadAuto && errors.Is(err, scrape.ErrEmptyBody):
		return s.Render(ctx, target, opts)
	case err != nil:
		return nil, err
	}
	if mode == loadAuto && s.detector.NeedsRender(body) {
		doc, err := s.Render(ctx, target, opts)
		if err == nil {
			return doc, nil
		}
		s.Logger().Warn("render failed, using static page", zap.String("url", target), zap.Error(err))
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Extract applies selectors to doc. Fields are set in name order: a single
// match becomes a string, several become a []string, and no match (or an
// invalid selector) omits the field.
func (s *Selector) Extract(doc *goquery.Document, pageURL string, selectors map[string]string) scrape.Record {
	rec := s.NewRecord()
	names := make([]string, 0, len(selectors))
	for name := range selectors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values, err := selectAll(doc, selectors[name])
		if err != nil {
			s.Logger().Warn("selector failed", zap.String("field", name), zap.Error(err))
			continue
		}
		switch len(values) {
		case 0:
		case 1:
			rec.Set(name, values[0])
		default:
			rec.Set(name, values)
		}
	}
	rec.Set(FieldSourceURL, pageURL)
	return rec
}

// selectAll returns the trimmed text of every match.
func selectAll(doc *goquery.Document, selector string) ([]string, error) {
	if _, err := cascadia.Compile(selector); err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	var values []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		values = append(values, strings.TrimSpace(sel.Text()))
	})
	return values, nil
}
