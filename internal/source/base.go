// Package source holds the pieces shared by every concrete source: the Base
// helper that paces and performs fetches, extraction helpers, and Group, which
// fans one category out over several sites.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/clock/system"
	"github.com/JakeFAU/multisource-scraper/internal/fetcher"
	"github.com/JakeFAU/multisource-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/multisource-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

const tracerName = "github.com/JakeFAU/multisource-scraper/internal/source"

// Fetcher performs one logical (retrying) fetch. *fetcher.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) (fetcher.Response, error)
}

// Deps are the collaborators shared by sources.
type Deps struct {
	// Pages fetches HTML pages.
	Pages Fetcher
	// API fetches JSON endpoints. Defaults to Pages.
	API Fetcher
	// Renderer serves rendered fetches. Defaults to headless.Noop.
	Renderer fetcher.Renderer
	Config   scrape.FetchConfig
	Clock    scrape.Clock
	Logger   *zap.Logger
}

// Base implements the plumbing common to all sources. Embed it and implement
// Scrape.
type Base struct {
	name     string
	pages    Fetcher
	api      Fetcher
	renderer fetcher.Renderer
	cfg      scrape.FetchConfig
	clock    scrape.Clock
	logger   *zap.Logger
	pacer    *ratelimit.Pacer
}

// NewBase wires deps for the source called name. Each Base owns a pacer so
// consecutive requests of one instance are spaced by the configured request
// delay.
func NewBase(name string, deps Deps) Base {
	return newBase(name, deps, deps.Config.RequestDelay())
}

// NewBaseWithDelay is NewBase with an explicit request spacing.
func NewBaseWithDelay(name string, deps Deps, delay time.Duration) Base {
	return newBase(name, deps, delay)
}

func newBase(name string, deps Deps, delay time.Duration) Base {
	if deps.API == nil {
		deps.API = deps.Pages
	}
	if deps.Renderer == nil {
		deps.Renderer = headless.NewNoop()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config.PoolSize() == 0 {
		deps.Config = scrape.DefaultFetchConfig()
	}
	return Base{
		name:     name,
		pages:    deps.Pages,
		api:      deps.API,
		renderer: deps.Renderer,
		cfg:      deps.Config,
		clock:    deps.Clock,
		logger:   deps.Logger.Named(name),
		pacer:    ratelimit.New(ratelimit.Config{Name: name, Interval: delay}),
	}
}

// Acquire opens a fresh cookie session for one invocation. Fetches made
// with the returned context share that session and nothing else does.
func (b Base) Acquire(ctx context.Context) (context.Context, error) {
	return fetcher.WithSession(ctx, fetcher.NewSession()), nil
}

// Release closes the invocation's session.
func (b Base) Release(ctx context.Context) error {
	if sess := fetcher.SessionFromContext(ctx); sess != nil {
		sess.Close()
	}
	return nil
}

// Name returns the source name.
func (b Base) Name() string { return b.name }

// Logger returns the source's named logger.
func (b Base) Logger() *zap.Logger { return b.logger }

// Now returns the current UTC time from the injected clock.
func (b Base) Now() time.Time { return b.clock.Now().UTC() }

// NewRecord returns a record stamped with this source and the current time.
func (b Base) NewRecord() scrape.Record {
	return scrape.NewRecord(b.name, b.Now())
}

// NewRecordFor is NewRecord with an explicit source label, for sources that
// tag records with the upstream site.
func (b Base) NewRecordFor(source string) scrape.Record {
	return scrape.NewRecord(source, b.Now())
}

// Get paces, then fetches url and returns a non-empty body.
func (b Base) Get(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	return b.do(ctx, b.pages, fetcher.Request{URL: url, Method: http.MethodGet, Headers: headers})
}

// Document fetches url and parses it as HTML.
func (b Base) Document(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := b.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return parseDocument(body)
}

// GetJSON paces, fetches req through the API fetcher and decodes the body
// into out.
func (b Base) GetJSON(ctx context.Context, req fetcher.Request, out any) error {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Headers == nil {
		req.Headers = http.Header{}
	}
	if req.Headers.Get("Accept") == "" {
		req.Headers.Set("Accept", "application/json")
	}
	body, err := b.do(ctx, b.api, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL, err)
	}
	return nil
}

// Render loads url in the headless renderer with a pool identity and parses
// the resulting DOM.
func (b Base) Render(ctx context.Context, url string, opts fetcher.RenderOptions) (*goquery.Document, error) {
	if err := b.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	if opts.Identity == "" {
		opts.Identity = b.cfg.Identity(rand.IntN(b.cfg.PoolSize()))
	}
	resp, err := b.renderer.Render(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, fmt.Errorf("render %s: %w", url, scrape.ErrEmptyBody)
	}
	return parseDocument(resp.Body)
}

func (b Base) do(ctx context.Context, f Fetcher, req fetcher.Request) ([]byte, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "source.get")
	span.SetAttributes(attribute.String("source.name", b.name), attribute.String("http.url", req.URL))
	defer span.End()

	if err := b.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := f.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, fmt.Errorf("get %s: %w", req.URL, scrape.ErrEmptyBody)
	}
	return resp.Body, nil
}

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}
