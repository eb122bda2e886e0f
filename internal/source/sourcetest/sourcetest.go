// Package sourcetest provides fakes for testing sources without a network.
package sourcetest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/JakeFAU/multisource-scraper/internal/fetcher"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

// Fetcher serves canned bodies keyed by full request URL (including the
// encoded query). Unknown URLs fail with a transport FetchError.
type Fetcher struct {
	mu       sync.Mutex
	bodies   map[string]string
	errs     map[string]error
	requests []fetcher.Request
}

// NewFetcher returns a Fetcher serving bodies.
func NewFetcher(bodies map[string]string) *Fetcher {
	return &Fetcher{bodies: bodies, errs: map[string]error{}}
}

// FailWith makes url fail with err.
func (f *Fetcher) FailWith(url string, err error) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = err
	return f
}

// Fetch implements source.Fetcher.
func (f *Fetcher) Fetch(_ context.Context, req fetcher.Request) (fetcher.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	key := req.URL
	if len(req.Query) > 0 {
		key += "?" + req.Query.Encode()
	}
	if err, ok := f.errs[key]; ok {
		return fetcher.Response{}, err
	}
	body, ok := f.bodies[key]
	if !ok {
		return fetcher.Response{}, &scrape.FetchError{URL: key, Kind: scrape.FetchTransport, Attempts: 1}
	}
	return fetcher.Response{URL: key, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

// Requests returns a copy of every request seen.
func (f *Fetcher) Requests() []fetcher.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetcher.Request(nil), f.requests...)
}

// URLs returns the requested URLs in order.
func (f *Fetcher) URLs() []string {
	var out []string
	for _, r := range f.Requests() {
		key := r.URL
		if len(r.Query) > 0 {
			key += "?" + r.Query.Encode()
		}
		out = append(out, key)
	}
	return out
}

// Renderer serves canned rendered DOMs keyed by URL.
type Renderer struct {
	mu    sync.Mutex
	pages map[string]string
	Calls []fetcher.RenderOptions
}

// NewRenderer returns a Renderer serving pages.
func NewRenderer(pages map[string]string) *Renderer {
	return &Renderer{pages: pages}
}

// Render implements fetcher.Renderer.
func (r *Renderer) Render(_ context.Context, url string, opts fetcher.RenderOptions) (fetcher.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, opts)
	page, ok := r.pages[url]
	if !ok {
		return fetcher.Response{}, &scrape.FetchError{URL: url, Kind: scrape.FetchRender, Attempts: 1}
	}
	return fetcher.Response{URL: url, StatusCode: http.StatusOK, Body: []byte(page)}, nil
}

// Clock is a fixed clock.
type Clock struct{ T time.Time }

// Now returns the fixed time.
func (c Clock) Now() time.Time { return c.T }

// FixedTime is the instant used by source tests.
var FixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Config returns a fetch config with no request delay so tests never pace.
func Config() scrape.FetchConfig {
	cfg, err := scrape.NewFetchConfig(scrape.FetchOptions{
		MaxConcurrent: 1,
		Timeout:       time.Second,
		RetryAttempts: 1,
	})
	if err != nil {
		panic(err)
	}
	return cfg
}

// Deps returns source deps serving pages from f with a fixed clock.
func Deps(f *Fetcher) source.Deps {
	return source.Deps{Pages: f, Config: Config(), Clock: Clock{T: FixedTime}}
}
