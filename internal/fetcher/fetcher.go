// Package fetcher implements the retrying fetch client shared by every
// source. A Client turns one logical fetch into a bounded series of attempts
// over a pluggable Transport, rotating the outbound identity on every attempt
// and backing off on rate limits and transport failures.
package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// ErrBlocked marks a transport refusal that retrying cannot fix, such as a
// robots.txt disallow.
var ErrBlocked = errors.New("request blocked")

// Request describes a single logical fetch.
type Request struct {
	URL     string
	Method  string
	Headers http.Header
	Query   url.Values
	Body    []byte
}

// Response is the transport's view of one attempt.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Transport performs exactly one HTTP exchange. It must not retry.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req Request) (Response, error)

// Do calls f.
func (f TransportFunc) Do(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// RenderOptions tunes a rendered fetch.
type RenderOptions struct {
	// WaitFor is a CSS selector that must become visible before the DOM is
	// captured. Empty means capture once the body is ready.
	WaitFor string
	// Timeout bounds the WaitFor wait. Zero means DefaultRenderWait.
	Timeout time.Duration
	// Identity is the User-Agent presented by the browser.
	Identity string
}

// DefaultRenderWait bounds RenderOptions.WaitFor when no timeout is given.
const DefaultRenderWait = 10 * time.Second

// Renderer loads a page in a real browser and returns the rendered DOM.
// Render failures are returned as *scrape.FetchError with Kind FetchRender
// and are not retried.
type Renderer interface {
	Render(ctx context.Context, url string, opts RenderOptions) (Response, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper waits on a time.Timer.
type TimerSleeper struct{}

// Sleep blocks for d, returning early with ctx.Err() when ctx finishes.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func cloneHeader(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for k, values := range src {
		dst[k] = append([]string(nil), values...)
	}
	return dst
}
