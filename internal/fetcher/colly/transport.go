// Package collyfetcher implements fetcher.Transport using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/multisource-scraper/internal/fetcher"
)

// Config controls collector behavior.
type Config struct {
	RespectRobots bool
	Timeout       time.Duration
	MaxBodySize   int
}

// Transport performs single HTTP exchanges through a Colly collector. Every
// call works on a clone of the base collector so callbacks never leak
// between concurrent requests.
type Transport struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Transport.
func New(cfg Config) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
	)
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}
	c.WithTransport(fetcher.NewSessionTransport(newHTTPTransport()))
	// Cookies live in the per-invocation fetcher.Session, never in the
	// backend shared by every clone.
	c.DisableCookies()
	c.SetRequestTimeout(cfg.Timeout)
	return &Transport{cfg: cfg, baseCollector: c}
}

// Do executes one request. Non-2xx statuses are returned as responses, not
// errors, so the client's retry loop can classify them.
func (t *Transport) Do(ctx context.Context, req fetcher.Request) (fetcher.Response, error) {
	var (
		result   fetcher.Response
		fetchErr error
	)
	target, err := withQuery(req.URL, req.Query)
	if err != nil {
		return fetcher.Response{}, err
	}
	collector := t.baseCollector.Clone()
	collector.Context = ctx
	if ua := req.Headers.Get("User-Agent"); ua != "" {
		collector.UserAgent = ua
	}
	t.configureCollectorHooks(collector, time.Now(), &result, &fetchErr)

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	done := make(chan error, 1)
	go func() {
		done <- collector.Request(method, target, body, nil, requestHeaders(req.Headers))
	}()

	select {
	case <-ctx.Done():
		return fetcher.Response{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if errors.Is(err, colly.ErrRobotsTxtBlocked) {
			return fetcher.Response{}, fmt.Errorf("colly visit: %w: %v", fetcher.ErrBlocked, err)
		}
		if err != nil {
			return fetcher.Response{}, fmt.Errorf("colly visit failed: %w", err)
		}
		if fetchErr != nil {
			return fetcher.Response{}, fmt.Errorf("colly response failed: %w", fetchErr)
		}
		return result, nil
	}
}

func (t *Transport) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *fetcher.Response,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		var headers http.Header
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		*result = fetcher.Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
}

// requestHeaders copies src without Accept-Encoding. Colly only decodes
// gzip bodies; left to itself net/http asks for gzip and decodes it.
func requestHeaders(src http.Header) http.Header {
	if src == nil {
		return http.Header{}
	}
	dst := src.Clone()
	dst.Del("Accept-Encoding")
	return dst
}
