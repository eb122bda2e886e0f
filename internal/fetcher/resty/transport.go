// Package restyfetcher implements fetcher.Transport on top of go-resty, used
// for JSON APIs and for sites fronted by Cloudflare.
package restyfetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JakeFAU/multisource-scraper/internal/fetcher"
)

const tracerName = "github.com/JakeFAU/multisource-scraper/internal/fetcher/resty"

// Config controls the resty client.
type Config struct {
	Timeout          time.Duration
	CloudflareBypass bool
}

// Transport performs single HTTP exchanges through a resty client.
type Transport struct {
	client *resty.Client
}

// New builds a Transport with its own resty client.
func New(cfg Config) *Transport {
	client := resty.New()
	if cfg.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return NewWithClient(client)
}

// NewWithClient wraps an existing client (primarily for testing).
func NewWithClient(client *resty.Client) *Transport {
	client.SetRetryCount(0)
	// Cookies belong to the per-invocation fetcher.Session in the request
	// context, not to the shared client.
	client.SetCookieJar(nil)
	client.SetTransport(fetcher.NewSessionTransport(client.GetClient().Transport))
	instrument(client, otel.Tracer(tracerName))
	return &Transport{client: client}
}

// Do executes one request and returns the status, headers and body. Non-2xx
// statuses are returned as responses.
func (t *Transport) Do(ctx context.Context, req fetcher.Request) (fetcher.Response, error) {
	headers := req.Headers.Clone()
	// net/http only decompresses transparently when it negotiates the
	// encoding itself.
	headers.Del("Accept-Encoding")

	r := t.client.R().
		SetContext(ctx).
		SetHeaderMultiValues(headers)
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return fetcher.Response{}, fmt.Errorf("resty execute: %w", err)
	}
	return fetcher.Response{
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode(),
		Headers:    resp.Header(),
		Body:       resp.Body(),
		Duration:   resp.Time(),
	}, nil
}

func instrument(client *resty.Client, tracer trace.Tracer) {
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), "http "+req.Method)
		req.SetContext(ctx)
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		span := trace.SpanFromContext(res.Request.Context())
		defer span.End()
		span.SetAttributes(
			attribute.String("http.url", res.Request.URL),
			attribute.Int("http.status_code", res.StatusCode()),
			attribute.Int("http.response_size", len(res.Body())),
		)
		if res.StatusCode() >= http.StatusBadRequest {
			span.SetStatus(codes.Error, res.Status())
		}
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		span := trace.SpanFromContext(req.Context())
		defer span.End()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	})
}
