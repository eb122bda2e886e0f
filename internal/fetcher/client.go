package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/metrics"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

// State is a step of the retry state machine.
type State string

// Retry states. A fetch starts in StateAttempting and ends in either
// StateSucceeded or StateExhausted.
const (
	StateAttempting State = "attempting"
	StateWaiting    State = "waiting"
	StateRetrying   State = "retrying"
	StateSucceeded  State = "succeeded"
	StateExhausted  State = "exhausted"
)

// Transition is reported to observers on every state change.
type Transition struct {
	From       State
	To         State
	Attempt    int
	StatusCode int
	Wait       time.Duration
	Identity   string
	Err        error
}

// Option customizes a Client.
type Option func(*Client)

// WithSleeper replaces the timer-based sleeper (tests use an instant one).
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

// WithJitter replaces the random source for backoff jitter in [0, 1).
func WithJitter(fn func() float64) Option {
	return func(c *Client) { c.jitter = fn }
}

// WithIdentityPicker replaces the uniform identity picker.
func WithIdentityPicker(fn func(n int) int) Option {
	return func(c *Client) { c.pick = fn }
}

// WithObserver registers a callback for state transitions.
func WithObserver(fn func(Transition)) Option {
	return func(c *Client) { c.observers = append(c.observers, fn) }
}

// WithBlockedHosts refuses requests to hosts matching patterns without
// touching the transport.
func WithBlockedHosts(patterns []string) Option {
	return func(c *Client) { c.blocked = NewHostBlocklist(patterns) }
}

// Client issues logical fetches with retry, backoff, per-attempt timeouts and
// identity rotation. It holds no per-request state and is safe for
// concurrent use.
type Client struct {
	cfg       scrape.FetchConfig
	transport Transport
	sleeper   Sleeper
	jitter    func() float64
	pick      func(n int) int
	observers []func(Transition)
	blocked   *HostBlocklist
	logger    *zap.Logger
}

// New builds a Client over transport.
func New(cfg scrape.FetchConfig, transport Transport, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:       cfg,
		transport: transport,
		sleeper:   TimerSleeper{},
		jitter:    randomFraction,
		pick:      randomIndex,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the fetch configuration the client was built with.
func (c *Client) Config() scrape.FetchConfig { return c.cfg }

// Backoff returns the wait before retrying after attempt (0-indexed):
// 2^attempt seconds plus jitter seconds.
func Backoff(attempt int, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	seconds := math.Pow(2, float64(attempt)) + jitter
	return time.Duration(seconds * float64(time.Second))
}

// Get fetches url with GET and returns the body.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	resp, err := c.Fetch(ctx, Request{URL: url, Method: http.MethodGet, Headers: headers})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Fetch runs the retry state machine for req. The returned error is always a
// *scrape.FetchError.
func (c *Client) Fetch(ctx context.Context, req Request) (Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	site := metrics.SanitizeSite(req.URL)
	ctx, span := otel.Tracer("github.com/JakeFAU/multisource-scraper/internal/fetcher").Start(ctx, "fetch")
	span.SetAttributes(attribute.String("fetch.url", req.URL), attribute.String("fetch.method", req.Method))
	defer span.End()

	if c.blocked.Blocked(req.URL) {
		c.logger.Debug("host blocklisted", zap.String("url", req.URL))
		fetchErr := &scrape.FetchError{
			URL: req.URL, Kind: scrape.FetchTransport, Err: fmt.Errorf("%w: host is blocklisted", ErrBlocked),
		}
		metrics.ObserveFetchAttempt(site, "blocked")
		span.SetStatus(codes.Error, fetchErr.Error())
		return Response{}, fetchErr
	}

	var (
		state    = StateAttempting
		attempt  = 0
		last     = c.cfg.RetryAttempts() - 1
		resp     Response
		fetchErr *scrape.FetchError
		wait     time.Duration
	)
	for {
		switch state {
		case StateAttempting:
			identity := c.cfg.Identity(c.pick(c.cfg.PoolSize()))
			var err error
			resp, err = c.attempt(ctx, req, identity)
			next, nextWait, terminal := c.classify(ctx, req, attempt, last, resp, err)
			metrics.ObserveFetchAttempt(site, outcomeLabel(next, resp.StatusCode, err))
			c.transition(Transition{
				From: state, To: next, Attempt: attempt, StatusCode: resp.StatusCode,
				Wait: nextWait, Identity: identity, Err: err,
			})
			state, wait, fetchErr = next, nextWait, terminal
		case StateWaiting:
			metrics.ObserveBackoff(site, wait)
			if err := c.sleeper.Sleep(ctx, wait); err != nil {
				fetchErr = &scrape.FetchError{URL: req.URL, Kind: scrape.FetchCanceled, Attempts: attempt + 1, Err: err}
				c.transition(Transition{From: state, To: StateExhausted, Attempt: attempt, Err: err})
				state = StateExhausted
				continue
			}
			c.transition(Transition{From: state, To: StateRetrying, Attempt: attempt})
			state = StateRetrying
		case StateRetrying:
			attempt++
			c.transition(Transition{From: state, To: StateAttempting, Attempt: attempt})
			state = StateAttempting
		case StateSucceeded:
			span.SetAttributes(attribute.Int("fetch.attempts", attempt+1))
			return resp, nil
		case StateExhausted:
			span.SetStatus(codes.Error, fetchErr.Error())
			span.RecordError(fetchErr)
			return Response{}, fetchErr
		}
	}
}

func (c *Client) attempt(ctx context.Context, req Request, identity string) (Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
	defer cancel()
	attemptReq := req
	attemptReq.Headers = mergeHeaders(browserHeaders(identity), req.Headers)
	resp, err := c.transport.Do(attemptCtx, attemptReq)
	if err != nil {
		return Response{}, fmt.Errorf("transport do: %w", err)
	}
	return resp, nil
}

// classify decides the next state after one attempt. It returns the wait to
// apply in StateWaiting and, for StateExhausted, the terminal error.
func (c *Client) classify(
	ctx context.Context,
	req Request,
	attempt, last int,
	resp Response,
	err error,
) (State, time.Duration, *scrape.FetchError) {
	attempts := attempt + 1
	if ctxErr := ctx.Err(); ctxErr != nil {
		return StateExhausted, 0, &scrape.FetchError{URL: req.URL, Kind: scrape.FetchCanceled, Attempts: attempts, Err: ctxErr}
	}
	if err != nil {
		if errors.Is(err, ErrBlocked) || attempt >= last {
			return StateExhausted, 0, &scrape.FetchError{URL: req.URL, Kind: scrape.FetchTransport, Attempts: attempts, Err: err}
		}
		c.logger.Warn("fetch attempt failed",
			zap.String("url", req.URL), zap.Int("attempt", attempt), zap.Error(err))
		return StateWaiting, Backoff(attempt, c.jitter()), nil
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return StateSucceeded, 0, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("rate limited",
			zap.String("url", req.URL), zap.Int("attempt", attempt))
		if attempt >= last {
			return StateExhausted, 0, &scrape.FetchError{
				URL: req.URL, Kind: scrape.FetchExhausted, Attempts: attempts, StatusCode: resp.StatusCode,
			}
		}
		return StateWaiting, Backoff(attempt, c.jitter()), nil
	default:
		c.logger.Warn("unexpected status",
			zap.String("url", req.URL), zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
		if attempt >= last {
			return StateExhausted, 0, &scrape.FetchError{
				URL: req.URL, Kind: scrape.FetchStatus, Attempts: attempts, StatusCode: resp.StatusCode,
			}
		}
		return StateRetrying, 0, nil
	}
}

func (c *Client) transition(t Transition) {
	for _, fn := range c.observers {
		fn(t)
	}
}

func outcomeLabel(next State, status int, err error) string {
	switch {
	case err != nil:
		return "transport_error"
	case next == StateSucceeded:
		return "ok"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return fmt.Sprintf("status_%dxx", status/100)
	}
}
