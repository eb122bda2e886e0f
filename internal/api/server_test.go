package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/history"
	"github.com/JakeFAU/multisource-scraper/internal/manager"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeService struct {
	mu sync.Mutex

	report    manager.Report
	runErr    error
	records   []scrape.Record
	err       error
	stats     history.Stats
	ran       bool
	entries   []scrape.RunSummary
	samples   map[string][]scrape.Record
	samplesOK bool

	targets  map[string]scrape.Params
	query    string
	location string
	list     []string
	website  manager.WebsiteRequest
	limit    int
}

func (f *fakeService) Run(_ context.Context, targets map[string]scrape.Params) (manager.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = targets
	return f.report, f.runErr
}

func (f *fakeService) SearchJobs(_ context.Context, query, location string) ([]scrape.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query, f.location = query, location
	return f.records, f.err
}

func (f *fakeService) Markets(_ context.Context, markets []string) ([]scrape.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = markets
	return f.records, f.err
}

func (f *fakeService) Odds(_ context.Context, sports []string) ([]scrape.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = sports
	return f.records, f.err
}

func (f *fakeService) Website(_ context.Context, req manager.WebsiteRequest) ([]scrape.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.website = req
	return f.records, f.err
}

func (f *fakeService) Stats() (history.Stats, bool) { return f.stats, f.ran }

func (f *fakeService) History() []scrape.RunSummary { return f.entries }

func (f *fakeService) Samples(_ context.Context, limit int) (map[string][]scrape.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	if !f.samplesOK {
		return nil, errors.New("samples are not configured")
	}
	return f.samples, nil
}

func (f *fakeService) Dashboard(context.Context) (manager.Dashboard, error) {
	return manager.Dashboard{ActiveSources: []string{"jobs"}, SystemStatus: "active"}, f.err
}

func job(title string) scrape.Record {
	rec := scrape.NewRecord("indeed", now)
	rec.Set("title", title)
	return rec
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestRunTargetsSuccess(t *testing.T) {
	t.Parallel()

	svc := &fakeService{report: manager.Report{
		RunID:     "run-1",
		Timestamp: now,
		Results: map[string]scrape.RunResult{
			"jobs":     {Source: "jobs", Records: []scrape.Record{job("Go Developer")}},
			"teams":    {Source: "teams", Err: &scrape.SourceError{Source: "teams", Err: errors.New("down")}},
			"missing":  {Source: "missing", Err: &scrape.SourceError{Source: "missing", Err: scrape.ErrUnknownCategory}},
			"feeds":    {Source: "feeds"},
			"odds":     {Source: "odds", Records: []scrape.Record{}},
			"realtime": {Source: "realtime"},
		},
	}}
	s := NewServer(svc, Config{}, WithLogger(zap.NewNop()))

	rec, body := do(t, s, http.MethodPost, "/v1/runs", `{"targets":{"jobs":{"keywords":["go","rust"]}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "success", body["status"])
	require.Equal(t, "run-1", body["run_id"])

	results := body["results"].(map[string]any)
	jobs := results["jobs"].(map[string]any)
	require.Nil(t, jobs["error"])
	require.Len(t, jobs["records"], 1)
	teams := results["teams"].(map[string]any)
	require.Equal(t, "source teams: down", teams["error"])

	require.Equal(t, []string{"go", "rust"}, svc.targets["jobs"].Strings("keywords"))
}

func TestRunTargetsEmptyBodyUsesDefaults(t *testing.T) {
	t.Parallel()

	svc := &fakeService{report: manager.Report{RunID: "run-2", Results: map[string]scrape.RunResult{}}}
	rec, _ := do(t, NewServer(svc, Config{}), http.MethodPost, "/v1/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, svc.targets)
}

func TestRunTargetsStoreFailure(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		report: manager.Report{RunID: "run-3", Results: map[string]scrape.RunResult{}},
		runErr: &scrape.RunError{Op: "store", Err: errors.New("disk full")},
	}
	rec, body := do(t, NewServer(svc, Config{}), http.MethodPost, "/v1/runs", `{}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "error", body["status"])
	require.Equal(t, "run-3", body["run_id"])
	require.Contains(t, body["error"], "disk full")
}

func TestRunTargetsInvalidJSON(t *testing.T) {
	t.Parallel()

	rec, body := do(t, NewServer(&fakeService{}, Config{}), http.MethodPost, "/v1/runs", "{invalid")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid JSON", body["error"])
}

func TestSearchJobs(t *testing.T) {
	t.Parallel()

	svc := &fakeService{records: []scrape.Record{job("Python Developer"), job("Data Analyst")}}
	s := NewServer(svc, Config{})

	rec, body := do(t, s, http.MethodPost, "/v1/jobs/search", `{"query":"python developer","location":"Durban"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "python developer", body["query"])
	require.EqualValues(t, 2, body["count"])
	require.Equal(t, "Durban", svc.location)

	rec, body = do(t, s, http.MethodPost, "/v1/jobs/search", `{"query":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "query is required", body["error"])
}

func TestSearchJobsSourceFailureIsBadGateway(t *testing.T) {
	t.Parallel()

	svc := &fakeService{err: &scrape.SourceError{Source: "jobs", Err: errors.New("boards down")}}
	rec, body := do(t, NewServer(svc, Config{}), http.MethodPost, "/v1/jobs/search", `{"query":"go"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "error", body["status"])
}

func TestMarketsAndOddsParseLists(t *testing.T) {
	t.Parallel()

	svc := &fakeService{records: []scrape.Record{job("x")}}
	s := NewServer(svc, Config{})

	rec, body := do(t, s, http.MethodGet, "/v1/financial/markets?markets=crypto,%20forex", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"crypto", "forex"}, svc.list)
	require.Len(t, body["data"], 1)

	rec, body = do(t, s, http.MethodGet, "/v1/odds/sports?sports=soccer&sports=rugby", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"soccer", "rugby"}, svc.list)
	require.Len(t, body["odds"], 1)

	rec, _ = do(t, s, http.MethodGet, "/v1/odds/sports", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, svc.list)
}

func TestUnknownCategoryIsNotFound(t *testing.T) {
	t.Parallel()

	svc := &fakeService{err: &scrape.SourceError{Source: "financial", Err: scrape.ErrUnknownCategory}}
	rec, _ := do(t, NewServer(svc, Config{}), http.MethodGet, "/v1/financial/markets", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebsiteValidation(t *testing.T) {
	t.Parallel()

	svc := &fakeService{records: []scrape.Record{job("Example")}}
	s := NewServer(svc, Config{})

	rec, body := do(t, s, http.MethodPost, "/v1/website", `{"selectors":{"title":"h1"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "url is required", body["error"])

	rec, body = do(t, s, http.MethodPost, "/v1/website", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "selectors are required", body["error"])

	rec, body = do(t, s, http.MethodPost, "/v1/website",
		`{"url":"https://example.com","selectors":{"title":"h1"},"render":true,"wait_for":"h1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, body["count"])
	require.True(t, svc.website.Render)
	require.Equal(t, "h1", svc.website.WaitFor)
}

func TestStatsAndHistory(t *testing.T) {
	t.Parallel()

	svc := &fakeService{
		stats: history.Stats{TotalItems: 7, Categories: []string{"jobs"}},
		ran:   true,
		entries: []scrape.RunSummary{
			{ID: "run-1"}, {ID: "run-2"}, {ID: "run-3"},
		},
	}
	s := NewServer(svc, Config{})

	rec, body := do(t, s, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["has_run"])
	require.EqualValues(t, 7, body["stats"].(map[string]any)["total_items"])

	rec, body = do(t, s, http.MethodGet, "/v1/history?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := body["history"].([]any)
	require.Len(t, entries, 2)
	require.Equal(t, "run-3", entries[0].(map[string]any)["id"])

	rec, _ = do(t, s, http.MethodGet, "/v1/history?limit=zero", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSamples(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	s := NewServer(svc, Config{})

	rec, body := do(t, s, http.MethodGet, "/v1/dashboard/samples", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "error", body["status"])

	svc.samplesOK = true
	svc.samples = map[string][]scrape.Record{"jobs": {job("a")}}
	rec, body = do(t, s, http.MethodGet, "/v1/dashboard/samples?limit=500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, maxSampleLimit, svc.limit)
	require.Contains(t, body["samples"], "jobs")
}

func TestDashboard(t *testing.T) {
	t.Parallel()

	rec, body := do(t, NewServer(&fakeService{}, Config{}), http.MethodGet, "/v1/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dash := body["dashboard"].(map[string]any)
	require.Equal(t, "active", dash["system_status"])

	rec, _ = do(t, NewServer(&fakeService{err: errors.New("boom")}, Config{}), http.MethodGet, "/v1/dashboard", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	healthy := NewServer(&fakeService{}, Config{}, WithReadiness("postgres", func(context.Context) error { return nil }))
	rec, body := do(t, healthy, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ready", body["status"])

	broken := NewServer(&fakeService{}, Config{}, WithReadiness("redis", func(context.Context) error {
		return errors.New("connection refused")
	}))
	rec, body = do(t, broken, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "connection refused", body["checks"].(map[string]any)["redis"])
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeService{}, Config{APIKey: "secret"})

	rec, _ := do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, s, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "unauthorized", body["error"])

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.Header.Set("X-API-Key", "secret")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rec, _ = do(t, s, http.MethodGet, "/v1/stats?api_key=secret", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestEventsRouteMounted(t *testing.T) {
	t.Parallel()

	events := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	s := NewServer(&fakeService{}, Config{}, WithEvents(events))
	rec, _ := do(t, s, http.MethodGet, "/v1/events", "")
	require.Equal(t, http.StatusTeapot, rec.Code)

	rec, _ = do(t, NewServer(&fakeService{}, Config{}), http.MethodGet, "/v1/events", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeService{}, Config{})
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeService{}, Config{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestRequestTimeout(t *testing.T) {
	t.Parallel()

	svc := &blockingService{fakeService: &fakeService{}}
	s := NewServer(svc, Config{RequestTimeout: 20 * time.Millisecond})
	rec, body := do(t, s, http.MethodPost, "/v1/jobs/search", `{"query":"go"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "request timed out", body["error"])
}

type blockingService struct {
	*fakeService
}

func (b *blockingService) SearchJobs(ctx context.Context, _, _ string) ([]scrape.Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("x: %w", scrape.ErrUnknownCategory)))
	require.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	require.Equal(t, http.StatusGatewayTimeout, statusFor(context.Canceled))
	require.Equal(t, http.StatusBadGateway, statusFor(&scrape.SourceError{Source: "jobs", Err: errors.New("x")}))
	require.Equal(t, http.StatusInternalServerError, statusFor(&scrape.RunError{Op: "store", Err: errors.New("x")}))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}
