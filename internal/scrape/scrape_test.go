package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewFetchConfigValidation(t *testing.T) {
	t.Parallel()

	valid := FetchOptions{MaxConcurrent: 2, Timeout: time.Second, RetryAttempts: 1}
	tests := []struct {
		name   string
		mutate func(*FetchOptions)
		want   string
	}{
		{"zero concurrency", func(o *FetchOptions) { o.MaxConcurrent = 0 }, "max concurrent"},
		{"negative delay", func(o *FetchOptions) { o.RequestDelay = -time.Second }, "request delay"},
		{"zero timeout", func(o *FetchOptions) { o.Timeout = 0 }, "timeout"},
		{"zero attempts", func(o *FetchOptions) { o.RetryAttempts = 0 }, "retry attempts"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := valid
			tt.mutate(&opts)
			_, err := NewFetchConfig(opts)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNewFetchConfigDefaultsIdentityPool(t *testing.T) {
	t.Parallel()

	cfg, err := NewFetchConfig(FetchOptions{
		MaxConcurrent: 1,
		Timeout:       time.Second,
		RetryAttempts: 1,
		IdentityPool:  []string{"  ", ""},
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, cfg.PoolSize(), 3)
	require.Equal(t, DefaultIdentityPool(), cfg.IdentityPool())
}

func TestFetchConfigIsImmutable(t *testing.T) {
	t.Parallel()

	pool := []string{"agent-a", "agent-b"}
	cfg, err := NewFetchConfig(FetchOptions{
		MaxConcurrent: 1,
		Timeout:       time.Second,
		RetryAttempts: 2,
		IdentityPool:  pool,
	})
	require.NoError(t, err)

	pool[0] = "mutated"
	got := cfg.IdentityPool()
	got[1] = "mutated"
	require.Equal(t, []string{"agent-a", "agent-b"}, cfg.IdentityPool())
	require.Equal(t, "agent-b", cfg.Identity(3))
}

func TestRecordKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("SAST", 2*3600))
	rec := NewRecord("indeed", at)
	rec.Set("title", "Engineer")
	rec.Set("company", "Acme")
	rec.Set("title", "Senior Engineer")

	require.Equal(t, []string{FieldSource, FieldScrapedAt, "title", "company"}, rec.Keys())
	require.Equal(t, "Senior Engineer", rec.String("title"))
	require.Equal(t, time.UTC, rec.ScrapedAt().Location())
	require.True(t, rec.Valid())

	rec.Delete("title")
	require.Equal(t, []string{FieldSource, FieldScrapedAt, "company"}, rec.Keys())
}

func TestRecordJSONRoundTripPreservesOrder(t *testing.T) {
	t.Parallel()

	rec := NewRecord("coingecko", time.Unix(1700000000, 0))
	rec.Set("zeta", "last")
	rec.Set("alpha", 1.5)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.Equal(t, `{"source":"coingecko","scraped_at":"2023-11-14T22:13:20Z","zeta":"last","alpha":1.5}`, string(data))

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, rec.Keys(), decoded.Keys())
	require.True(t, rec.ScrapedAt().Equal(decoded.ScrapedAt()))

	require.Error(t, json.Unmarshal([]byte(`[1,2]`), &decoded))
}

func TestRecordCloneIsIndependent(t *testing.T) {
	t.Parallel()

	rec := NewRecord("web", time.Now())
	clone := rec.Clone()
	clone.Set("extra", "value")

	_, ok := rec.Get("extra")
	require.False(t, ok)
	require.Equal(t, 2, rec.Len())
}

func TestParamsAccessors(t *testing.T) {
	t.Parallel()

	p := Params{
		"query":     "  python  ",
		"keywords":  []any{"go", " ", "rust"},
		"sports":    "soccer, rugby",
		"max_pages": float64(3),
		"render":    "true",
		"selectors": map[string]any{"title": "h1"},
	}
	require.Equal(t, "python", p.String("query"))
	require.Equal(t, "fallback", p.StringOr("missing", "fallback"))
	require.Equal(t, []string{"go", "rust"}, p.Strings("keywords"))
	require.Equal(t, []string{"soccer", "rugby"}, p.Strings("sports"))
	require.Equal(t, []string{"x"}, p.StringsOr("missing", []string{"x"}))
	require.Equal(t, 3, p.Int("max_pages", 5))
	require.Equal(t, 5, p.Int("missing", 5))
	require.True(t, p.Bool("render", false))
	require.Equal(t, map[string]string{"title": "h1"}, p.StringMap("selectors"))
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	fetchErr := &FetchError{URL: "https://example.com", Kind: FetchTransport, Attempts: 3, Err: errors.New("dial")}
	require.Equal(t, KindFetch, ErrorKind(&SourceError{Source: "indeed", Err: fetchErr}))
	require.Equal(t, KindCanceled, ErrorKind(&FetchError{Kind: FetchCanceled}))
	require.Equal(t, KindCanceled, ErrorKind(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	require.Equal(t, KindSource, ErrorKind(&SourceError{Source: "x", Err: errors.New("boom")}))
	require.Equal(t, KindRun, ErrorKind(&RunError{Op: "store", Err: errors.New("down")}))
	require.Equal(t, KindUnknown, ErrorKind(errors.New("other")))
	require.Empty(t, ErrorKind(nil))
	require.Contains(t, fetchErr.Error(), "transport after 3 attempt(s)")
}

func TestRunResultJSON(t *testing.T) {
	t.Parallel()

	ok := RunResult{Source: "jobs", Records: []Record{NewRecord("indeed", time.Unix(0, 0))}}
	data, err := json.Marshal(ok)
	require.NoError(t, err)
	require.Contains(t, string(data), `"error":null`)
	require.Contains(t, string(data), `"source":"indeed"`)

	failed := RunResult{Source: "odds", Err: &SourceError{Source: "odds", Err: errors.New("boom")}}
	data, err = json.Marshal(failed)
	require.NoError(t, err)
	require.Contains(t, string(data), `"records":[]`)
	require.Contains(t, string(data), `"error_kind":"source_error"`)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	results := map[string]RunResult{
		"jobs":      {Source: "jobs", Records: make([]Record, 3)},
		"financial": {Source: "financial", Records: make([]Record, 2)},
		"odds":      {Source: "odds", Err: errors.New("down")},
	}
	summary := Summarize("run-1", time.Unix(10, 0), results)
	require.Equal(t, 5, summary.TotalItems)
	require.Equal(t, []string{"financial", "jobs"}, summary.Categories())
	require.Equal(t, []string{"odds"}, summary.Failed)
}
