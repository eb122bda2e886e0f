package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Za.Indeed.com/jobs?q=go", "za.indeed.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveSourceCountsRecords(t *testing.T) {
	before := testutil.ToFloat64(sourceRecordsTotal.WithLabelValues("metrics-test"))
	ObserveSource("metrics-test", "ok", 4, time.Second)
	ObserveSource("metrics-test", "error", 0, time.Second)

	if got := testutil.ToFloat64(sourceRecordsTotal.WithLabelValues("metrics-test")) - before; got != 4 {
		t.Fatalf("expected 4 records counted, got %f", got)
	}
	if got := testutil.ToFloat64(sourceRunsTotal.WithLabelValues("metrics-test", "error")); got < 1 {
		t.Fatalf("expected error run counted, got %f", got)
	}
}

func TestObserveSinkWriteStatus(t *testing.T) {
	okBefore := testutil.ToFloat64(sinkWritesTotal.WithLabelValues("metrics-test", "ok"))
	errBefore := testutil.ToFloat64(sinkWritesTotal.WithLabelValues("metrics-test", "error"))

	ObserveSinkWrite("metrics-test", nil)
	ObserveSinkWrite("metrics-test", errors.New("down"))

	if got := testutil.ToFloat64(sinkWritesTotal.WithLabelValues("metrics-test", "ok")) - okBefore; got != 1 {
		t.Fatalf("expected one ok write, got %f", got)
	}
	if got := testutil.ToFloat64(sinkWritesTotal.WithLabelValues("metrics-test", "error")) - errBefore; got != 1 {
		t.Fatalf("expected one failed write, got %f", got)
	}
}

func TestActiveSourcesGauge(t *testing.T) {
	before := testutil.ToFloat64(activeSources)
	IncActiveSources()
	IncActiveSources()
	DecActiveSources()
	if got := testutil.ToFloat64(activeSources) - before; got != 1 {
		t.Fatalf("expected gauge delta 1, got %f", got)
	}
	DecActiveSources()
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://www.linkedin.com/jobs", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
