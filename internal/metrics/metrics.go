// Package metrics exposes Prometheus collectors for the scraping engine.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetch_attempts_total",
			Help: "Fetch attempts, labeled by site and outcome.",
		},
		[]string{"site", "outcome"},
	)

	fetchBackoffSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_fetch_backoff_seconds",
			Help:    "Backoff waits applied between fetch attempts.",
			Buckets: []float64{1, 2, 4, 8, 16, 32},
		},
		[]string{"site"},
	)

	pacerWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_pacer_wait_seconds",
			Help:    "Time a source spent waiting on its own request delay.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	sourceRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_source_runs_total",
			Help: "Source invocations, labeled by source and status.",
		},
		[]string{"source", "status"},
	)

	sourceRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_source_records_total",
			Help: "Records produced, labeled by source.",
		},
		[]string{"source"},
	)

	sourceDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_source_duration_seconds",
			Help:    "Wall time of a source invocation.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"source"},
	)

	activeSources = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_active_sources",
			Help: "Number of source invocations currently holding a concurrency slot.",
		},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Completed runs, labeled by status.",
		},
		[]string{"status"},
	)

	runDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_run_duration_seconds",
			Help:    "Wall time of a full run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	sinkWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_sink_writes_total",
			Help: "Sink batch writes, labeled by sink and status.",
		},
		[]string{"sink", "status"},
	)

	eventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_events_dropped_total",
			Help: "Run events dropped because the event buffer was full.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
		},
		[]string{"method", "route"},
	)
)

// SanitizeSite extracts a lowercase hostname from a URL for use as a label.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchAttempt counts one fetch attempt.
func ObserveFetchAttempt(site, outcome string) {
	fetchAttemptsTotal.WithLabelValues(site, outcome).Inc()
}

// ObserveBackoff records a retry wait.
func ObserveBackoff(site string, wait time.Duration) {
	fetchBackoffSeconds.WithLabelValues(site).Observe(wait.Seconds())
}

// ObservePacerWait records a self-throttling delay.
func ObservePacerWait(source string, wait time.Duration) {
	pacerWaitSeconds.WithLabelValues(source).Observe(wait.Seconds())
}

// ObserveSource records the outcome of one source invocation.
func ObserveSource(source, status string, records int, duration time.Duration) {
	sourceRunsTotal.WithLabelValues(source, status).Inc()
	if records > 0 {
		sourceRecordsTotal.WithLabelValues(source).Add(float64(records))
	}
	sourceDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// IncActiveSources increments the in-flight sources gauge.
func IncActiveSources() {
	activeSources.Inc()
}

// DecActiveSources decrements the in-flight sources gauge.
func DecActiveSources() {
	activeSources.Dec()
}

// ObserveRun records a completed run.
func ObserveRun(status string, duration time.Duration) {
	runsTotal.WithLabelValues(status).Inc()
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveSinkWrite records a sink batch write.
func ObserveSinkWrite(sink string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	sinkWritesTotal.WithLabelValues(sink, status).Inc()
}

// ObserveEventsDropped counts dropped run events.
func ObserveEventsDropped(n int64) {
	eventsDroppedTotal.Add(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
