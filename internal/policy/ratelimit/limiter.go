// Package ratelimit paces outbound requests so a single source never exceeds
// its configured request rate.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/multisource-scraper/internal/metrics"
)

// Pacer spaces consecutive requests of one owner by at least Interval. The
// first request never waits. A Pacer is safe for concurrent use.
type Pacer struct {
	name    string
	limiter *rate.Limiter
}

// Config holds pacer configuration.
type Config struct {
	// Name labels pacer wait metrics, usually the source name.
	Name string
	// Interval is the minimum spacing between requests. Zero disables pacing.
	Interval time.Duration
	// Burst is the number of requests allowed back to back. Defaults to 1.
	Burst int
}

// New creates a new Pacer.
func New(cfg Config) *Pacer {
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Pacer{name: cfg.Name, limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until the next request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacer wait: %w", err)
	}
	// Immediate grants are not worth a histogram sample.
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObservePacerWait(p.name, waited)
	}
	return nil
}

// Interval reports the configured spacing.
func (p *Pacer) Interval() time.Duration {
	if p.limiter.Limit() == rate.Inf {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(p.limiter.Limit()))
}
