// Package scheduler repeats full runs forever. A failed run cools down for a
// fixed interval instead of stopping the loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/fetcher"
)

// DefaultCooldown is the pause after a failed run.
const DefaultCooldown = 5 * time.Minute

// Runner performs one full run. Per-source failures are part of a successful
// run; only failures of the run machinery are returned.
type Runner interface {
	RunOnce(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

// RunOnce calls f(ctx).
func (f RunnerFunc) RunOnce(ctx context.Context) error { return f(ctx) }

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Config tunes the loop.
type Config struct {
	// Cooldown is the pause after a failed run (DefaultCooldown when zero).
	Cooldown time.Duration
	// SkipFirstRun waits one interval before the first run.
	SkipFirstRun bool
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithSleeper replaces the timer-based sleeper.
func WithSleeper(s Sleeper) Option {
	return func(sc *Scheduler) { sc.sleeper = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(sc *Scheduler) {
		if l != nil {
			sc.logger = l
		}
	}
}

// Scheduler drives a Runner on a fixed interval.
type Scheduler struct {
	runner  Runner
	cfg     Config
	sleeper Sleeper
	logger  *zap.Logger
}

// New returns a Scheduler over runner.
func New(runner Runner, cfg Config, opts ...Option) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler runner is required")
	}
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("cooldown must be >= 0, got %s", cfg.Cooldown)
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = DefaultCooldown
	}
	s := &Scheduler{
		runner:  runner,
		cfg:     cfg,
		sleeper: fetcher.TimerSleeper{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("scheduler")
	return s, nil
}

// RunForever runs, then sleeps interval after a success or the cooldown after
// a failure, until ctx is done. It returns nil on cancellation and an error
// only for an invalid interval.
func (s *Scheduler) RunForever(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %s", interval)
	}
	s.logger.Info("scheduler started",
		zap.Duration("interval", interval),
		zap.Duration("cooldown", s.cfg.Cooldown))
	if s.cfg.SkipFirstRun {
		if err := s.sleeper.Sleep(ctx, interval); err != nil {
			return s.stopped()
		}
	}
	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil {
			return s.stopped()
		}
		wait := interval
		if err := s.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return s.stopped()
			}
			s.logger.Error("scheduled run failed",
				zap.Int("cycle", cycle),
				zap.Duration("cooldown", s.cfg.Cooldown),
				zap.Error(err))
			wait = s.cfg.Cooldown
		} else {
			s.logger.Info("scheduled run completed", zap.Int("cycle", cycle), zap.Duration("next_in", interval))
		}
		if err := s.sleeper.Sleep(ctx, wait); err != nil {
			return s.stopped()
		}
	}
}

// runOnce converts a panicking run into an error so the loop survives it.
func (s *Scheduler) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()
	return s.runner.RunOnce(ctx)
}

func (s *Scheduler) stopped() error {
	s.logger.Info("scheduler stopped")
	return nil
}
