package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

// scriptedRunner returns its results in order and cancels the loop after
// the last one.
type scriptedRunner struct {
	mu      sync.Mutex
	results []error
	calls   int
	cancel  context.CancelFunc
}

func (r *scriptedRunner) RunOnce(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.calls
	r.calls++
	if idx >= len(r.results)-1 {
		r.cancel()
	}
	if idx >= len(r.results) {
		return nil
	}
	return r.results[idx]
}

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func TestRunForeverSleepsIntervalOrCooldown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &scriptedRunner{
		results: []error{nil, &scrape.RunError{Op: "store", Err: errors.New("disk full")}, nil, nil},
		cancel:  cancel,
	}
	sleeper := &recordingSleeper{}
	s, err := New(runner, Config{}, WithSleeper(sleeper))
	require.NoError(t, err)

	require.NoError(t, s.RunForever(ctx, time.Hour))
	require.Equal(t, 4, runner.calls)
	require.Equal(t, []time.Duration{time.Hour, DefaultCooldown, time.Hour}, sleeper.waits[:3])
}

func TestRunForeverSurvivesPanics(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	runner := RunnerFunc(func(context.Context) error {
		calls++
		if calls == 1 {
			panic("nil map")
		}
		cancel()
		return nil
	})
	sleeper := &recordingSleeper{}
	s, err := New(runner, Config{Cooldown: time.Minute}, WithSleeper(sleeper))
	require.NoError(t, err)

	require.NoError(t, s.RunForever(ctx, time.Hour))
	require.Equal(t, 2, calls)
	require.Equal(t, time.Minute, sleeper.waits[0])
}

func TestRunForeverSkipFirstRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &scriptedRunner{results: []error{nil}, cancel: cancel}
	sleeper := &recordingSleeper{}
	s, err := New(runner, Config{SkipFirstRun: true}, WithSleeper(sleeper))
	require.NoError(t, err)

	require.NoError(t, s.RunForever(ctx, 30*time.Minute))
	require.Equal(t, 1, runner.calls)
	require.Equal(t, 30*time.Minute, sleeper.waits[0])
}

func TestRunForeverStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := RunnerFunc(func(context.Context) error {
		t.Fatal("runner must not be called")
		return nil
	})
	s, err := New(runner, Config{})
	require.NoError(t, err)
	require.NoError(t, s.RunForever(ctx, time.Hour))
}

func TestRunForeverReturnsWhenTimerSleepIsInterrupted(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	runner := RunnerFunc(func(context.Context) error {
		close(started)
		return nil
	})
	s, err := New(runner, Config{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.RunForever(ctx, time.Hour) }()
	<-started
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestNewAndRunForeverValidate(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{})
	require.Error(t, err)
	_, err = New(RunnerFunc(func(context.Context) error { return nil }), Config{Cooldown: -time.Second})
	require.Error(t, err)

	s, err := New(RunnerFunc(func(context.Context) error { return nil }), Config{})
	require.NoError(t, err)
	require.ErrorContains(t, s.RunForever(context.Background(), 0), "interval must be > 0")
}
