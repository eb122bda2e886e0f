package scrape

import (
	"fmt"
	"strings"
	"time"
)

// Fetch defaults applied when a field is left at its zero value.
const (
	DefaultMaxConcurrent = 5
	DefaultRequestDelay  = time.Second
	DefaultTimeout       = 30 * time.Second
	DefaultRetryAttempts = 3
)

var defaultIdentityPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
}

// DefaultIdentityPool returns a copy of the built-in user agent pool.
func DefaultIdentityPool() []string {
	return append([]string(nil), defaultIdentityPool...)
}

// FetchOptions is the mutable input used to build a FetchConfig.
type FetchOptions struct {
	MaxConcurrent int
	RequestDelay  time.Duration
	Timeout       time.Duration
	RetryAttempts int
	IdentityPool  []string
}

// FetchConfig is the validated, read-only fetch configuration shared by every
// source in a run. The zero value is not usable; build one with
// NewFetchConfig or DefaultFetchConfig.
type FetchConfig struct {
	maxConcurrent int
	requestDelay  time.Duration
	timeout       time.Duration
	retryAttempts int
	identityPool  []string
}

// NewFetchConfig validates opts and returns an immutable FetchConfig. Blank
// identities are discarded and an empty pool falls back to the defaults.
func NewFetchConfig(opts FetchOptions) (FetchConfig, error) {
	if opts.MaxConcurrent <= 0 {
		return FetchConfig{}, fmt.Errorf("max concurrent must be > 0, got %d", opts.MaxConcurrent)
	}
	if opts.RequestDelay < 0 {
		return FetchConfig{}, fmt.Errorf("request delay must be >= 0, got %s", opts.RequestDelay)
	}
	if opts.Timeout <= 0 {
		return FetchConfig{}, fmt.Errorf("timeout must be > 0, got %s", opts.Timeout)
	}
	if opts.RetryAttempts < 1 {
		return FetchConfig{}, fmt.Errorf("retry attempts must be >= 1, got %d", opts.RetryAttempts)
	}
	pool := make([]string, 0, len(opts.IdentityPool))
	for _, identity := range opts.IdentityPool {
		if trimmed := strings.TrimSpace(identity); trimmed != "" {
			pool = append(pool, trimmed)
		}
	}
	if len(pool) == 0 {
		pool = DefaultIdentityPool()
	}
	return FetchConfig{
		maxConcurrent: opts.MaxConcurrent,
		requestDelay:  opts.RequestDelay,
		timeout:       opts.Timeout,
		retryAttempts: opts.RetryAttempts,
		identityPool:  pool,
	}, nil
}

// DefaultFetchConfig returns the configuration used when nothing is set.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		maxConcurrent: DefaultMaxConcurrent,
		requestDelay:  DefaultRequestDelay,
		timeout:       DefaultTimeout,
		retryAttempts: DefaultRetryAttempts,
		identityPool:  DefaultIdentityPool(),
	}
}

// MaxConcurrent is the number of sources allowed in flight at once.
func (c FetchConfig) MaxConcurrent() int { return c.maxConcurrent }

// RequestDelay is the minimum spacing between requests of one source.
func (c FetchConfig) RequestDelay() time.Duration { return c.requestDelay }

// Timeout bounds a single request attempt.
func (c FetchConfig) Timeout() time.Duration { return c.timeout }

// RetryAttempts is the maximum number of attempts per logical fetch.
func (c FetchConfig) RetryAttempts() int { return c.retryAttempts }

// IdentityPool returns a copy of the configured user agents.
func (c FetchConfig) IdentityPool() []string {
	return append([]string(nil), c.identityPool...)
}

// PoolSize reports how many identities are available.
func (c FetchConfig) PoolSize() int { return len(c.identityPool) }

// Identity returns the identity at index i modulo the pool size.
func (c FetchConfig) Identity(i int) string {
	if len(c.identityPool) == 0 {
		return defaultIdentityPool[0]
	}
	if i < 0 {
		i = -i
	}
	return c.identityPool[i%len(c.identityPool)]
}
