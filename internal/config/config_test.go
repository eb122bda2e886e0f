package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  request_timeout: 2m
auth:
  enabled: true
  api_key: secret
fetch:
  max_concurrent: 8
  request_delay: 500ms
  timeout: 45s
  retry_attempts: 4
  user_agents: ["agent-a", "agent-b"]
  cloudflare_bypass: true
headless:
  enabled: true
  max_parallel: 3
schedule:
  enabled: true
  interval: 30m
sink:
  file:
    dir: /tmp/scrapes
  redis:
    enabled: true
    addr: localhost:6379
    ttl: 1h
logging:
  development: false
sources:
  disabled: [teams]
  jobs:
    indeed: https://indeed.test
  bookmakers:
    - name: betway
      base_url: https://betway.test/sports
      per_sport: true
  feeds: ["https://news.test/rss"]
targets:
  jobs:
    keywords: [golang, rust]
    location: Cape Town
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.RequestTimeout != 2*time.Minute {
		t.Fatalf("expected server overrides, got %+v", cfg.Server)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	opts := cfg.FetchOptions()
	if opts.MaxConcurrent != 8 || opts.RequestDelay != 500*time.Millisecond || opts.RetryAttempts != 4 {
		t.Fatalf("unexpected fetch options: %+v", opts)
	}
	if len(opts.IdentityPool) != 2 || opts.IdentityPool[1] != "agent-b" {
		t.Fatalf("expected identity pool from user_agents, got %v", opts.IdentityPool)
	}
	if !cfg.Fetch.CloudflareBypass || !cfg.Headless.Enabled || cfg.Headless.MaxParallel != 3 {
		t.Fatalf("expected fetch and headless overrides")
	}
	if cfg.Schedule.Interval != 30*time.Minute || cfg.Schedule.Cooldown != 5*time.Minute {
		t.Fatalf("unexpected schedule: %+v", cfg.Schedule)
	}
	if cfg.Sink.File.Dir != "/tmp/scrapes" || !cfg.Sink.File.Enabled {
		t.Fatalf("expected file sink override, got %+v", cfg.Sink.File)
	}
	if !cfg.Sink.Redis.Enabled || cfg.Sink.Redis.TTL != time.Hour || cfg.Sink.Redis.Prefix != "scraper" {
		t.Fatalf("unexpected redis sink: %+v", cfg.Sink.Redis)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected production logging")
	}

	reg := cfg.RegistryConfig()
	if reg.Jobs.Indeed != "https://indeed.test" || reg.Jobs.LinkedIn != "" {
		t.Fatalf("unexpected job endpoints: %+v", reg.Jobs)
	}
	if len(reg.Bookmakers) != 1 || !reg.Bookmakers[0].PerSport || reg.Bookmakers[0].Name != "betway" {
		t.Fatalf("unexpected bookmakers: %+v", reg.Bookmakers)
	}
	if len(reg.Disabled) != 1 || reg.Disabled[0] != "teams" {
		t.Fatalf("unexpected disabled list: %v", reg.Disabled)
	}
	if len(reg.Feeds) != 1 {
		t.Fatalf("unexpected feeds: %v", reg.Feeds)
	}

	targets := cfg.TargetParams()
	jobs, ok := targets["jobs"]
	if !ok {
		t.Fatalf("expected jobs target, got %v", targets)
	}
	if got := jobs.Strings("keywords"); len(got) != 2 || got[0] != "golang" {
		t.Fatalf("unexpected keywords: %v", got)
	}
	if got := jobs.String("location"); got != "Cape Town" {
		t.Fatalf("unexpected location: %q", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Fetch.MaxConcurrent != 5 || cfg.Fetch.RetryAttempts != 3 || cfg.Fetch.Timeout != 30*time.Second {
		t.Fatalf("unexpected fetch defaults: %+v", cfg.Fetch)
	}
	if cfg.History.Capacity != 100 || cfg.Events.BufferSize != 4096 {
		t.Fatalf("unexpected history/events defaults")
	}
	if cfg.Sink.Postgres.Table != "scraped_records" || cfg.PubSub.Topic != "scrape-runs" {
		t.Fatalf("unexpected sink/pubsub defaults")
	}
	if cfg.TargetParams() != nil {
		t.Fatalf("expected no configured targets")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SCRAPER_SERVER_PORT", "7070")
	t.Setenv("SCRAPER_FETCH_RETRY_ATTEMPTS", "6")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 || cfg.Fetch.RetryAttempts != 6 {
		t.Fatalf("expected env overrides, got port=%d attempts=%d", cfg.Server.Port, cfg.Fetch.RetryAttempts)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Fetch:   FetchConfig{MaxConcurrent: 1, Timeout: time.Second, RetryAttempts: 1},
		History: HistoryConfig{Capacity: 10},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"auth missing api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"invalid concurrency", func(c *Config) { c.Fetch.MaxConcurrent = 0 }, "fetch.max_concurrent"},
		{"negative delay", func(c *Config) { c.Fetch.RequestDelay = -time.Second }, "fetch.request_delay"},
		{"invalid timeout", func(c *Config) { c.Fetch.Timeout = 0 }, "fetch.timeout"},
		{"invalid attempts", func(c *Config) { c.Fetch.RetryAttempts = 0 }, "fetch.retry_attempts"},
		{"headless missing max parallel", func(c *Config) { c.Headless.Enabled = true }, "headless.max_parallel"},
		{"negative run timeout", func(c *Config) { c.Orchestrator.RunTimeout = -1 }, "orchestrator.run_timeout"},
		{"schedule without interval", func(c *Config) { c.Schedule.Enabled = true }, "schedule.interval"},
		{"history capacity", func(c *Config) { c.History.Capacity = 0 }, "history.capacity"},
		{"file sink without dir", func(c *Config) { c.Sink.File.Enabled = true }, "sink.file.dir"},
		{"gcs without bucket", func(c *Config) { c.Sink.GCS.Enabled = true }, "sink.gcs.bucket"},
		{"postgres without dsn", func(c *Config) { c.Sink.Postgres.Enabled = true }, "sink.postgres.dsn"},
		{"redis without addr", func(c *Config) { c.Sink.Redis.Enabled = true }, "sink.redis.addr"},
		{"pubsub without project", func(c *Config) { c.PubSub.Enabled = true; c.PubSub.Topic = "t" }, "pubsub.project_id"},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }, "telemetry.sample_ratio"},
		{"unknown disabled category", func(c *Config) { c.Sources.Disabled = []string{"horoscopes"} }, "sources.disabled"},
		{"unknown target", func(c *Config) { c.Targets = map[string]map[string]any{"horoscopes": {}} }, "targets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
