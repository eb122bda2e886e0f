// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/multisource-scraper/internal/manager"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source/apis"
	"github.com/JakeFAU/multisource-scraper/internal/source/financial"
	"github.com/JakeFAU/multisource-scraper/internal/source/jobs"
	"github.com/JakeFAU/multisource-scraper/internal/source/odds"
	"github.com/JakeFAU/multisource-scraper/internal/source/realestate"
	"github.com/JakeFAU/multisource-scraper/internal/source/teams"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server       ServerConfig              `mapstructure:"server"`
	Auth         AuthConfig                `mapstructure:"auth"`
	Fetch        FetchConfig               `mapstructure:"fetch"`
	Headless     HeadlessConfig            `mapstructure:"headless"`
	Orchestrator OrchestratorConfig        `mapstructure:"orchestrator"`
	Schedule     ScheduleConfig            `mapstructure:"schedule"`
	History      HistoryConfig             `mapstructure:"history"`
	Sink         SinkConfig                `mapstructure:"sink"`
	PubSub       PubSubConfig              `mapstructure:"pubsub"`
	Events       EventsConfig              `mapstructure:"events"`
	Logging      LoggingConfig             `mapstructure:"logging"`
	Telemetry    TelemetryConfig           `mapstructure:"telemetry"`
	Sources      SourcesConfig             `mapstructure:"sources"`
	Targets      map[string]map[string]any `mapstructure:"targets"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetchConfig governs the HTTP fetch client shared by every source.
type FetchConfig struct {
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	RequestDelay     time.Duration `mapstructure:"request_delay"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	UserAgents       []string      `mapstructure:"user_agents"`
	RespectRobots    bool          `mapstructure:"respect_robots"`
	MaxBodySize      int           `mapstructure:"max_body_size"`
	CloudflareBypass bool          `mapstructure:"cloudflare_bypass"`
	BlockedDomains   []string      `mapstructure:"blocked_domains"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	MaxParallel       int           `mapstructure:"max_parallel"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
}

// OrchestratorConfig bounds a run. Concurrency comes from fetch.max_concurrent.
type OrchestratorConfig struct {
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

// ScheduleConfig drives the in-process periodic runner.
type ScheduleConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	Cooldown     time.Duration `mapstructure:"cooldown"`
	SkipFirstRun bool          `mapstructure:"skip_first_run"`
}

// HistoryConfig sizes the run history.
type HistoryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// SinkConfig selects where normalized batches go. Several may be enabled.
type SinkConfig struct {
	File     FileSinkConfig     `mapstructure:"file"`
	GCS      GCSSinkConfig      `mapstructure:"gcs"`
	Postgres PostgresSinkConfig `mapstructure:"postgres"`
	Redis    RedisSinkConfig    `mapstructure:"redis"`
	Memory   MemorySinkConfig   `mapstructure:"memory"`
}

// FileSinkConfig writes JSON files to a local directory.
type FileSinkConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	Indent  bool   `mapstructure:"indent"`
}

// GCSSinkConfig writes JSON objects to a bucket.
type GCSSinkConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PostgresSinkConfig controls access to the relational database.
type PostgresSinkConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// RedisSinkConfig caches the latest batch per category for dashboards.
type RedisSinkConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MemorySinkConfig keeps batches in process, useful for dry runs.
type MemorySinkConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// PubSubConfig holds metadata for run notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// EventsConfig tunes the run event hub.
type EventsConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
	Log            bool          `mapstructure:"log"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig configures the tracer provider.
type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// SourcesConfig carries per-site endpoints and credentials. Empty values keep
// each site's production default.
type SourcesConfig struct {
	Disabled   []string          `mapstructure:"disabled"`
	Jobs       JobsSources       `mapstructure:"jobs"`
	Financial  FinancialSources  `mapstructure:"financial"`
	RealEstate RealEstateSources `mapstructure:"real_estate"`
	APIs       APISources        `mapstructure:"apis"`
	Bookmakers []BookmakerSource `mapstructure:"bookmakers"`
	Leagues    []LeagueSource    `mapstructure:"leagues"`
	Feeds      []string          `mapstructure:"feeds"`
}

// JobsSources lists job board base URLs.
type JobsSources struct {
	LinkedIn       string `mapstructure:"linkedin"`
	Indeed         string `mapstructure:"indeed"`
	CareerJunction string `mapstructure:"careerjunction"`
}

// FinancialSources lists market endpoints.
type FinancialSources struct {
	JSE    string `mapstructure:"jse"`
	Crypto string `mapstructure:"crypto"`
	Forex  string `mapstructure:"forex"`
}

// RealEstateSources lists listing site base URLs.
type RealEstateSources struct {
	Property24      string `mapstructure:"property24"`
	PrivateProperty string `mapstructure:"privateproperty"`
}

// APISources holds public API endpoints and keys.
type APISources struct {
	FootballDataURL string `mapstructure:"football_data_url"`
	FootballDataKey string `mapstructure:"football_data_key"`
	WeatherURL      string `mapstructure:"weather_url"`
	WeatherKey      string `mapstructure:"weather_key"`
}

// BookmakerSource is one odds site.
type BookmakerSource struct {
	Name     string `mapstructure:"name"`
	BaseURL  string `mapstructure:"base_url"`
	PerSport bool   `mapstructure:"per_sport"`
}

// LeagueSource is one team listing site.
type LeagueSource struct {
	Sport   string `mapstructure:"sport"`
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.request_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("fetch.max_concurrent", 5)
	v.SetDefault("fetch.request_delay", time.Second)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.retry_attempts", 3)
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("fetch.max_body_size", 10<<20)
	v.SetDefault("fetch.cloudflare_bypass", false)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.navigation_timeout", 45*time.Second)
	v.SetDefault("orchestrator.run_timeout", 10*time.Minute)
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.interval", time.Hour)
	v.SetDefault("schedule.cooldown", 5*time.Minute)
	v.SetDefault("schedule.skip_first_run", false)
	v.SetDefault("history.capacity", 100)
	v.SetDefault("sink.file.enabled", true)
	v.SetDefault("sink.file.dir", "scraped_data")
	v.SetDefault("sink.file.indent", true)
	v.SetDefault("sink.gcs.enabled", false)
	v.SetDefault("sink.gcs.prefix", "scrapes")
	v.SetDefault("sink.postgres.enabled", false)
	v.SetDefault("sink.postgres.table", "scraped_records")
	v.SetDefault("sink.redis.enabled", false)
	v.SetDefault("sink.redis.prefix", "scraper")
	v.SetDefault("sink.redis.ttl", 24*time.Hour)
	v.SetDefault("sink.memory.enabled", false)
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.topic", "scrape-runs")
	v.SetDefault("events.buffer_size", 4096)
	v.SetDefault("events.max_batch_events", 256)
	v.SetDefault("events.max_batch_wait", 250*time.Millisecond)
	v.SetDefault("events.sink_timeout", 10*time.Second)
	v.SetDefault("events.log", true)
	v.SetDefault("logging.development", true)
	v.SetDefault("telemetry.service_name", "multisource-scraper")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Fetch.MaxConcurrent <= 0 {
		return fmt.Errorf("fetch.max_concurrent must be > 0")
	}
	if c.Fetch.RequestDelay < 0 {
		return fmt.Errorf("fetch.request_delay must be >= 0")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.RetryAttempts <= 0 {
		return fmt.Errorf("fetch.retry_attempts must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Orchestrator.RunTimeout < 0 {
		return fmt.Errorf("orchestrator.run_timeout must be >= 0")
	}
	if c.Schedule.Enabled && c.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be > 0 when the schedule is enabled")
	}
	if c.History.Capacity <= 0 {
		return fmt.Errorf("history.capacity must be > 0")
	}
	if c.Sink.File.Enabled && c.Sink.File.Dir == "" {
		return fmt.Errorf("sink.file.dir must be set when the file sink is enabled")
	}
	if c.Sink.GCS.Enabled && c.Sink.GCS.Bucket == "" {
		return fmt.Errorf("sink.gcs.bucket must be set when the gcs sink is enabled")
	}
	if c.Sink.Postgres.Enabled && c.Sink.Postgres.DSN == "" {
		return fmt.Errorf("sink.postgres.dsn must be set when the postgres sink is enabled")
	}
	if c.Sink.Redis.Enabled && c.Sink.Redis.Addr == "" {
		return fmt.Errorf("sink.redis.addr must be set when the redis sink is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set when pubsub is enabled")
	}
	if c.Events.BufferSize < 0 || c.Events.MaxBatchEvents < 0 {
		return fmt.Errorf("events.buffer_size and events.max_batch_events must be >= 0")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	for _, name := range c.Sources.Disabled {
		if !knownCategory(name) {
			return fmt.Errorf("sources.disabled: unknown category %q", name)
		}
	}
	for name := range c.Targets {
		if !knownCategory(name) {
			return fmt.Errorf("targets: unknown category %q", name)
		}
	}
	return nil
}

func knownCategory(name string) bool {
	switch name {
	case manager.CategoryJobs, manager.CategoryFinancial, manager.CategoryRealEstate,
		manager.CategoryOdds, manager.CategoryTeams, manager.CategoryAPI,
		manager.CategoryWeb, manager.CategoryFeeds:
		return true
	}
	return false
}

// FetchOptions converts the fetch section for scrape.NewFetchConfig.
func (c Config) FetchOptions() scrape.FetchOptions {
	return scrape.FetchOptions{
		MaxConcurrent: c.Fetch.MaxConcurrent,
		RequestDelay:  c.Fetch.RequestDelay,
		Timeout:       c.Fetch.Timeout,
		RetryAttempts: c.Fetch.RetryAttempts,
		IdentityPool:  c.Fetch.UserAgents,
	}
}

// RegistryConfig converts the sources section for manager.NewRegistry.
func (c Config) RegistryConfig() manager.RegistryConfig {
	s := c.Sources
	out := manager.RegistryConfig{
		Jobs: jobs.Endpoints{
			LinkedIn:       s.Jobs.LinkedIn,
			Indeed:         s.Jobs.Indeed,
			CareerJunction: s.Jobs.CareerJunction,
		},
		Financial: financial.Endpoints{
			JSE:    s.Financial.JSE,
			Crypto: s.Financial.Crypto,
			Forex:  s.Financial.Forex,
		},
		RealEstate: realestate.Endpoints{
			Property24:      s.RealEstate.Property24,
			PrivateProperty: s.RealEstate.PrivateProperty,
		},
		APIs: apis.Config{
			FootballDataURL: s.APIs.FootballDataURL,
			FootballDataKey: s.APIs.FootballDataKey,
			WeatherURL:      s.APIs.WeatherURL,
			WeatherKey:      s.APIs.WeatherKey,
		},
		Feeds:    append([]string(nil), s.Feeds...),
		Disabled: append([]string(nil), s.Disabled...),
	}
	for _, bm := range s.Bookmakers {
		out.Bookmakers = append(out.Bookmakers, odds.Bookmaker{Name: bm.Name, BaseURL: bm.BaseURL, PerSport: bm.PerSport})
	}
	for _, l := range s.Leagues {
		out.Leagues = append(out.Leagues, teams.League{Sport: l.Sport, Name: l.Name, BaseURL: l.BaseURL})
	}
	return out
}

// TargetParams returns the configured default targets, or nil when none are
// set so the manager falls back to its built-in defaults.
func (c Config) TargetParams() map[string]scrape.Params {
	if len(c.Targets) == 0 {
		return nil
	}
	out := make(map[string]scrape.Params, len(c.Targets))
	for name, params := range c.Targets {
		p := scrape.Params{}
		for k, v := range params {
			p[k] = v
		}
		out[name] = p
	}
	return out
}
