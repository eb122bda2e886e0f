// Package server builds the scraper's dependency graph from configuration and
// runs it as an HTTP service with an optional in-process scheduler.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/api"
	"github.com/JakeFAU/multisource-scraper/internal/clock/system"
	"github.com/JakeFAU/multisource-scraper/internal/config"
	"github.com/JakeFAU/multisource-scraper/internal/events"
	eventsinks "github.com/JakeFAU/multisource-scraper/internal/events/sinks"
	"github.com/JakeFAU/multisource-scraper/internal/fetcher"
	collyfetcher "github.com/JakeFAU/multisource-scraper/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/multisource-scraper/internal/fetcher/headless"
	restyfetcher "github.com/JakeFAU/multisource-scraper/internal/fetcher/resty"
	"github.com/JakeFAU/multisource-scraper/internal/history"
	"github.com/JakeFAU/multisource-scraper/internal/id/uuid"
	"github.com/JakeFAU/multisource-scraper/internal/logging"
	"github.com/JakeFAU/multisource-scraper/internal/manager"
	"github.com/JakeFAU/multisource-scraper/internal/orchestrator"
	memorypublisher "github.com/JakeFAU/multisource-scraper/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/multisource-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/multisource-scraper/internal/scheduler"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/sink"
	filesink "github.com/JakeFAU/multisource-scraper/internal/sink/file"
	gcssink "github.com/JakeFAU/multisource-scraper/internal/sink/gcs"
	memorysink "github.com/JakeFAU/multisource-scraper/internal/sink/memory"
	pgsink "github.com/JakeFAU/multisource-scraper/internal/sink/postgres"
	redissink "github.com/JakeFAU/multisource-scraper/internal/sink/redis"
	"github.com/JakeFAU/multisource-scraper/internal/source"
	"github.com/JakeFAU/multisource-scraper/internal/telemetry"
)

// Version is stamped into traces and logs. Overridden at link time.
var Version = "dev"

// Option customizes Build.
type Option func(*buildOptions)

type buildOptions struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
}

// WithLogger uses logger instead of building one from cfg.Logging.
func WithLogger(logger *zap.Logger) Option {
	return func(o *buildOptions) { o.logger = logger }
}

// WithRegisterer registers the event collectors against reg instead of the
// default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *buildOptions) { o.registerer = reg }
}

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	manager   *manager.Manager
	apiServer *api.Server
	scheduler *scheduler.Scheduler
	hub       *events.Hub

	publisher      *gcppublisher.Publisher
	storage        *storage.Client
	postgres       *pgsink.Sink
	redis          *redissink.Sink
	renderer       *headlessfetcher.Renderer
	tracerShutdown func(context.Context) error
	ownsLogger     bool
	closeOnce      sync.Once
}

// Manager returns the run coordinator for one-shot commands.
func (a *App) Manager() *manager.Manager { return a.manager }

// Handler returns the HTTP handler of the API server.
func (a *App) Handler() http.Handler { return a.apiServer.Handler() }

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Build creates the application's dependencies. On error everything created
// so far is closed.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (app *App, err error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app = &App{cfg: cfg, logger: bo.logger}
	if app.logger == nil {
		app.logger, err = logging.New(cfg.Logging.Development,
			logging.WithLevel(cfg.Logging.Level),
			logging.WithFields(map[string]any{"service": cfg.Telemetry.ServiceName, "version": Version}))
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		app.ownsLogger = true
		zap.ReplaceGlobals(app.logger)
	}
	defer func() {
		if err != nil {
			_ = app.Close(context.WithoutCancel(ctx))
			app = nil
		}
	}()

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     Version,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return app, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerShutdown = tp.Shutdown

	app.logger.Info("building application dependencies")
	clock := system.New()

	deps, err := setupFetchers(app, clock)
	if err != nil {
		return app, err
	}
	registry := manager.NewRegistry(deps, cfg.RegistryConfig())
	app.logger.Info("sources registered", zap.Strings("categories", registry.Names()))

	store, samples, err := setupSinks(ctx, app, clock)
	if err != nil {
		return app, err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return app, err
	}

	broadcaster := eventsinks.NewBroadcaster(app.logger.Named("events_ws"))
	if err = setupEvents(ctx, app, bo.registerer, publisher, broadcaster); err != nil {
		return app, err
	}

	ids := uuid.New()
	runner, err := orchestrator.New(orchestrator.Config{
		MaxConcurrent: cfg.Fetch.MaxConcurrent,
		RunTimeout:    cfg.Orchestrator.RunTimeout,
	},
		orchestrator.WithEmitter(app.hub),
		orchestrator.WithClock(clock),
		orchestrator.WithIDs(ids),
		orchestrator.WithLogger(app.logger),
	)
	if err != nil {
		return app, fmt.Errorf("orchestrator init failed: %w", err)
	}

	app.manager, err = manager.New(manager.Deps{
		Sources: registry,
		Runner:  runner,
		Sink:    store,
		Samples: samples,
		History: history.New(cfg.History.Capacity),
		Clock:   clock,
		IDs:     ids,
		Targets: cfg.TargetParams(),
		Logger:  app.logger,
	})
	if err != nil {
		return app, fmt.Errorf("manager init failed: %w", err)
	}

	if cfg.Schedule.Enabled {
		app.scheduler, err = scheduler.New(app.manager, scheduler.Config{
			Cooldown:     cfg.Schedule.Cooldown,
			SkipFirstRun: cfg.Schedule.SkipFirstRun,
		}, scheduler.WithLogger(app.logger))
		if err != nil {
			return app, fmt.Errorf("scheduler init failed: %w", err)
		}
	}

	apiKey := ""
	if cfg.Auth.Enabled {
		apiKey = cfg.Auth.APIKey
	}
	apiOpts := []api.Option{api.WithLogger(app.logger), api.WithEvents(broadcaster)}
	if app.postgres != nil {
		apiOpts = append(apiOpts, api.WithReadiness("postgres", app.postgres.Ping))
	}
	if app.redis != nil {
		apiOpts = append(apiOpts, api.WithReadiness("redis", app.redis.Ping))
	}
	if app.publisher != nil {
		topic := cfg.PubSub.Topic
		apiOpts = append(apiOpts, api.WithReadiness("pubsub", func(ctx context.Context) error {
			return app.publisher.CheckTopic(ctx, topic)
		}))
	}
	app.apiServer = api.NewServer(app.manager, api.Config{
		APIKey:         apiKey,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, apiOpts...)

	return app, nil
}

func setupFetchers(app *App, clock scrape.Clock) (source.Deps, error) {
	cfg := app.cfg
	fetchCfg, err := scrape.NewFetchConfig(cfg.FetchOptions())
	if err != nil {
		return source.Deps{}, fmt.Errorf("fetch config invalid: %w", err)
	}

	pages := fetcher.New(fetchCfg, collyfetcher.New(collyfetcher.Config{
		RespectRobots: cfg.Fetch.RespectRobots,
		Timeout:       cfg.Fetch.Timeout,
		MaxBodySize:   cfg.Fetch.MaxBodySize,
	}), app.logger.Named("pages"), fetcher.WithBlockedHosts(cfg.Fetch.BlockedDomains))
	apiClient := fetcher.New(fetchCfg, restyfetcher.New(restyfetcher.Config{
		Timeout:          cfg.Fetch.Timeout,
		CloudflareBypass: cfg.Fetch.CloudflareBypass,
	}), app.logger.Named("api_fetch"), fetcher.WithBlockedHosts(cfg.Fetch.BlockedDomains))
	app.logger.Info("fetch clients ready",
		zap.Int("max_concurrent", fetchCfg.MaxConcurrent()),
		zap.Int("retry_attempts", fetchCfg.RetryAttempts()),
		zap.Int("identities", fetchCfg.PoolSize()),
		zap.Bool("respect_robots", cfg.Fetch.RespectRobots),
		zap.Strings("blocked_domains", cfg.Fetch.BlockedDomains))

	var renderer fetcher.Renderer = headlessfetcher.NewNoop()
	if cfg.Headless.Enabled {
		r, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			NavigationTimeout: cfg.Headless.NavigationTimeout,
		})
		if err != nil {
			app.logger.Warn("headless renderer init failed", zap.Error(err))
		} else {
			app.renderer = r
			renderer = r
			app.logger.Info("using headless renderer", zap.Int("max_parallel", cfg.Headless.MaxParallel))
		}
	}

	return source.Deps{
		Pages:    pages,
		API:      apiClient,
		Renderer: renderer,
		Config:   fetchCfg,
		Clock:    clock,
		Logger:   app.logger,
	}, nil
}

// setupSinks opens every enabled sink. Samples come from the first backend
// that can read back, preferring the redis cache.
func setupSinks(ctx context.Context, app *App, clock scrape.Clock) (scrape.Sink, scrape.SampleReader, error) {
	cfg := app.cfg.Sink
	var (
		named   []sink.Named
		readers []scrape.SampleReader
	)

	if cfg.Redis.Enabled {
		rs, err := redissink.New(ctx, redissink.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("redis sink init failed: %w", err)
		}
		app.redis = rs
		named = append(named, sink.Named{Name: "redis", Sink: rs})
		readers = append(readers, rs)
		app.logger.Info("redis sink initialized", zap.String("addr", cfg.Redis.Addr))
	}
	if cfg.File.Enabled {
		fs, err := filesink.New(filesink.Config{Dir: cfg.File.Dir, Indent: cfg.File.Indent}, clock)
		if err != nil {
			return nil, nil, fmt.Errorf("file sink init failed: %w", err)
		}
		named = append(named, sink.Named{Name: "file", Sink: fs})
		readers = append(readers, fs)
		app.logger.Info("file sink initialized", zap.String("dir", cfg.File.Dir))
	}
	if cfg.GCS.Enabled {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		gs, err := gcssink.New(client, gcssink.Config{Bucket: cfg.GCS.Bucket, Prefix: cfg.GCS.Prefix}, clock)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs sink init failed: %w", err)
		}
		named = append(named, sink.Named{Name: "gcs", Sink: gs})
		readers = append(readers, gs)
		app.logger.Info("gcs sink initialized", zap.String("bucket", cfg.GCS.Bucket))
	}
	if cfg.Postgres.Enabled {
		ps, err := pgsink.New(ctx, pgsink.Config{
			DSN:             cfg.Postgres.DSN,
			Table:           cfg.Postgres.Table,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres sink init failed: %w", err)
		}
		app.postgres = ps
		named = append(named, sink.Named{Name: "postgres", Sink: ps})
		app.logger.Info("postgres sink initialized", zap.String("table", cfg.Postgres.Table))
	}
	if cfg.Memory.Enabled || len(named) == 0 {
		if len(named) == 0 {
			app.logger.Warn("no sink configured, keeping batches in memory")
		}
		ms := memorysink.New()
		named = append(named, sink.Named{Name: "memory", Sink: ms})
		readers = append(readers, ms)
	}

	var samples scrape.SampleReader
	if len(readers) > 0 {
		samples = readers[0]
	}
	return sink.NewMulti(named...), samples, nil
}

func setupPublisher(ctx context.Context, app *App) (scrape.Publisher, error) {
	cfg := app.cfg.PubSub
	if !cfg.Enabled {
		app.logger.Info("pubsub disabled, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	pub, err := gcppublisher.Dial(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.publisher = pub
	if err := pub.CheckTopic(ctx, cfg.Topic); err != nil {
		return nil, fmt.Errorf("pubsub topic check failed: %w", err)
	}
	app.logger.Info("pubsub publisher initialized",
		zap.String("project", cfg.ProjectID),
		zap.String("topic", cfg.Topic))
	return pub, nil
}

func setupEvents(
	ctx context.Context,
	app *App,
	reg prometheus.Registerer,
	publisher scrape.Publisher,
	broadcaster *eventsinks.Broadcaster,
) error {
	cfg := app.cfg.Events
	sinkList := []events.Sink{broadcaster}

	prom, err := eventsinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("event metrics init failed: %w", err)
	}
	sinkList = append(sinkList, prom)

	pubSink, err := eventsinks.NewPublisherSink(publisher, app.cfg.PubSub.Topic)
	if err != nil {
		return fmt.Errorf("event publisher init failed: %w", err)
	}
	sinkList = append(sinkList, pubSink)

	if cfg.Log {
		sinkList = append(sinkList, eventsinks.NewLogSink(app.logger.Named("events_log")))
	}

	hubCfg := events.Config{
		BufferSize:     cfg.BufferSize,
		MaxBatchEvents: cfg.MaxBatchEvents,
		MaxBatchWait:   cfg.MaxBatchWait,
		SinkTimeout:    cfg.SinkTimeout,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         app.logger.Named("events_hub"),
	}
	app.hub = events.NewHub(hubCfg, sinkList...)
	app.logger.Info("event hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait))
	return nil
}

// Run serves HTTP (and the scheduler when enabled) until ctx is canceled or
// SIGINT/SIGTERM arrives, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}

	schedDone := make(chan struct{})
	if a.scheduler != nil {
		go func() {
			defer close(schedDone)
			if err := a.scheduler.RunForever(ctx, a.cfg.Schedule.Interval); err != nil {
				a.logger.Error("scheduler stopped", zap.Error(err))
			}
		}()
	} else {
		close(schedDone)
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("scheduler did not stop before shutdown deadline")
	}

	closeErr := a.Close(shutdownCtx)
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}

// Close gracefully shuts down the application. It is safe on a partially
// built App and only the first call does any work.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.closeInfrastructure(ctx)
		a.closeObservability(ctx)
	})
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	// The hub flushes pending events and closes its sinks, including the
	// publisher sink, so it goes before the publisher itself.
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("event hub close failed", zap.Error(err))
		}
		if n := a.hub.Dropped(); n > 0 {
			a.logger.Warn("events dropped during run", zap.Int64("dropped", n))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.renderer != nil {
		a.renderer.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	if a.ownsLogger {
		// Sync on stderr-backed loggers fails with EINVAL on some platforms.
		_ = a.logger.Sync()
	}
}
