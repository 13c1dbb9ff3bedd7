// Package main is the entry point for the clearsky alert engine.
//
// It loads configuration from the environment, opens the Postgres pool,
// wires the alert service, weather provider, notifier, and scheduler, and
// serves the HTTP API. The periodic alert check runs in-process alongside
// the server.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM):
// the HTTP server drains in-flight requests and the scheduler finishes the
// current check pass before the process exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"clearsky/internal/alerts"
	"clearsky/internal/api"
	"clearsky/internal/config"
	"clearsky/internal/db"
	"clearsky/internal/notify"
	"clearsky/internal/observability"
	"clearsky/internal/scheduler"
	"clearsky/internal/weather"
)

const checkTaskName = "alert-check"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("clearsky starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
		"check_period", cfg.Check.Period.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database pool: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	repo := db.NewAlertRepository(pool)
	notifier := notify.NewNotifier(notify.NotifierConfig{
		Sinks:  buildSinks(cfg.Notify, logger),
		Logger: logger,
	})
	alertSvc := alerts.NewService(alerts.ServiceConfig{
		Store:     repo,
		Canceller: notifier,
		Logger:    logger,
	})
	exporter := alerts.NewExporter(alerts.ExporterConfig{Store: repo, Logger: logger})

	snapshots := buildSnapshotProvider(cfg, logger)

	metrics := observability.NewMetrics()

	checker := scheduler.NewChecker(scheduler.CheckerConfig{
		Alerts:       alertSvc,
		Provider:     snapshots,
		Evaluator:    alerts.NewEvaluator(),
		Notifier:     notifier,
		Metrics:      metrics,
		AlertTimeout: cfg.Check.AlertTimeout,
		Logger:       logger,
	})

	runner := scheduler.NewRunner(scheduler.RunnerConfig{Logger: logger})
	runner.Register(scheduler.TaskSpec{
		Name:   checkTaskName,
		Period: cfg.Check.Period,
		Jitter: cfg.Check.Jitter,
		// The database ping is the connectivity gate for scheduled
		// passes: without it a run cannot load due alerts and only
		// burns the retry budget. Weather-endpoint reachability is
		// left to the client's circuit breaker.
		Precondition: func(ctx context.Context) bool {
			return pool.Ping(ctx) == nil
		},
		Run: func(ctx context.Context, now time.Time) error {
			_, err := checker.Run(ctx, now)
			return err
		},
	})

	srv := api.NewServer(api.ServerConfig{
		Alerts:   alertSvc,
		Exporter: exporter,
		Checker:  checker,
		DB:       pool,
		Metrics:  metrics,
		Logger:   logger,
	})

	return serve(ctx, cfg.Server, srv, runner, logger)
}

// openPool parses the connection string, applies pool tuning, and verifies
// connectivity before returning.
func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// buildSnapshotProvider assembles the weather client stack: resilient HTTP
// client, OpenWeather provider, and an optional memcached layer in front.
func buildSnapshotProvider(cfg *config.Config, logger *slog.Logger) weather.Provider {
	base := weather.NewBaseClient(
		&http.Client{Timeout: cfg.Weather.Timeout},
		"openweather",
		weather.RetryPolicy{
			MaxRetries: cfg.Weather.MaxRetries,
			MinWait:    cfg.Weather.MinWait,
			MaxWait:    cfg.Weather.MaxWait,
		},
		cfg.Weather.UserAgent,
	)

	provider := weather.NewOpenWeatherProvider(weather.OpenWeatherConfig{
		Base:    base,
		APIURL:  cfg.Weather.APIURL,
		APIKey:  cfg.Weather.APIKey.Unmask(),
		Timeout: cfg.Weather.Timeout,
		Logger:  logger,
	})

	if cfg.Cache.Addrs == "" {
		return provider
	}
	return weather.NewCachedProvider(weather.CachedProviderConfig{
		Provider: provider,
		Cache:    weather.NewMemcachedCache(cfg.Cache.Addrs, cfg.Cache.Timeout),
		TTL:      cfg.Cache.TTL,
		Logger:   logger,
	})
}

// buildSinks selects the notification sinks. Without a webhook URL the
// engine keeps notifications in memory, which is enough for local
// development and tests.
func buildSinks(cfg config.NotifyConfig, logger *slog.Logger) []notify.Sink {
	if cfg.WebhookURL == "" {
		logger.Warn("no webhook URL configured, notifications stay in memory")
		return []notify.Sink{notify.NewMemorySink()}
	}
	return []notify.Sink{notify.NewWebhookSink(notify.WebhookSinkConfig{
		URL:       cfg.WebhookURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		Logger:    logger,
	})}
}

// serve runs the HTTP server until ctx is cancelled, then shuts down the
// server and drains the scheduler.
func serve(ctx context.Context, cfg config.ServerConfig, handler http.Handler, runner *scheduler.Runner, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}

		runner.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}
