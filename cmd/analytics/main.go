// Command analytics consumes feedback-search and indexing events from Kafka,
// aggregates them in memory and serves the result at GET /api/v1/analytics.
// When PostgreSQL is reachable, snapshots are persisted periodically and
// served at GET /api/v1/analytics/snapshots.
//
// Usage:
//
//	analytics [--config configs/development.yaml] [--no-store]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/postgres"
)

func main() {
	configPath := pflag.StringP("config", "c", "configs/development.yaml", "path to config file")
	noStore := pflag.Bool("no-store", false, "do not persist snapshots to PostgreSQL")
	port := pflag.IntP("port", "p", 0, "override server.port from the config")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics, "analytics")
		defer shutdownMetrics(context.Background())
	}

	var aggregator *analytics.Aggregator
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents,
		func(ctx context.Context, msg kafka.Message) error {
			return analytics.HandleEvent(aggregator)(ctx, msg)
		})
	defer consumer.Close()
	aggregator = analytics.NewAggregator(consumer)

	go func() {
		if err := aggregator.Start(ctx); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()

	var (
		snapshots analytics.SnapshotLister
		dbProbe   func(context.Context) error
	)
	if !*noStore {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, snapshots disabled", "error", err)
		} else {
			defer db.Close()
			st := store.NewStore(db)
			if err := st.EnsureSchema(ctx); err != nil {
				slog.Error("failed to prepare snapshot schema", "error", err)
				os.Exit(1)
			}
			st.StartPeriodicSave(ctx, aggregator, cfg.Search.SnapshotInterval)
			snapshots = st
			dbProbe = db.Ping
		}
	}

	analyticsHandler := analytics.NewHandler(aggregator, snapshots)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(dbProbe, health.StatusDegraded))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsHandler.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
