// Command searcher serves pseudo-relevance-feedback search over the segments
// written by the indexer into the shared data directory.
//
// Usage:
//
//	searcher [--config configs/development.yaml] [--no-cache] [--no-analytics]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/baseline"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/watcher"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/redis"
)

func main() {
	configPath := pflag.StringP("config", "c", "configs/development.yaml", "path to config file")
	noCache := pflag.Bool("no-cache", false, "disable the Redis result cache")
	noAnalytics := pflag.Bool("no-analytics", false, "do not publish analytics events")
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
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"data_dir", cfg.Indexer.DataDir,
		"mu", cfg.Feedback.Mu,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics, "searcher")
		defer shutdownMetrics(context.Background())
	}

	engine, err := indexer.NewEngine(cfg.Indexer, indexer.WithMetrics(m))
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	slog.Info("index opened", "documents", engine.DocCount(), "segments", engine.SegmentCount())

	var (
		queryCache  *cache.QueryCache
		redisClient *pkgredis.Client
	)
	if !*noCache {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var tracker handler.Tracker
	if !*noAnalytics {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Search.AnalyticsBuffer)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
	}

	if cfg.Search.WatchSegments {
		var invalidator watcher.Invalidator
		if queryCache != nil {
			invalidator = queryCache
		}
		w, err := watcher.New(cfg.Indexer.DataDir, engine, invalidator, 0)
		if err != nil {
			slog.Error("failed to create segment watcher", "error", err)
			os.Exit(1)
		}
		if err := w.Start(ctx); err != nil {
			slog.Error("failed to start segment watcher", "error", err)
			os.Exit(1)
		}
		defer w.Stop()
	}

	exec := executor.New(
		baseline.New(engine, cfg.Feedback.Mu),
		engine,
		cfg.Feedback.Mu,
		executor.WithMetrics(m),
	)
	h := handler.New(exec, queryCache, tracker, cfg.Feedback, cfg.Search.Timeout)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if engine.DocCount() == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "index is empty"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents in %d segments", engine.DocCount(), engine.SegmentCount()),
		}
	})
	var redisProbe func(context.Context) error
	if redisClient != nil {
		redisProbe = redisClient.Ping
	}
	checker.Register("redis", health.PingCheck(redisProbe, health.StatusDegraded))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Search.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Search.RateLimit, cfg.Search.RateWindow)
		limiter.StartCleanup(ctx, 5*time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("search service stopped")
}
