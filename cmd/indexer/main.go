// Command indexer consumes document-ingest events from Kafka and writes
// segments into the data directory shared with the searcher.
//
// Usage:
//
//	indexer [--config configs/development.yaml] [--bootstrap corpus.jsonl]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/metrics"
)

func main() {
	configPath := pflag.StringP("config", "c", "configs/development.yaml", "path to config file")
	bootstrap := pflag.String("bootstrap", "", "JSONL corpus to index before consuming from kafka")
	batchSize := pflag.Int("analytics-batch", 100, "index events per analytics batch")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer service", "data_dir", cfg.Indexer.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics, "indexer")
		defer shutdownMetrics(context.Background())
	}

	engine, err := indexer.NewEngine(cfg.Indexer, indexer.WithMetrics(m))
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}

	if *bootstrap != "" {
		if err := loadCorpus(ctx, engine, *bootstrap); err != nil {
			slog.Error("bootstrap failed", "path", *bootstrap, "error", err)
			engine.Close()
			os.Exit(1)
		}
	}

	engine.StartFlushLoop(ctx)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	events := collector.NewBatchCollector(producer, *batchSize, cfg.Indexer.FlushInterval)
	events.Start(ctx)

	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentIngest,
		consumer.HandleMessage(consumer.WithTracking(engine, events)),
	)
	indexConsumer := consumer.New(kafkaConsumer)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	if err := kafkaConsumer.Close(); err != nil {
		slog.Error("closing kafka consumer", "error", err)
	}

	slog.Info("flushing index before shutdown")
	if err := engine.Close(); err != nil {
		slog.Error("final flush failed", "error", err)
	}
	events.Close()
	if err := producer.Close(); err != nil {
		slog.Error("closing analytics producer", "error", err)
	}
	slog.Info("indexer service stopped")
}

func loadCorpus(ctx context.Context, engine *indexer.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	stats, err := corpus.Load(ctx, f, engine)
	if err != nil {
		return err
	}
	slog.Info("bootstrap corpus indexed",
		"indexed", stats.Indexed,
		"duplicates", stats.Duplicates,
		"rejected", stats.Rejected,
	)
	return engine.Flush()
}
