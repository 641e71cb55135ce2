package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/kafka"
)

var publishBatch int

func init() {
	publishCmd.Flags().IntVar(&publishBatch, "batch", 100, "events per Kafka batch")
}

var publishCmd = &cobra.Command{
	Use:   "publish <corpus.jsonl>",
	Short: "Publish a JSON-lines corpus to the document-ingest topic",
	Long: `Validate every document of a JSON-lines corpus and publish the valid
ones as ingest events for the indexer service.

Examples:
  prfctl publish corpus.jsonl --config configs/development.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	docs, err := corpus.ReadAll(f)
	if err != nil {
		return err
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()

	published, rejected, err := publisher.New(producer, publishBatch).Publish(cmd.Context(), docs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published: %d\nrejected:  %d\n", published, rejected)
	return nil
}
