// Command prfctl indexes corpora and runs feedback searches against a local
// data directory, and publishes corpora to the ingest topic.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/logger"
)

var (
	configPath string
	dataDir    string
	logLevel   string
	version    = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "prfctl",
	Short: "Pseudo-relevance feedback search toolkit",
	Long: `prfctl works directly on an index data directory.

Examples:
  # Index a JSON-lines corpus ({"id":..,"title":..,"body":..} per line)
  prfctl index corpus.jsonl --data-dir data/index

  # Search with 5 feedback documents and equal weighting
  prfctl search "digital library" --top-n 10 --top-k 5 --alpha 0.5

  # Send a corpus to the indexer service through Kafka
  prfctl publish corpus.jsonl`,
	Version:       version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override indexer.dataDir")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(publishCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Indexer.DataDir = dataDir
	}
	logger.Setup(logLevel, "text")
	return cfg, nil
}
