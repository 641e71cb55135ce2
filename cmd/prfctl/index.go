package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/corpus"
)

var indexCmd = &cobra.Command{
	Use:   "index <corpus.jsonl>",
	Short: "Index a JSON-lines corpus into the data directory",
	Long: `Index every valid document of a JSON-lines corpus and flush it to a
segment. Documents whose id is already indexed are skipped.

Examples:
  prfctl index corpus.jsonl --data-dir data/index`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	engine, err := indexer.NewEngine(cfg.Indexer)
	if err != nil {
		return err
	}
	stats, loadErr := corpus.Load(cmd.Context(), f, engine)
	if err := engine.Close(); err != nil && loadErr == nil {
		loadErr = err
	}
	if loadErr != nil {
		return loadErr
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "indexed:    %d\n", stats.Indexed)
	fmt.Fprintf(out, "duplicates: %d\n", stats.Duplicates)
	fmt.Fprintf(out, "rejected:   %d\n", stats.Rejected)
	return nil
}
