package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/baseline"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/parser"
)

var (
	searchTopN  int
	searchTopK  int
	searchAlpha float64
	searchJSON  bool
)

func init() {
	searchCmd.Flags().IntVarP(&searchTopN, "top-n", "n", 0, "results to return (feedback.defaultTopN when 0)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "feedback documents (feedback.defaultTopK when 0)")
	searchCmd.Flags().Float64VarP(&searchAlpha, "alpha", "a", -1, "weight of the document model in [0,1] (feedback.defaultAlpha when unset)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print the full result as JSON")
}

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Run a pseudo-relevance feedback search",
	Long: `Retrieve the top-k documents for the query, build a feedback model
from them and print the top-n documents reranked with weight alpha on the
original document model.

Examples:
  prfctl search digital library -n 5 -k 3 -a 0.7`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	topN, topK, alpha := searchTopN, searchTopK, searchAlpha
	if topN == 0 {
		topN = cfg.Feedback.DefaultTopN
	}
	if topK == 0 {
		topK = cfg.Feedback.DefaultTopK
	}
	if !cmd.Flags().Changed("alpha") {
		alpha = cfg.Feedback.DefaultAlpha
	}

	query := parser.Parse(strings.Join(args, " "))
	if query.Empty() {
		return fmt.Errorf("query %q has no searchable terms", query.Raw)
	}

	engine, err := indexer.NewEngine(cfg.Indexer)
	if err != nil {
		return err
	}
	defer engine.Close()

	exec := executor.New(baseline.New(engine, cfg.Feedback.Mu), engine, cfg.Feedback.Mu)
	result, err := exec.RetrieveWithFeedback(cmd.Context(), query.Tokens, topN, topK, alpha)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "query: %s  (hits: %d, feedback docs: %s)\n\n",
		strings.Join(result.Query, " "), result.TotalHits, strings.Join(result.FeedbackDocs, ", "))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tDOC\tSCORE")
	for i, doc := range result.Results {
		fmt.Fprintf(w, "%d\t%s\t%.6g\n", i+1, doc.DisplayID, doc.Score)
	}
	return w.Flush()
}
