package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/corpus"
)

var (
	ltURL         string
	ltConcurrency int
	ltDuration    time.Duration
	ltTopN        int
	ltTopK        int
	ltAlpha       float64
	ltQueries     string
)

var defaultLoadQueries = []string{
	"digital library",
	"information retrieval",
	"relevance feedback",
	"language model smoothing",
	"query expansion",
	"document ranking",
	"search engine evaluation",
	"collection statistics",
}

func init() {
	loadtestCmd.Flags().StringVar(&ltURL, "url", "http://localhost:8080", "base URL of the search service")
	loadtestCmd.Flags().IntVar(&ltConcurrency, "concurrency", 10, "number of concurrent workers")
	loadtestCmd.Flags().DurationVar(&ltDuration, "duration", 30*time.Second, "test duration")
	loadtestCmd.Flags().IntVarP(&ltTopN, "top-n", "n", 10, "results per search")
	loadtestCmd.Flags().IntVarP(&ltTopK, "top-k", "k", 5, "feedback documents per search")
	loadtestCmd.Flags().Float64VarP(&ltAlpha, "alpha", "a", 0.5, "document model weight")
	loadtestCmd.Flags().StringVar(&ltQueries, "queries", "", "JSON-lines corpus whose titles are used as queries")
	rootCmd.AddCommand(loadtestCmd)
}

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Drive concurrent feedback searches against a running searcher",
	Long: `Send feedback searches from concurrent workers for a fixed duration and
report throughput, cache hit rate, latency percentiles and status codes.

Examples:
  prfctl loadtest --url http://localhost:8080 --concurrency 20 --duration 1m`,
	Args: cobra.NoArgs,
	RunE: runLoadtest,
}

type loadStats struct {
	total       atomic.Int64
	success     atomic.Int64
	errors      atomic.Int64
	cacheHits   atomic.Int64
	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

func (s *loadStats) record(d time.Duration, status int, cacheHit bool, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.errors.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
	s.mu.Unlock()
}

func runLoadtest(cmd *cobra.Command, _ []string) error {
	queries := defaultLoadQueries
	if ltQueries != "" {
		loaded, err := queriesFromCorpus(ltQueries)
		if err != nil {
			return err
		}
		queries = loaded
	}
	if ltConcurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Feedback Search Load Test ===")
	fmt.Fprintf(out, "Target:      %s\n", ltURL)
	fmt.Fprintf(out, "Concurrency: %d\n", ltConcurrency)
	fmt.Fprintf(out, "Duration:    %s\n", ltDuration)
	fmt.Fprintf(out, "Params:      n=%d k=%d alpha=%g\n", ltTopN, ltTopK, ltAlpha)
	fmt.Fprintf(out, "Queries:     %d unique\n\n", len(queries))

	stats := driveLoad(cmd.Context(), queries)
	return printLoadReport(out, stats)
}

func queriesFromCorpus(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening query corpus: %w", err)
	}
	defer f.Close()
	docs, err := corpus.ReadAll(f)
	if err != nil {
		return nil, err
	}
	queries := make([]string, 0, len(docs))
	for _, d := range docs {
		if q := strings.TrimSpace(d.Title); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no titles in %s to use as queries", path)
	}
	return queries, nil
}

func driveLoad(parent context.Context, queries []string) *loadStats {
	stats := newLoadStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        ltConcurrency * 2,
			MaxIdleConnsPerHost: ltConcurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(parent, ltDuration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < ltConcurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; ctx.Err() == nil; i++ {
				d, status, hit, err := searchOnce(ctx, client, queries[i%len(queries)])
				if ctx.Err() != nil {
					return
				}
				stats.record(d, status, hit, err)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func searchOnce(ctx context.Context, client *http.Client, query string) (time.Duration, int, bool, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("n", strconv.Itoa(ltTopN))
	params.Set("k", strconv.Itoa(ltTopK))
	params.Set("alpha", strconv.FormatFloat(ltAlpha, 'g', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ltURL+"/api/v1/search?"+params.Encode(), nil)
	if err != nil {
		return 0, 0, false, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return time.Since(start), 0, false, err
	}
	defer resp.Body.Close()

	var body struct {
		CacheHit bool `json:"cache_hit"`
	}
	if resp.StatusCode == http.StatusOK {
		_ = json.NewDecoder(resp.Body).Decode(&body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return time.Since(start), resp.StatusCode, body.CacheHit, nil
}

func printLoadReport(out io.Writer, stats *loadStats) error {
	total := stats.total.Load()
	fmt.Fprintln(out, "=== Results ===")
	fmt.Fprintf(out, "Total Requests:  %d\n", total)
	fmt.Fprintf(out, "Successful:      %d\n", stats.success.Load())
	fmt.Fprintf(out, "Errors:          %d\n", stats.errors.Load())
	fmt.Fprintf(out, "Cache Hits:      %d\n", stats.cacheHits.Load())
	if total > 0 {
		fmt.Fprintf(out, "Error Rate:      %.2f%%\n", float64(stats.errors.Load())/float64(total)*100)
		fmt.Fprintf(out, "Requests/sec:    %.2f\n", float64(total)/ltDuration.Seconds())
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Fprintln(out, "\n=== Latency ===")
		fmt.Fprintf(out, "Min:    %s\n", latencies[0])
		fmt.Fprintf(out, "Avg:    %s\n", sum/time.Duration(len(latencies)))
		fmt.Fprintf(out, "P50:    %s\n", latencyPercentile(latencies, 50))
		fmt.Fprintf(out, "P95:    %s\n", latencyPercentile(latencies, 95))
		fmt.Fprintf(out, "P99:    %s\n", latencyPercentile(latencies, 99))
		fmt.Fprintf(out, "Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(out, "\n=== Status Codes ===")
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(out, "  %d: %d\n", code, stats.statusCodes[code])
	}

	if total == 0 {
		return fmt.Errorf("no requests completed, is the searcher running at %s?", ltURL)
	}
	return nil
}

func latencyPercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
