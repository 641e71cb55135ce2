package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/kafka"
)

// latencyWindow bounds the samples kept for percentile estimation.
const latencyWindow = 10000

type AggregatedStats struct {
	TotalSearches       int64            `json:"total_searches"`
	TotalDocIndexed     int64            `json:"total_docs_indexed"`
	CacheHits           int64            `json:"cache_hits"`
	CacheMisses         int64            `json:"cache_misses"`
	ZeroResultCount     int64            `json:"zero_result_count"`
	MissingFeedbackDocs int64            `json:"missing_feedback_docs"`
	Outcomes            map[string]int64 `json:"outcomes"`
	AvgLatencyMs        float64          `json:"avg_latency_ms"`
	P50LatencyMs        int64            `json:"p50_latency_ms"`
	P95LatencyMs        int64            `json:"p95_latency_ms"`
	P99LatencyMs        int64            `json:"p99_latency_ms"`
	AvgAlpha            float64          `json:"avg_alpha"`
	AvgFeedbackTerms    float64          `json:"avg_feedback_terms"`
	TopQueries          []QueryCount     `json:"top_queries"`
	ZeroResultQueries   []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute    float64          `json:"queries_per_minute"`
	AvgIndexedDocLength float64          `json:"avg_indexed_doc_length"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds analytics events into running statistics.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	totalDocIndexed   atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	missingFeedback   atomic.Int64
	latencies         []int64
	next              int
	alphaSum          float64
	feedbackTermSum   int64
	indexedLengthSum  int64
	outcomes          map[string]int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, latencyWindow),
		outcomes:          make(map[string]int64),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		consumer:          consumer,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent dispatches on the event-type header. Undecodable and unknown
// events are logged and acknowledged so they do not block the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		switch EventType(msg.Type) {
		case EventFeedbackSearch:
			event, err := kafka.DecodeJSON[FeedbackSearchEvent](msg.Value)
			if err != nil {
				agg.logger.Error("failed to decode search event", "error", err)
				return nil
			}
			agg.RecordSearch(event)
		case EventIndexDoc:
			event, err := kafka.DecodeJSON[IndexEvent](msg.Value)
			if err != nil {
				agg.logger.Error("failed to decode index event", "error", err)
				return nil
			}
			agg.RecordIndex(event)
		default:
			agg.logger.Debug("ignoring analytics event", "type", msg.Type)
		}
		return nil
	}
}

func (a *Aggregator) RecordSearch(event FeedbackSearchEvent) {
	a.totalSearches.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	zero := event.Outcome == OutcomeOK && event.Returned == 0
	if zero {
		a.zeroResults.Add(1)
	}
	a.missingFeedback.Add(int64(event.MissingFeedbackDocs))

	outcome := event.Outcome
	if outcome == "" {
		outcome = OutcomeOK
	}

	a.mu.Lock()
	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
	a.alphaSum += event.Alpha
	a.feedbackTermSum += int64(event.FeedbackTerms)
	a.outcomes[outcome]++
	a.queryCounts[event.Query]++
	if zero {
		a.zeroResultQueries[event.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) RecordIndex(event IndexEvent) {
	a.totalDocIndexed.Add(1)
	a.mu.Lock()
	a.indexedLengthSum += event.Length
	a.mu.Unlock()
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:       a.totalSearches.Load(),
		TotalDocIndexed:     a.totalDocIndexed.Load(),
		CacheHits:           a.cacheHits.Load(),
		CacheMisses:         a.cacheMisses.Load(),
		ZeroResultCount:     a.zeroResults.Load(),
		MissingFeedbackDocs: a.missingFeedback.Load(),
		Outcomes:            make(map[string]int64, len(a.outcomes)),
	}
	for k, v := range a.outcomes {
		stats.Outcomes[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if stats.TotalSearches > 0 {
		stats.AvgAlpha = a.alphaSum / float64(stats.TotalSearches)
		stats.AvgFeedbackTerms = float64(a.feedbackTermSum) / float64(stats.TotalSearches)
	}
	if stats.TotalDocIndexed > 0 {
		stats.AvgIndexedDocLength = float64(a.indexedLengthSum) / float64(stats.TotalDocIndexed)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
