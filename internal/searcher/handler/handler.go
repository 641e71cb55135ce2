package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/tracing"
)

type FeedbackSearcher interface {
	RetrieveWithFeedback(ctx context.Context, query []string, topN, topK int, alpha float64) (*executor.FeedbackResult, error)
}

// Tracker receives one analytics event per served search.
type Tracker interface {
	Track(event analytics.Event)
}

// SearchResponse is the JSON body of a successful search.
type SearchResponse struct {
	*executor.FeedbackResult
	RawQuery  string   `json:"raw_query"`
	Dropped   []string `json:"dropped_words,omitempty"`
	TopN      int      `json:"top_n"`
	TopK      int      `json:"top_k"`
	Alpha     float64  `json:"alpha"`
	CacheHit  bool     `json:"cache_hit"`
	LatencyMs int64    `json:"latency_ms"`
}

type Handler struct {
	searcher FeedbackSearcher
	cache    *cache.QueryCache
	tracker  Tracker
	cfg      config.FeedbackConfig
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates the search handler. queryCache and tracker may be nil.
func New(searcher FeedbackSearcher, queryCache *cache.QueryCache, tracker Tracker, cfg config.FeedbackConfig, timeout time.Duration) *Handler {
	return &Handler{
		searcher: searcher,
		cache:    queryCache,
		tracker:  tracker,
		cfg:      cfg,
		timeout:  timeout,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Search serves GET /api/v1/search?q=&n=&k=&alpha=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	raw := params.Get("q")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	topN, err := intParam(params.Get("n"), h.cfg.DefaultTopN)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "n must be an integer")
		return
	}
	if h.cfg.MaxTopN > 0 && topN > h.cfg.MaxTopN {
		topN = h.cfg.MaxTopN
	}
	topK, err := intParam(params.Get("k"), h.cfg.DefaultTopK)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "k must be an integer")
		return
	}
	alpha := h.cfg.DefaultAlpha
	if s := params.Get("alpha"); s != "" {
		alpha, err = strconv.ParseFloat(s, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "alpha must be a number")
			return
		}
	}

	query := parser.Parse(raw)
	if query.Empty() {
		h.writeJSON(w, http.StatusOK, &SearchResponse{
			FeedbackResult: &executor.FeedbackResult{
				Query:         []string{},
				Results:       []ranker.ScoredDoc{},
				FeedbackDocs:  []string{},
				FeedbackTerms: map[string]float64{},
			},
			RawQuery: raw,
			Dropped:  query.Dropped,
			TopN:     topN,
			TopK:     topK,
			Alpha:    alpha,
		})
		return
	}

	ctx, span := tracing.StartSpan(ctx, "feedback_search", middleware.GetRequestID(ctx))
	span.SetAttr("tokens", len(query.Tokens))
	span.SetAttr("top_n", topN)
	span.SetAttr("top_k", topK)

	compute := func(ctx context.Context) (*executor.FeedbackResult, error) {
		return resilience.Call(ctx, h.timeout, "feedback-search", func(ctx context.Context) (*executor.FeedbackResult, error) {
			return h.searcher.RetrieveWithFeedback(ctx, query.Tokens, topN, topK, alpha)
		})
	}

	var (
		result   *executor.FeedbackResult
		cacheHit bool
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, cache.Request{
			Tokens: query.Key(),
			TopN:   topN,
			TopK:   topK,
			Alpha:  alpha,
			Mu:     h.cfg.Mu,
		}, compute)
	} else {
		result, err = compute(ctx)
	}
	span.SetAttr("cache_hit", cacheHit)
	span.End()
	span.Log()

	latency := time.Since(start)
	h.track(ctx, query, topN, topK, alpha, result, cacheHit, latency, err)

	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("feedback search failed", "query", raw, "status", status, "error", err)
		msg := "search failed"
		if status == http.StatusBadRequest {
			msg = err.Error()
		}
		h.writeError(w, status, msg)
		return
	}

	log.Info("feedback search completed",
		"query", raw,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, &SearchResponse{
		FeedbackResult: result,
		RawQuery:       raw,
		Dropped:        query.Dropped,
		TopN:           topN,
		TopK:           topK,
		Alpha:          alpha,
		CacheHit:       cacheHit,
		LatencyMs:      latency.Milliseconds(),
	})
}

func (h *Handler) track(
	ctx context.Context,
	query *parser.Query,
	topN, topK int,
	alpha float64,
	result *executor.FeedbackResult,
	cacheHit bool,
	latency time.Duration,
	err error,
) {
	if h.tracker == nil {
		return
	}
	event := analytics.FeedbackSearchEvent{
		Query:     query.Key(),
		Tokens:    query.Tokens,
		TopN:      topN,
		TopK:      topK,
		Alpha:     alpha,
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Outcome:   outcome(err),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	}
	if result != nil {
		event.TotalHits = result.TotalHits
		event.Returned = len(result.Results)
		event.FeedbackTerms = len(result.FeedbackTerms)
		event.MissingFeedbackDocs = len(result.MissingFeedbackDocs)
	}
	h.tracker.Track(event)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return analytics.OutcomeOK
	case errors.Is(err, apperrors.ErrInvalidInput):
		return analytics.OutcomeInvalid
	case errors.Is(err, apperrors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return analytics.OutcomeTimeout
	case errors.Is(err, apperrors.ErrIndexIO):
		return analytics.OutcomeIOError
	default:
		return analytics.OutcomeError
	}
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":          hits,
		"misses":        misses,
		"total":         total,
		"hit_rate":      fmt.Sprintf("%.1f%%", hitRate),
		"breaker_state": h.cache.BreakerState(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
