// Package executor runs a pseudo-relevance feedback search: baseline
// retrieval, feedback model construction and reranking, strictly in that
// order, with argument validation up front and one error kind per failure.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/baseline"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/feedback"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/reranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/tracing"
)

// BaselineRetriever ranks candidates for a query and returns them together
// with the postings snapshot they were scored from.
type BaselineRetriever interface {
	Retrieve(ctx context.Context, query []string, k int) (*baseline.Result, error)
}

// FeedbackResult is the outcome of one feedback search.
type FeedbackResult struct {
	Query               []string           `json:"query"`
	TotalHits           int                `json:"total_hits"`
	Results             []ranker.ScoredDoc `json:"results"`
	FeedbackDocs        []string           `json:"feedback_docs"`
	MissingFeedbackDocs []int              `json:"missing_feedback_docs,omitempty"`
	FeedbackTerms       map[string]float64 `json:"feedback_terms"`
}

// Executor wires the baseline retriever, the feedback builder and the
// reranker together.
type Executor struct {
	baseline BaselineRetriever
	stats    ranker.IndexStats
	builder  *feedback.Builder
	mu       float64
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics records per-phase latency and outcome counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// New creates an Executor using Dirichlet prior mu for the feedback model
// and the reranker.
func New(retriever BaselineRetriever, stats ranker.IndexStats, mu float64, opts ...Option) *Executor {
	e := &Executor{
		baseline: retriever,
		stats:    stats,
		builder:  feedback.NewBuilder(mu),
		mu:       mu,
		logger:   slog.Default().With("component", "feedback-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks the arguments of a feedback search.
func Validate(query []string, topN, topK int, alpha float64) error {
	switch {
	case len(query) == 0:
		return apperrors.Invalid("query must contain at least one token")
	case math.IsNaN(alpha) || alpha < 0 || alpha > 1:
		return apperrors.Invalid("alpha must be in [0,1], got %v", alpha)
	case topN <= 0:
		return apperrors.Invalid("topN must be positive, got %d", topN)
	case topK <= 0:
		return apperrors.Invalid("topK must be positive, got %d", topK)
	}
	return nil
}

// RetrieveWithFeedback retrieves topK baseline documents, builds a feedback
// model from them and returns the topN candidates reranked with weight alpha
// on the original document model. It fails with ErrInvalidInput on bad
// arguments or when fewer than topK baseline results exist, and with
// ErrIndexIO when a collaborator fails. No partial result is ever returned.
func (e *Executor) RetrieveWithFeedback(ctx context.Context, query []string, topN, topK int, alpha float64) (*FeedbackResult, error) {
	res, err := e.retrieve(ctx, query, topN, topK, alpha)
	e.recordOutcome(err)
	return res, err
}

func (e *Executor) retrieve(ctx context.Context, query []string, topN, topK int, alpha float64) (*FeedbackResult, error) {
	if err := Validate(query, topN, topK, alpha); err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("component", "feedback-executor")

	ctx, root := tracing.StartChildSpan(ctx, "feedback_search")
	defer root.End()
	root.SetAttr("top_n", topN)
	root.SetAttr("top_k", topK)
	root.SetAttr("alpha", alpha)

	var base *baseline.Result
	err := e.phase(ctx, "baseline", func(ctx context.Context) error {
		var err error
		base, err = e.baseline.Retrieve(ctx, query, topK)
		return err
	})
	if err != nil {
		return nil, e.classify(ctx, "baseline retrieval", err)
	}
	if len(base.Ranked) < topK {
		return nil, apperrors.Invalid("topK %d exceeds the %d available baseline results", topK, len(base.Ranked))
	}

	var fb feedback.Result
	err = e.phase(ctx, "feedback_model", func(ctx context.Context) error {
		var err error
		fb, err = e.builder.Build(ctx, base.Ranked, base.Snapshot, e.stats)
		return err
	})
	if err != nil {
		return nil, e.classify(ctx, "building feedback model", err)
	}
	if len(fb.Missing) > 0 && e.metrics != nil {
		e.metrics.FeedbackDocsMissing.Add(float64(len(fb.Missing)))
	}

	var results []ranker.ScoredDoc
	err = e.phase(ctx, "rerank", func(ctx context.Context) error {
		var err error
		results, err = reranker.Rerank(ctx, query, base.Snapshot, e.stats, fb.Model, reranker.Params{
			Mu:    e.mu,
			Alpha: alpha,
			TopN:  topN,
		})
		return err
	})
	if err != nil {
		return nil, e.classify(ctx, "reranking", err)
	}

	feedbackDocs := make([]string, 0, len(fb.Used))
	for _, id := range fb.Used {
		display, err := e.stats.DisplayID(id)
		if err != nil {
			return nil, e.classify(ctx, "resolving feedback documents", err)
		}
		feedbackDocs = append(feedbackDocs, display)
	}

	if e.metrics != nil {
		e.metrics.CandidateSetSize.Observe(float64(len(base.Snapshot)))
		e.metrics.FeedbackModelTerms.Observe(float64(len(fb.Model)))
		e.metrics.FeedbackResultsCount.Observe(float64(len(results)))
	}
	root.SetAttr("candidates", len(base.Snapshot))
	log.Info("feedback search executed",
		"query", query,
		"candidates", len(base.Snapshot),
		"feedback_docs", len(fb.Used),
		"missing_feedback_docs", len(fb.Missing),
		"feedback_terms", len(fb.Model),
		"results", len(results),
	)
	return &FeedbackResult{
		Query:               query,
		TotalHits:           len(base.Snapshot),
		Results:             results,
		FeedbackDocs:        feedbackDocs,
		MissingFeedbackDocs: fb.Missing,
		FeedbackTerms:       fb.Model,
	}, nil
}

// phase runs fn inside a child span and records its latency.
func (e *Executor) phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartChildSpan(ctx, name)
	start := time.Now()
	err := fn(ctx)
	span.End()
	if e.metrics != nil {
		e.metrics.FeedbackPhaseLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		span.SetAttr("error", err.Error())
	}
	return err
}

// classify keeps argument errors and cancellations as they are and marks
// everything else as a collaborator I/O failure.
func (e *Executor) classify(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return apperrors.IndexIO(op, err)
	}
}

func (e *Executor) recordOutcome(err error) {
	if e.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrInvalidInput):
		outcome = "invalid"
	case errors.Is(err, apperrors.ErrIndexIO):
		outcome = "io_error"
	default:
		outcome = "error"
	}
	e.metrics.FeedbackQueriesTotal.WithLabelValues(outcome).Inc()
}
