// Package reranker rescores baseline candidates by interpolating each
// document's own smoothed model with the feedback model.
package reranker

import (
	"context"
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/feedback"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/errors"
)

// Params controls one rerank.
type Params struct {
	Mu    float64
	Alpha float64
	TopN  int
}

// Validate rejects an alpha outside [0,1], a non-positive TopN and a
// non-positive Mu.
func (p Params) Validate() error {
	if math.IsNaN(p.Alpha) || p.Alpha < 0 || p.Alpha > 1 {
		return apperrors.Invalid("alpha must be in [0,1], got %v", p.Alpha)
	}
	if p.TopN <= 0 {
		return apperrors.Invalid("topN must be positive, got %d", p.TopN)
	}
	if !(p.Mu > 0) || math.IsInf(p.Mu, 0) {
		return apperrors.Invalid("mu must be a positive finite number, got %v", p.Mu)
	}
	return nil
}

// Rerank scores every candidate of postings as the product over query terms
// of alpha*P(t|doc) + (1-alpha)*P(t|feedback), sorts by descending score
// with ties broken by ascending internal id, and returns the first TopN
// with display ids resolved. Any collaborator failure aborts the call.
func Rerank(ctx context.Context, query []string, postings index.Snapshot, stats ranker.IndexStats, model feedback.Model, p Params) ([]ranker.ScoredDoc, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(postings) == 0 {
		return []ranker.ScoredDoc{}, nil
	}
	scorer, err := ranker.NewQueryScorer(stats, query, p.Mu)
	if err != nil {
		return nil, err
	}

	scored := make([]ranker.ScoredDoc, 0, len(postings))
	for docID, counts := range postings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		length, err := stats.DocLength(docID)
		if err != nil {
			return nil, fmt.Errorf("length of doc %d: %w", docID, err)
		}
		scored = append(scored, ranker.ScoredDoc{
			DocID: docID,
			Score: scorer.Interpolated(counts, length, p.Alpha, model.Prob),
		})
	}
	ranker.Sort(scored)
	top := ranker.Truncate(scored, p.TopN)
	if err := ranker.ResolveDisplayIDs(top, stats); err != nil {
		return nil, err
	}
	return top, nil
}
