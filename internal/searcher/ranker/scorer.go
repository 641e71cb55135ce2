package ranker

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/index"
)

// QueryScorer scores documents against one query. Collection statistics are
// fetched once per distinct term when the scorer is built.
type QueryScorer struct {
	query []string
	cf    map[string]int64
	total int64
	mu    float64
}

// NewQueryScorer loads the collection frequency of every query term and the
// total collection length.
func NewQueryScorer(stats IndexStats, query []string, mu float64) (*QueryScorer, error) {
	total, err := stats.TotalLength()
	if err != nil {
		return nil, fmt.Errorf("total collection length: %w", err)
	}
	cf := make(map[string]int64, len(query))
	for _, term := range query {
		if _, ok := cf[term]; ok {
			continue
		}
		n, err := stats.CollectionFrequency(term)
		if err != nil {
			return nil, fmt.Errorf("collection frequency of %q: %w", term, err)
		}
		cf[term] = n
	}
	return &QueryScorer{query: query, cf: cf, total: total, mu: mu}, nil
}

// Probability is the smoothed probability of term in a document with the
// given counts and length. The second result is false for terms that never
// occur in the collection.
func (s *QueryScorer) Probability(term string, counts index.TermCounts, docLen int64) (float64, bool) {
	cf := s.cf[term]
	if cf == 0 {
		return 0, false
	}
	return Smooth(counts.Count(term), docLen, cf, s.total, s.mu), true
}

// Likelihood is the query likelihood of a document: the product of its
// smoothed term probabilities. Out-of-vocabulary terms contribute no factor.
func (s *QueryScorer) Likelihood(counts index.TermCounts, docLen int64) float64 {
	score := 1.0
	for _, term := range s.query {
		p, ok := s.Probability(term, counts, docLen)
		if !ok {
			continue
		}
		score *= p
	}
	return score
}

// Interpolated is the likelihood under the mixture
// alpha*P(t|doc) + (1-alpha)*P(t|feedback), with the same out-of-vocabulary
// rule as Likelihood. With alpha=1 it equals Likelihood exactly.
func (s *QueryScorer) Interpolated(counts index.TermCounts, docLen int64, alpha float64, feedback func(term string) float64) float64 {
	score := 1.0
	for _, term := range s.query {
		pDoc, ok := s.Probability(term, counts, docLen)
		if !ok {
			continue
		}
		score *= alpha*pDoc + (1-alpha)*feedback(term)
	}
	return score
}
