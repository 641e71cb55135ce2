// Package baseline implements unigram query-likelihood retrieval with
// Dirichlet smoothing. It is the first pass of a feedback search: it picks
// the candidate documents, ranks them, and captures the query-term counts of
// every candidate in a postings snapshot.
package baseline

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/ranker"
)

// Index is the statistics view plus postings access.
type Index interface {
	ranker.IndexStats
	Postings(term string) (index.PostingList, error)
}

// Result is one baseline ranking.
type Result struct {
	// Ranked holds the ids of the best k candidates in rank order.
	Ranked []int
	// Scored holds every candidate in rank order, without display ids.
	Scored []ranker.ScoredDoc
	// Snapshot maps every candidate to its counts of the query terms.
	Snapshot index.Snapshot
}

// Retriever scores candidates with the Dirichlet prior Mu.
type Retriever struct {
	Index Index
	Mu    float64
}

// New creates a Retriever over idx.
func New(idx Index, mu float64) *Retriever {
	return &Retriever{Index: idx, Mu: mu}
}

// Retrieve ranks every document containing at least one query term. A
// document's score is the product over query terms (duplicates included) of
// its smoothed term probability; terms absent from the collection add no
// factor. Ties are broken by ascending internal id.
func (r *Retriever) Retrieve(ctx context.Context, query []string, k int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot := make(index.Snapshot)
	seen := make(map[string]struct{}, len(query))
	for _, term := range query {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		postings, err := r.Index.Postings(term)
		if err != nil {
			return nil, fmt.Errorf("postings of %q: %w", term, err)
		}
		for _, p := range postings {
			snapshot.Add(p.DocID, term, p.Frequency)
		}
	}

	scored := make([]ranker.ScoredDoc, 0, len(snapshot))
	if len(snapshot) > 0 {
		scorer, err := ranker.NewQueryScorer(r.Index, query, r.Mu)
		if err != nil {
			return nil, err
		}
		for docID, counts := range snapshot {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			length, err := r.Index.DocLength(docID)
			if err != nil {
				return nil, fmt.Errorf("length of doc %d: %w", docID, err)
			}
			scored = append(scored, ranker.ScoredDoc{
				DocID: docID,
				Score: scorer.Likelihood(counts, length),
			})
		}
	}
	ranker.Sort(scored)

	top := ranker.Truncate(scored, k)
	ranked := make([]int, len(top))
	for i, d := range top {
		ranked[i] = d.DocID
	}
	return &Result{Ranked: ranked, Scored: scored, Snapshot: snapshot}, nil
}
