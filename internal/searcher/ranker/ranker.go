// Package ranker holds the scoring primitives shared by the baseline
// retriever, the feedback model and the reranker: Dirichlet-smoothed unigram
// probabilities, the scored result type and its deterministic ordering.
package ranker

import (
	"fmt"
	"sort"
)

// DefaultMu is the customary Dirichlet prior.
const DefaultMu = 2000

// IndexStats is read-only access to global index statistics. Document ids
// are internal ids; DisplayID maps them to what callers see.
type IndexStats interface {
	CollectionFrequency(term string) (int64, error)
	DocLength(docID int) (int64, error)
	DisplayID(docID int) (string, error)
	TotalLength() (int64, error)
}

// ScoredDoc is one ranked result.
type ScoredDoc struct {
	DocID     int     `json:"internal_id"`
	DisplayID string  `json:"doc_id"`
	Score     float64 `json:"score"`
}

// Smooth returns the Dirichlet-smoothed probability of a term that occurs tf
// times in a text of length docLen and cf times in a collection of length
// totalLen:
//
//	docLen/(docLen+mu) * tf/docLen + mu/(docLen+mu) * cf/totalLen
//
// An empty text contributes only the background part.
func Smooth(tf, docLen, cf, totalLen int64, mu float64) float64 {
	length := float64(docLen)
	denom := length + mu
	coeff1, coeff2 := length/denom, mu/denom

	var left, right float64
	if docLen > 0 {
		left = float64(tf) / length
	}
	if totalLen > 0 {
		right = float64(cf) / float64(totalLen)
	}
	return coeff1*left + coeff2*right
}

// Sort orders docs by descending score. Equal scores are ordered by
// ascending internal id so results are reproducible.
func Sort(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocID < docs[j].DocID
	})
}

// Truncate returns at most n leading docs. Fewer than n docs are returned
// unchanged.
func Truncate(docs []ScoredDoc, n int) []ScoredDoc {
	if n >= 0 && len(docs) > n {
		return docs[:n]
	}
	return docs
}

// ResolveDisplayIDs fills DisplayID on every doc.
func ResolveDisplayIDs(docs []ScoredDoc, stats IndexStats) error {
	for i := range docs {
		display, err := stats.DisplayID(docs[i].DocID)
		if err != nil {
			return fmt.Errorf("display id of doc %d: %w", docs[i].DocID, err)
		}
		docs[i].DisplayID = display
	}
	return nil
}
