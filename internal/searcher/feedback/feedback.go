// Package feedback builds the pseudo-relevance feedback model: the top
// baseline documents are merged into one pseudo-document whose smoothed
// unigram distribution is later interpolated into every candidate's score.
package feedback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/ranker"
)

// Model maps a term to its probability under the feedback documents. Terms
// that never occur in the collection are absent rather than zero.
type Model map[string]float64

// Prob returns the probability of term, 0 when absent.
func (m Model) Prob(term string) float64 {
	return m[term]
}

// Lookup distinguishes an absent term from one with probability 0.
func (m Model) Lookup(term string) (float64, bool) {
	p, ok := m[term]
	return p, ok
}

// Result is a built model plus what went into it.
type Result struct {
	Model Model
	// Used lists the feedback documents found in the snapshot, in input order.
	Used []int
	// Missing lists feedback documents absent from the snapshot.
	Missing []int
	// Length is the aggregate length of the used documents.
	Length int64
}

// pseudoDoc is the concatenation of the feedback documents.
type pseudoDoc struct {
	counts index.TermCounts
	length int64
}

// Builder derives feedback models with Dirichlet prior Mu. It keeps no
// state between calls.
type Builder struct {
	Mu     float64
	logger *slog.Logger
}

func NewBuilder(mu float64) *Builder {
	return &Builder{
		Mu:     mu,
		logger: slog.Default().With("component", "feedback-builder"),
	}
}

// Build merges the snapshot counts of the topK documents and smooths the
// result against the collection. Documents missing from the snapshot are
// skipped with a warning. Each document contributes its full length, not
// just the length covered by its snapshot counts.
func (b *Builder) Build(ctx context.Context, topK []int, postings index.Snapshot, stats ranker.IndexStats) (Result, error) {
	res := Result{Model: make(Model)}
	doc := pseudoDoc{counts: make(index.TermCounts)}

	for _, docID := range topK {
		counts, ok := postings.Lookup(docID)
		if !ok {
			res.Missing = append(res.Missing, docID)
			b.log().WarnContext(ctx, "feedback document not in postings snapshot", "doc_id", docID)
			continue
		}
		length, err := stats.DocLength(docID)
		if err != nil {
			return Result{}, fmt.Errorf("length of feedback doc %d: %w", docID, err)
		}
		for term, tf := range counts {
			doc.counts[term] += tf
		}
		doc.length += length
		res.Used = append(res.Used, docID)
	}
	res.Length = doc.length
	if doc.length == 0 {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	total, err := stats.TotalLength()
	if err != nil {
		return Result{}, fmt.Errorf("total collection length: %w", err)
	}
	for term, tf := range doc.counts {
		cf, err := stats.CollectionFrequency(term)
		if err != nil {
			return Result{}, fmt.Errorf("collection frequency of %q: %w", term, err)
		}
		if cf == 0 {
			continue
		}
		res.Model[term] = ranker.Smooth(tf, doc.length, cf, total, b.Mu)
	}
	return res, nil
}

func (b *Builder) log() *slog.Logger {
	if b.logger == nil {
		return slog.Default()
	}
	return b.logger
}
