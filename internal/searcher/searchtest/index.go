// Package searchtest provides an in-memory index with hand-constructed
// postings for testing the retrieval and feedback packages.
package searchtest

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/errors"
)

// Doc is one document of the fake index.
type Doc struct {
	ID        int
	DisplayID string
	Length    int64
	Terms     index.TermCounts
}

// Index satisfies ranker.IndexStats and baseline.Index. Collection
// frequencies and the total length default to what the documents imply and
// can be overridden to model a larger collection.
type Index struct {
	Docs  map[int]Doc
	CF    map[string]int64
	Total int64

	// Err, when set, is returned by every method.
	Err error
	// PostingsErr, when set, is returned by Postings only.
	PostingsErr error
}

// New builds an index from docs. A zero Length defaults to the sum of the
// document's term counts; an empty DisplayID defaults to "doc-<id>".
func New(docs ...Doc) *Index {
	x := &Index{Docs: make(map[int]Doc), CF: make(map[string]int64)}
	for _, d := range docs {
		if d.Length == 0 {
			for _, tf := range d.Terms {
				d.Length += tf
			}
		}
		if d.DisplayID == "" {
			d.DisplayID = fmt.Sprintf("doc-%d", d.ID)
		}
		x.Docs[d.ID] = d
		for term, tf := range d.Terms {
			x.CF[term] += tf
		}
		x.Total += d.Length
	}
	return x
}

// WithCollection overrides collection frequencies and the total length.
func (x *Index) WithCollection(cf map[string]int64, total int64) *Index {
	for term, n := range cf {
		x.CF[term] = n
	}
	x.Total = total
	return x
}

func (x *Index) CollectionFrequency(term string) (int64, error) {
	if x.Err != nil {
		return 0, x.Err
	}
	return x.CF[term], nil
}

func (x *Index) DocLength(docID int) (int64, error) {
	d, err := x.doc(docID)
	return d.Length, err
}

func (x *Index) DisplayID(docID int) (string, error) {
	d, err := x.doc(docID)
	return d.DisplayID, err
}

func (x *Index) TotalLength() (int64, error) {
	if x.Err != nil {
		return 0, x.Err
	}
	return x.Total, nil
}

func (x *Index) Postings(term string) (index.PostingList, error) {
	if x.Err != nil {
		return nil, x.Err
	}
	if x.PostingsErr != nil {
		return nil, x.PostingsErr
	}
	var out index.PostingList
	for _, d := range x.Docs {
		if tf := d.Terms[term]; tf > 0 {
			out = append(out, index.Posting{DocID: d.ID, Frequency: tf})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out, nil
}

func (x *Index) doc(docID int) (Doc, error) {
	if x.Err != nil {
		return Doc{}, x.Err
	}
	d, ok := x.Docs[docID]
	if !ok {
		return Doc{}, fmt.Errorf("doc %d: %w", docID, apperrors.ErrDocumentNotFound)
	}
	return d, nil
}
