// Package index holds the in-memory inverted index and the value types
// shared by the segment codec, the engine and the searcher.
package index

// Posting records one document's occurrences of a term.
type Posting struct {
	DocID     int   `json:"doc_id" cbor:"d"`
	Frequency int64 `json:"tf" cbor:"f"`
	Positions []int `json:"positions,omitempty" cbor:"p,omitempty"`
}

// PostingList is sorted by ascending DocID.
type PostingList []Posting

// TermEntry is a term with its full posting list, the unit written to a
// segment.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// CollectionFrequency sums the term frequency across the posting list.
func (e TermEntry) CollectionFrequency() int64 {
	var cf int64
	for _, p := range e.Postings {
		cf += p.Frequency
	}
	return cf
}

// Document is a row of the document table. ID is the internal identifier
// used by scoring; DisplayID is what callers see.
type Document struct {
	ID        int    `json:"id" cbor:"i"`
	DisplayID string `json:"display_id" cbor:"x"`
	Length    int64  `json:"length" cbor:"l"`
}

// TermCounts maps a term to its frequency inside one document.
type TermCounts map[string]int64

// Count returns the frequency of term, 0 when absent.
func (c TermCounts) Count(term string) int64 {
	return c[term]
}

// Snapshot maps internal document ids to the term counts captured for them
// during a retrieval. Its keys are the candidate set.
type Snapshot map[int]TermCounts

// Lookup reports whether docID is part of the snapshot.
func (s Snapshot) Lookup(docID int) (TermCounts, bool) {
	counts, ok := s[docID]
	return counts, ok
}

// Add records tf occurrences of term for docID.
func (s Snapshot) Add(docID int, term string, tf int64) {
	counts, ok := s[docID]
	if !ok {
		counts = make(TermCounts)
		s[docID] = counts
	}
	counts[term] += tf
}
