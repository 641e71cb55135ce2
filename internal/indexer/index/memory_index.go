package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/tokenizer"
)

// MemoryIndex is the mutable write buffer of the engine. It is flushed into
// an immutable segment once it grows past the configured size.
type MemoryIndex struct {
	mu    sync.RWMutex
	index map[string]map[int]*Posting
	docs  map[int]Document
	size  int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[string]map[int]*Posting),
		docs:  make(map[int]Document),
	}
}

// AddDocument tokenizes title and body and records the document under id.
// It returns the document row, whose Length is the kept token count, and the
// document's term counts.
func (m *MemoryIndex) AddDocument(id int, displayID, title, body string) (Document, TermCounts) {
	tokens := tokenizer.Tokenize(title + " " + body)

	termData := make(map[string]*Posting)
	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{DocID: id, Positions: make([]int, 0, 4)}
			termData[token.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
	}
	doc := Document{ID: id, DisplayID: displayID, Length: int64(len(tokens))}
	counts := make(TermCounts, len(termData))
	for term, p := range termData {
		counts[term] = p.Frequency
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for term, posting := range termData {
		if _, exists := m.index[term]; !exists {
			m.index[term] = make(map[int]*Posting)
		}
		m.index[term][id] = posting
		m.size += int64(len(term) + len(posting.Positions)*8 + 64)
	}
	m.docs[id] = doc
	m.size += int64(len(displayID) + 32)
	return doc, counts
}

// Search returns the postings of term sorted by document id.
func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.index[term]
	if !exists {
		return nil
	}
	return sortedPostings(docs)
}

// Entries returns every term with its postings, sorted by term.
func (m *MemoryIndex) Entries() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, docs := range m.index {
		entries = append(entries, TermEntry{Term: term, Postings: sortedPostings(docs)})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Documents returns the document table sorted by id.
func (m *MemoryIndex) Documents() []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]Document, 0, len(m.docs))
	for _, d := range m.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ID < docs[j].ID
	})
	return docs
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func sortedPostings(docs map[int]*Posting) PostingList {
	result := make(PostingList, 0, len(docs))
	for _, posting := range docs {
		result = append(result, *posting)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DocID < result[j].DocID
	})
	return result
}
