// Package parser turns a raw query string into the ordered token list the
// retrieval models score against.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/tokenizer"
)

// Query is a parsed query. Tokens keep their input order and duplicates; a
// repeated word multiplies into the score once per occurrence.
type Query struct {
	Raw    string
	Tokens []string
	// Dropped lists input words that produced no token (stop words,
	// punctuation, single characters).
	Dropped []string
}

// Parse splits raw on whitespace and normalises each word with the same
// tokenizer used at indexing time.
func Parse(raw string) *Query {
	q := &Query{Raw: raw, Tokens: make([]string, 0)}
	for _, word := range strings.Fields(raw) {
		terms := tokenizer.Terms(word)
		if len(terms) == 0 {
			q.Dropped = append(q.Dropped, word)
			continue
		}
		q.Tokens = append(q.Tokens, terms...)
	}
	return q
}

// Empty reports whether the query has no scorable token.
func (q *Query) Empty() bool {
	return len(q.Tokens) == 0
}

// Key is a canonical form of the token sequence, suitable for caching.
func (q *Query) Key() string {
	return strings.Join(q.Tokens, " ")
}
