// Package tokenizer turns raw text into the normalised terms stored in the
// index. Indexed text and query words go through the same Normalize step so
// that a query token and a posting key always agree.
package tokenizer

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

type suffixRule struct {
	suffix      string
	replacement string
	minLen      int
}

// Longest suffixes first; the first rule whose result is long enough wins.
var suffixRules = []suffixRule{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// Token is a normalised term with its ordinal among the kept terms of the
// source text.
type Token struct {
	Term     string
	Position int
}

// Tokenize splits text on non-alphanumeric boundaries and normalises each
// word. Dropped words do not consume a position.
func Tokenize(text string) []Token {
	words := split(text)
	tokens := make([]Token, 0, len(words)/2)
	for _, word := range words {
		term, ok := Normalize(word)
		if !ok {
			continue
		}
		tokens = append(tokens, Token{Term: term, Position: len(tokens)})
	}
	return tokens
}

// Terms is Tokenize without positions, preserving order and duplicates.
func Terms(text string) []string {
	words := split(text)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if term, ok := Normalize(word); ok {
			terms = append(terms, term)
		}
	}
	return terms
}

// Normalize lower-cases and stems a single word. It reports false for words
// that are never indexed: single characters and stop words.
func Normalize(word string) (string, bool) {
	word = strings.ToLower(word)
	if len(word) < 2 {
		return "", false
	}
	if _, isStop := stopWords[word]; isStop {
		return "", false
	}
	term := stem(word)
	if term == "" {
		return "", false
	}
	return term, true
}

func split(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func stem(word string) string {
	for _, rule := range suffixRules {
		if !strings.HasSuffix(word, rule.suffix) {
			continue
		}
		if stemmed := word[:len(word)-len(rule.suffix)] + rule.replacement; len(stemmed) >= rule.minLen {
			return stemmed
		}
	}
	return word
}
