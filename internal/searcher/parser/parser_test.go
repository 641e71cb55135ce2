package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw     string
		tokens  []string
		dropped []string
	}{
		{"digital library", []string{"digital", "library"}, nil},
		{"  Digital   LIBRARIES ", []string{"digital", "library"}, nil},
		{"the digital library of the future", []string{"digital", "library", "future"}, []string{"the", "of", "the"}},
		{"data data", []string{"data", "data"}, nil},
		{"digital-library", []string{"digital", "library"}, nil},
		{"AND OR NOT", []string{}, []string{"AND", "OR", "NOT"}},
		{"", []string{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			q := Parse(tt.raw)
			assert.Equal(t, tt.tokens, q.Tokens)
			assert.Equal(t, tt.dropped, q.Dropped)
			assert.Equal(t, tt.raw, q.Raw)
		})
	}
}

func TestKeyPreservesOrder(t *testing.T) {
	assert.Equal(t, "library digital", Parse("Library digital").Key())
	assert.NotEqual(t, Parse("a1 b2").Key(), Parse("b2 a1").Key())
	assert.True(t, Parse("the of").Empty())
}
