package ranker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmoothConcreteScenario(t *testing.T) {
	digital := Smooth(3, 120, 500, 1_000_000, 2000)
	library := Smooth(0, 120, 800, 1_000_000, 2000)

	assert.InDelta(t, (120.0/2120)*(3.0/120)+(2000.0/2120)*(500.0/1000000), digital, 1e-15)
	assert.InDelta(t, (120.0/2120)*(0.0/120)+(2000.0/2120)*(800.0/1000000), library, 1e-15)
	assert.InDelta(t, 4.0/2120, digital, 1e-15)
}

func TestSmoothBounds(t *testing.T) {
	tests := []struct {
		name                     string
		tf, docLen, cf, totalLen int64
		mu                       float64
	}{
		{"all occurrences in doc", 10, 10, 10, 20, 2000},
		{"absent term", 0, 50, 7, 1000, 2000},
		{"tiny mu", 5, 5, 5, 100, 0.001},
		{"empty text", 0, 0, 5, 100, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Smooth(tt.tf, tt.docLen, tt.cf, tt.totalLen, tt.mu)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		})
	}
	assert.InDelta(t, 0.05, Smooth(0, 0, 5, 100, 2000), 1e-15)
}

func TestSortTieBreak(t *testing.T) {
	docs := []ScoredDoc{
		{DocID: 9, Score: 0.5},
		{DocID: 2, Score: 0.1},
		{DocID: 4, Score: 0.5},
		{DocID: 1, Score: 0.9},
	}
	Sort(docs)
	ids := make([]int, len(docs))
	for i, d := range docs {
		ids[i] = d.DocID
	}
	assert.Equal(t, []int{1, 4, 9, 2}, ids)
}

func TestTruncate(t *testing.T) {
	docs := []ScoredDoc{{DocID: 1}, {DocID: 2}, {DocID: 3}}
	assert.Len(t, Truncate(docs, 2), 2)
	assert.Len(t, Truncate(docs, 10), 3)
	assert.Empty(t, Truncate(docs, 0))
}

type displayStats struct {
	IndexStats
	ids map[int]string
}

func (s displayStats) DisplayID(docID int) (string, error) {
	id, ok := s.ids[docID]
	if !ok {
		return "", errors.New("unknown doc")
	}
	return id, nil
}

func TestResolveDisplayIDs(t *testing.T) {
	stats := displayStats{ids: map[int]string{1: "a", 2: "b"}}
	docs := []ScoredDoc{{DocID: 2}, {DocID: 1}}
	require.NoError(t, ResolveDisplayIDs(docs, stats))
	assert.Equal(t, "b", docs[0].DisplayID)
	assert.Equal(t, "a", docs[1].DisplayID)

	err := ResolveDisplayIDs([]ScoredDoc{{DocID: 3}}, stats)
	assert.ErrorContains(t, err, "doc 3")
}
