package baseline

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/searchtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIndex() *searchtest.Index {
	return searchtest.New(
		searchtest.Doc{ID: 1, Length: 120, Terms: index.TermCounts{"digital": 3, "archive": 5}},
		searchtest.Doc{ID: 2, Length: 80, Terms: index.TermCounts{"library": 4}},
		searchtest.Doc{ID: 3, Length: 200, Terms: index.TermCounts{"digital": 1, "library": 2, "book": 9}},
		searchtest.Doc{ID: 4, Length: 50, Terms: index.TermCounts{"book": 2}},
	).WithCollection(map[string]int64{"digital": 500, "library": 800}, 1_000_000)
}

func TestRetrieveCandidatesAndSnapshot(t *testing.T) {
	r := New(sampleIndex(), 2000)
	res, err := r.Retrieve(context.Background(), []string{"digital", "library"}, 2)
	require.NoError(t, err)

	assert.Len(t, res.Snapshot, 3)
	_, ok := res.Snapshot.Lookup(4)
	assert.False(t, ok, "doc without query terms is not a candidate")

	counts, ok := res.Snapshot.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, index.TermCounts{"digital": 1, "library": 2}, counts)

	assert.Len(t, res.Ranked, 2)
	assert.Len(t, res.Scored, 3)
	for i := 1; i < len(res.Scored); i++ {
		assert.GreaterOrEqual(t, res.Scored[i-1].Score, res.Scored[i].Score)
	}
	assert.Equal(t, res.Scored[0].DocID, res.Ranked[0])
}

func TestRetrieveScoresMatchLikelihood(t *testing.T) {
	idx := sampleIndex()
	query := []string{"digital", "library"}
	res, err := New(idx, 2000).Retrieve(context.Background(), query, 10)
	require.NoError(t, err)

	for _, d := range res.Scored {
		if d.DocID != 1 {
			continue
		}
		want := ranker.Smooth(3, 120, 500, 1_000_000, 2000) * ranker.Smooth(0, 120, 800, 1_000_000, 2000)
		assert.Equal(t, want, d.Score)
	}
}

func TestRetrieveFewerThanK(t *testing.T) {
	res, err := New(sampleIndex(), 2000).Retrieve(context.Background(), []string{"library"}, 10)
	require.NoError(t, err)
	assert.Len(t, res.Ranked, 2)
}

func TestRetrieveUnknownTerms(t *testing.T) {
	res, err := New(sampleIndex(), 2000).Retrieve(context.Background(), []string{"zzz"}, 5)
	require.NoError(t, err)
	assert.Empty(t, res.Ranked)
	assert.Empty(t, res.Snapshot)
}

func TestRetrieveTieBreakByID(t *testing.T) {
	idx := searchtest.New(
		searchtest.Doc{ID: 7, Terms: index.TermCounts{"x": 2}},
		searchtest.Doc{ID: 3, Terms: index.TermCounts{"x": 2}},
		searchtest.Doc{ID: 5, Terms: index.TermCounts{"x": 2}},
	)
	res, err := New(idx, 2000).Retrieve(context.Background(), []string{"x"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5, 7}, res.Ranked)
}

func TestRetrievePropagatesIndexErrors(t *testing.T) {
	idx := sampleIndex()
	idx.PostingsErr = errors.New("segment unreadable")
	_, err := New(idx, 2000).Retrieve(context.Background(), []string{"digital"}, 1)
	assert.ErrorContains(t, err, "segment unreadable")
}

func TestRetrieveHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(sampleIndex(), 2000).Retrieve(ctx, []string{"digital"}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
