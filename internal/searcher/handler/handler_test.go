package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/errors"
)

type call struct {
	query      []string
	topN, topK int
	alpha      float64
}

type fakeSearcher struct {
	mu    sync.Mutex
	calls []call
	err   error
	delay time.Duration
}

func (f *fakeSearcher) RetrieveWithFeedback(ctx context.Context, query []string, topN, topK int, alpha float64) (*executor.FeedbackResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{query, topN, topK, alpha})
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &executor.FeedbackResult{
		Query:         query,
		TotalHits:     2,
		Results:       []ranker.ScoredDoc{{DocID: 1, DisplayID: "d1", Score: 0.2}},
		FeedbackDocs:  []string{"d1"},
		FeedbackTerms: map[string]float64{"digital": 0.1},
	}, nil
}

func (f *fakeSearcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeTracker struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (f *fakeTracker) Track(e analytics.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

var feedbackCfg = config.FeedbackConfig{
	Mu:           2000,
	DefaultTopN:  10,
	DefaultTopK:  5,
	DefaultAlpha: 0.5,
	MaxTopN:      100,
}

func get(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSearch_AppliesDefaults(t *testing.T) {
	s := &fakeSearcher{}
	tr := &fakeTracker{}
	h := New(s, nil, tr, feedbackCfg, time.Second)

	rec := get(h.Search, "/api/v1/search?q=Digital+Libraries")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, s.calls, 1)
	assert.Equal(t, []string{"digital", "library"}, s.calls[0].query)
	assert.Equal(t, 10, s.calls[0].topN)
	assert.Equal(t, 5, s.calls[0].topK)
	assert.Equal(t, 0.5, s.calls[0].alpha)

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Digital Libraries", resp.RawQuery)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "d1", resp.Results[0].DisplayID)
	assert.False(t, resp.CacheHit)

	require.Len(t, tr.events, 1)
	ev := tr.events[0].(analytics.FeedbackSearchEvent)
	assert.Equal(t, analytics.OutcomeOK, ev.Outcome)
	assert.Equal(t, 1, ev.Returned)
	assert.Equal(t, 1, ev.FeedbackTerms)
}

func TestSearch_ExplicitParamsAndClamp(t *testing.T) {
	s := &fakeSearcher{}
	h := New(s, nil, nil, feedbackCfg, time.Second)

	rec := get(h.Search, "/api/v1/search?q=library&n=5000&k=3&alpha=0.9")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.calls, 1)
	assert.Equal(t, 100, s.calls[0].topN)
	assert.Equal(t, 3, s.calls[0].topK)
	assert.Equal(t, 0.9, s.calls[0].alpha)
}

func TestSearch_BadRequests(t *testing.T) {
	h := New(&fakeSearcher{}, nil, nil, feedbackCfg, time.Second)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=x+library&n=ten",
		"/api/v1/search?q=library&k=1.5",
		"/api/v1/search?q=library&alpha=half",
	} {
		t.Run(target, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, get(h.Search, target).Code)
		})
	}
}

func TestSearch_EmptyParsedQuery(t *testing.T) {
	s := &fakeSearcher{}
	h := New(s, nil, nil, feedbackCfg, time.Second)

	rec := get(h.Search, "/api/v1/search?q=the+a+of")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, s.count())

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Results)
	assert.Equal(t, []string{"the", "a", "of"}, resp.Dropped)
}

func TestSearch_ErrorMapping(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		outcome string
	}{
		{apperrors.Invalid("alpha must be in [0,1]"), http.StatusBadRequest, analytics.OutcomeInvalid},
		{apperrors.IndexIO("postings", fmt.Errorf("disk")), http.StatusServiceUnavailable, analytics.OutcomeIOError},
		{fmt.Errorf("boom"), http.StatusInternalServerError, analytics.OutcomeError},
	}
	for _, tc := range cases {
		t.Run(tc.outcome, func(t *testing.T) {
			tr := &fakeTracker{}
			h := New(&fakeSearcher{err: tc.err}, nil, tr, feedbackCfg, time.Second)
			rec := get(h.Search, "/api/v1/search?q=library")
			assert.Equal(t, tc.status, rec.Code)
			require.Len(t, tr.events, 1)
			assert.Equal(t, tc.outcome, tr.events[0].(analytics.FeedbackSearchEvent).Outcome)
		})
	}
}

func TestSearch_Timeout(t *testing.T) {
	tr := &fakeTracker{}
	h := New(&fakeSearcher{delay: time.Second}, nil, tr, feedbackCfg, 20*time.Millisecond)

	rec := get(h.Search, "/api/v1/search?q=library")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Len(t, tr.events, 1)
	assert.Equal(t, analytics.OutcomeTimeout, tr.events[0].(analytics.FeedbackSearchEvent).Outcome)
}

func TestSearch_CachedSecondCall(t *testing.T) {
	s := &fakeSearcher{}
	qc := cache.New(&memStore{data: map[string][]byte{}}, time.Minute, nil)
	h := New(s, qc, nil, feedbackCfg, time.Second)

	require.Equal(t, http.StatusOK, get(h.Search, "/api/v1/search?q=libraries").Code)
	rec := get(h.Search, "/api/v1/search?q=library")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.count())

	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.CacheHit)

	stats := get(h.CacheStats, "/api/v1/cache/stats")
	var body map[string]any
	require.NoError(t, json.NewDecoder(stats.Body).Decode(&body))
	assert.Equal(t, float64(1), body["hits"])
	assert.Equal(t, "closed", strings.ToLower(body["breaker_state"].(string)))

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusOK, get(h.Search, "/api/v1/search?q=library").Code)
	assert.Equal(t, 2, s.count())
}

func TestCacheEndpoints_Disabled(t *testing.T) {
	h := New(&fakeSearcher{}, nil, nil, feedbackCfg, time.Second)
	assert.Equal(t, http.StatusOK, get(h.CacheStats, "/api/v1/cache/stats").Code)

	rec := httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
