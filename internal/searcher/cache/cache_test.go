package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/ranker"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
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

func TestRequestKey(t *testing.T) {
	base := Request{Tokens: "digital library", TopN: 10, TopK: 5, Alpha: 0.5, Mu: 2000}
	assert.True(t, strings.HasPrefix(base.Key(), keyPrefix))
	assert.Equal(t, base.Key(), base.Key())

	variants := []Request{
		{Tokens: "library digital", TopN: 10, TopK: 5, Alpha: 0.5, Mu: 2000},
		{Tokens: "digital library", TopN: 11, TopK: 5, Alpha: 0.5, Mu: 2000},
		{Tokens: "digital library", TopN: 10, TopK: 4, Alpha: 0.5, Mu: 2000},
		{Tokens: "digital library", TopN: 10, TopK: 5, Alpha: 0.51, Mu: 2000},
		{Tokens: "digital library", TopN: 10, TopK: 5, Alpha: 0.5, Mu: 1000},
	}
	for _, v := range variants {
		assert.NotEqual(t, base.Key(), v.Key(), "%+v", v)
	}
}

func sampleResult() *executor.FeedbackResult {
	return &executor.FeedbackResult{
		Query:     []string{"digital"},
		TotalHits: 1,
		Results:   []ranker.ScoredDoc{{DocID: 1, DisplayID: "A", Score: 0.25}},
	}
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	req := Request{Tokens: "digital", TopN: 1, TopK: 1, Alpha: 0.5, Mu: 2000}
	var calls atomic.Int32
	compute := func(context.Context) (*executor.FeedbackResult, error) {
		calls.Add(1)
		return sampleResult(), nil
	}

	first, hit, err := c.GetOrCompute(context.Background(), req, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := c.GetOrCompute(context.Background(), req, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestComputeErrorNotCached(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	req := Request{Tokens: "x", TopN: 1, TopK: 1, Mu: 2000}
	_, _, err := c.GetOrCompute(context.Background(), req, func(context.Context) (*executor.FeedbackResult, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)
	assert.Empty(t, store.data)
}

func TestStoreFailureFallsThrough(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	c := New(store, time.Minute, nil)
	req := Request{Tokens: "x", TopN: 1, TopK: 1, Mu: 2000}

	for i := 0; i < 10; i++ {
		res, hit, err := c.GetOrCompute(context.Background(), req, func(context.Context) (*executor.FeedbackResult, error) {
			return sampleResult(), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.NotNil(t, res)
	}
	assert.Equal(t, "open", c.BreakerState())
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	req := Request{Tokens: "x", TopN: 1, TopK: 1, Mu: 2000}
	c.Set(context.Background(), req, sampleResult())
	store.data["unrelated"] = []byte("keep")

	require.NoError(t, c.Invalidate(context.Background()))
	_, ok := c.Get(context.Background(), req)
	assert.False(t, ok)
	assert.Contains(t, store.data, "unrelated")
}

func TestSharedComputeSurvivesCallerCancel(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	req := Request{Tokens: "digital library", TopN: 1, TopK: 1, Alpha: 0.5, Mu: 2000}

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	compute := func(ctx context.Context) (*executor.FeedbackResult, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return sampleResult(), nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(firstCtx, req, compute)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		res *executor.FeedbackResult
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, _, err := c.GetOrCompute(context.Background(), req, compute)
		second <- outcome{res, err}
	}()

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, sampleResult(), got.res)
	assert.Equal(t, int32(1), calls.Load())

	cached, ok := c.Get(context.Background(), req)
	require.True(t, ok)
	assert.Equal(t, sampleResult(), cached)
}

// lateStore hides its contents from the first Get, as when another replica
// fills the key between the fast-path read and the shared computation.
type lateStore struct {
	*memStore
	gets atomic.Int32
}

func (s *lateStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.gets.Add(1) == 1 {
		return nil, goredis.Nil
	}
	return s.memStore.Get(ctx, key)
}

func TestSharedComputeRechecksCache(t *testing.T) {
	store := &lateStore{memStore: newMemStore()}
	c := New(store, time.Minute, nil)
	req := Request{Tokens: "digital", TopN: 1, TopK: 1, Alpha: 0.5, Mu: 2000}
	c.Set(context.Background(), req, sampleResult())

	var calls atomic.Int32
	res, hit, err := c.GetOrCompute(context.Background(), req, func(context.Context) (*executor.FeedbackResult, error) {
		calls.Add(1)
		return nil, errors.New("compute should not run")
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, sampleResult(), res)
	assert.Zero(t, calls.Load())
	assert.Equal(t, int32(2), store.gets.Load())
}
