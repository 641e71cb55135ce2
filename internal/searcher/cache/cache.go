// Package cache stores feedback search results in Redis. Identical
// concurrent searches are collapsed with singleflight, and a circuit breaker
// takes Redis out of the request path while it is failing.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/resilience"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "prf:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Request identifies a cacheable feedback search. Mu is part of the key so
// that a configuration change never serves results scored with another
// prior.
type Request struct {
	Tokens string
	TopN   int
	TopK   int
	Alpha  float64
	Mu     float64
}

// Key returns the Redis key of r.
func (r Request) Key() string {
	h := xxhash.New()
	h.WriteString(r.Tokens)
	h.WriteString("|n=")
	h.WriteString(strconv.Itoa(r.TopN))
	h.WriteString("|k=")
	h.WriteString(strconv.Itoa(r.TopK))
	h.WriteString("|a=")
	h.WriteString(strconv.FormatUint(math.Float64bits(r.Alpha), 16))
	h.WriteString("|mu=")
	h.WriteString(strconv.FormatUint(math.Float64bits(r.Mu), 16))
	return keyPrefix + strconv.FormatUint(h.Sum64(), 16)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	cfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
	if m != nil {
		cfg.OnStateChange = func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("redis-cache", cfg),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result for req. Redis errors and undecodable
// entries count as misses.
func (c *QueryCache) Get(ctx context.Context, req Request) (*executor.FeedbackResult, bool) {
	result, ok := c.lookup(ctx, req.Key())
	if !ok {
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return result, true
}

func (c *QueryCache) lookup(ctx context.Context, key string) (*executor.FeedbackResult, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		v, err := c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		data = v
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var result executor.FeedbackResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

// Set stores result under req. Failures are logged and otherwise ignored.
func (c *QueryCache) Set(ctx context.Context, req Request, result *executor.FeedbackResult) {
	key := req.Key()
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

type shared struct {
	result *executor.FeedbackResult
	cached bool
}

// GetOrCompute returns the cached result for req or computes, stores and
// returns it. Concurrent calls for the same request share one computation,
// which runs detached from any single caller's cancellation; computeFn is
// expected to bound itself. A caller whose ctx ends stops waiting without
// cancelling the others. The boolean reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	req Request,
	computeFn func(ctx context.Context) (*executor.FeedbackResult, error),
) (*executor.FeedbackResult, bool, error) {
	if result, ok := c.Get(ctx, req); ok {
		return result, true, nil
	}
	key := req.Key()
	ch := c.group.DoChan(key, func() (any, error) {
		detached := context.WithoutCancel(ctx)
		if result, ok := c.lookup(detached, key); ok {
			return shared{result: result, cached: true}, nil
		}
		result, err := computeFn(detached)
		if err != nil {
			return nil, err
		}
		c.Set(detached, req, result)
		return shared{result: result}, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		v := res.Val.(shared)
		return v.result, v.cached, nil
	case <-ctx.Done():
		return nil, false, fmt.Errorf("waiting for shared search: %w", ctx.Err())
	}
}

// Invalidate deletes every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the circuit breaker state as a string.
func (c *QueryCache) BreakerState() string {
	return c.breaker.GetState().String()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
