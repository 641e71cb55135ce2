// Package ratelimit implements an in-memory per-client token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// Limiter grants each key limit tokens per window, refilled continuously.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow consumes one token of key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: float64(l.limit - 1), lastCheck: now}
		return l.limit > 0
	}

	elapsed := now.Sub(b.lastCheck)
	b.lastCheck = now
	b.tokens += elapsed.Seconds() * float64(l.limit) / l.window.Seconds()
	if b.tokens > float64(l.limit) {
		b.tokens = float64(l.limit)
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RetryAfter is the time one token takes to refill.
func (l *Limiter) RetryAfter() time.Duration {
	if l.limit <= 0 {
		return l.window
	}
	return l.window / time.Duration(l.limit)
}

// StartCleanup drops buckets idle for two windows until ctx is cancelled.
func (l *Limiter) StartCleanup(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.window)
	for key, b := range l.buckets {
		if b.lastCheck.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
