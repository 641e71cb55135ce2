package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/errors"
)

// RetryConfig controls the backoff schedule. Zero fields take defaults.
// AttemptTimeout bounds each call of fn; RetryIf defaults to Retryable.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	Multiplier     float64
	JitterFraction float64
	RetryIf        func(error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	if c.RetryIf == nil {
		c.RetryIf = Retryable
	}
	return c
}

// Retryable reports whether another attempt could change the outcome.
// Invalid input and caller cancellation never do.
func Retryable(err error) bool {
	return !errors.Is(err, apperrors.ErrInvalidInput) && !errors.Is(err, context.Canceled)
}

// Retry calls fn until it succeeds, attempts run out, or ctx is done.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = attemptOnce(ctx, cfg.AttemptTimeout, fn)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !cfg.RetryIf(lastErr) {
			return fmt.Errorf("%s: non-retryable error: %w", name, lastErr)
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: retry aborted: %w", name, ctx.Err())
		}
		delay := backoff(attempt, cfg)
		logger.Warn("attempt failed, backing off",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"error", lastErr,
			"next_delay", delay,
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry aborted during backoff: %w", name, ctx.Err())
		}
	}
	return fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, lastErr)
}

func attemptOnce(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

func backoff(attempt int, cfg RetryConfig) time.Duration {
	d := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	d += d * cfg.JitterFraction * (2*rand.Float64() - 1)
	if d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	if d < 0 {
		d = float64(cfg.InitialDelay)
	}
	return time.Duration(d)
}
