// Package resilience provides retry and circuit-breaker wrappers for calls to
// external capabilities such as embedding providers.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls retry behavior with exponential backoff and jitter.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Default: 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Default: 200ms.
	InitialBackoff time.Duration

	// MaxBackoff caps a single delay. Default: 5s.
	MaxBackoff time.Duration

	// Multiplier scales the delay after each attempt. Default: 2.0.
	Multiplier float64

	// Jitter is the ± fraction of random jitter applied to each delay.
	Jitter float64

	// Retryable overrides IsTransient when set.
	Retryable func(err error) bool

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy returns the policy used for embedding calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.25,
	}
}

// PolicyFromConfig builds a RetryPolicy from flat configuration values.
// Zero values keep the defaults.
func PolicyFromConfig(maxAttempts, initialBackoffMs, maxBackoffMs int) RetryPolicy {
	p := DefaultRetryPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	return p
}

// Retry runs fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted, or ctx is done.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) || attempt == p.MaxAttempts-1 {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.Multiplier <= 0 {
		p.Multiplier = d.Multiplier
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := math.Min(float64(p.InitialBackoff)*math.Pow(p.Multiplier, float64(attempt)), float64(p.MaxBackoff))
	if p.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.Jitter
	}
	return time.Duration(math.Max(delay, 0))
}

// LogRetry returns an OnRetry callback that logs each attempt.
func LogRetry(capability string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("resilience: retrying call",
			zap.String("capability", capability),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
