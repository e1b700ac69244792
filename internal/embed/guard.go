package embed

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/resilience"
)

// Call outcomes reported to GuardConfig.Observe.
const (
	OutcomeOK          = "ok"
	OutcomeTimeout     = "timeout"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeCanceled    = "canceled"
	OutcomeError       = "error"
)

// DefaultTimeout bounds a single embedding call.
const DefaultTimeout = 5 * time.Second

// GuardConfig configures a Guard. Nil Limiter and Breaker disable those
// stages.
type GuardConfig struct {
	Timeout time.Duration
	Limiter *rate.Limiter
	Retry   resilience.RetryPolicy
	Breaker *resilience.Breaker
	// Observe is called once per Embed with the outcome and total latency.
	Observe func(outcome string, d time.Duration)
}

// Guard wraps an Embedder with a per-call timeout, rate limiting, retry on
// transient errors, and a circuit breaker. A call that exceeds the timeout
// returns model.ErrCapabilityTimeout.
type Guard struct {
	inner Embedder
	cfg   GuardConfig
}

// NewGuard wraps inner.
func NewGuard(inner Embedder, cfg GuardConfig) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Guard{inner: inner, cfg: cfg}
}

// Embed returns the embedding of text.
func (g *Guard) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	call := func(ctx context.Context) ([]float32, error) {
		return resilience.Retry(ctx, g.cfg.Retry, func(ctx context.Context) ([]float32, error) {
			return g.attempt(ctx, text)
		})
	}

	var vec []float32
	var err error
	if g.cfg.Breaker != nil {
		vec, err = resilience.Call(ctx, g.cfg.Breaker, call)
	} else {
		vec, err = call(ctx)
	}

	if g.cfg.Observe != nil {
		g.cfg.Observe(Outcome(err), time.Since(start))
	}
	return vec, err
}

type embedResult struct {
	vec []float32
	err error
}

func (g *Guard) attempt(ctx context.Context, text string) ([]float32, error) {
	if g.cfg.Limiter != nil {
		if err := g.cfg.Limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "embed: rate limit wait")
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	done := make(chan embedResult, 1)
	go func() {
		vec, err := g.inner.Embed(callCtx, text)
		done <- embedResult{vec: vec, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, g.timeoutErr()
		}
		return r.vec, r.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, g.timeoutErr()
	}
}

func (g *Guard) timeoutErr() error {
	zap.L().Debug("embed: call timed out", zap.Duration("timeout", g.cfg.Timeout))
	return eris.Wrapf(model.ErrCapabilityTimeout, "embed: call exceeded %s", g.cfg.Timeout)
}

// Outcome classifies an Embed error for logging and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, model.ErrCapabilityTimeout):
		return OutcomeTimeout
	case errors.Is(err, resilience.ErrBreakerOpen):
		return OutcomeCircuitOpen
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
