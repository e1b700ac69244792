package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown elapses.
	BreakerOpen
	// BreakerHalfOpen lets a probe through to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a call is rejected by an open breaker.
var ErrBreakerOpen = eris.New("circuit breaker is open")

// BreakerConfig controls Breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Default: 5.
	FailureThreshold int

	// Cooldown is how long the breaker stays open. Default: 30s.
	Cooldown time.Duration

	// OnStateChange is called on every transition.
	OnStateChange func(from, to BreakerState)
}

// Breaker stops calling a failing capability for a cooldown period so that
// every candidate in a run does not pay the full timeout.
type Breaker struct {
	cfg   BreakerConfig
	mu    sync.Mutex
	state BreakerState

	failures int
	openedAt time.Time

	now func() time.Time
}

// NewBreaker creates a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Call runs fn through the breaker. Caller cancellation is not counted as a
// failure.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	v, err := fn(ctx)
	b.record(err)
	return v, err
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerOpen {
		return nil
	}
	if b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.transition(BreakerHalfOpen)
		return nil
	}
	return ErrBreakerOpen
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || errors.Is(err, context.Canceled) {
		if err == nil {
			b.failures = 0
			if b.state == BreakerHalfOpen {
				b.transition(BreakerClosed)
			}
		}
		return
	}

	b.failures++
	switch {
	case b.state == BreakerHalfOpen:
		b.openedAt = b.now()
		b.transition(BreakerOpen)
	case b.state == BreakerClosed && b.failures >= b.cfg.FailureThreshold:
		b.openedAt = b.now()
		b.transition(BreakerOpen)
	}
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil && from != to {
		b.cfg.OnStateChange(from, to)
	}
}
