package session

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/danmuck/audifi/internal/protocol/frame"
)

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// retrier counts failed attempts of one wait loop.
type retrier struct {
	clock    frame.Clock
	start    time.Time
	attempts int
	rng      *rand.Rand
}

func newRetrier(clock frame.Clock) *retrier {
	now := clock.Now()
	return &retrier{
		clock: clock,
		start: now,
		rng:   rand.New(rand.NewSource(now.UnixNano())),
	}
}

// wait records a failed attempt and sleeps the policy delay, or returns
// ErrRetriesExhausted when the policy bound is reached.
func (r *retrier) wait(ctx context.Context, policy RetryPolicy, cause error) error {
	r.attempts++
	if policy.MaxAttempts > 0 && r.attempts >= policy.MaxAttempts {
		return fmt.Errorf("%w: attempts=%d last=%v", ErrRetriesExhausted, r.attempts, cause)
	}
	if policy.MaxElapsed > 0 && r.clock.Now().Sub(r.start) >= policy.MaxElapsed {
		return fmt.Errorf("%w: elapsed=%s last=%v", ErrRetriesExhausted, r.clock.Now().Sub(r.start), cause)
	}
	return r.clock.Sleep(ctx, NextBackoffDelay(policy.Backoff, r.attempts, r.rng))
}
