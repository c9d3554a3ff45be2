// Package retry implements the consistency-wait primitive used to bridge an
// eventually-visible write with a dependent read. Propagation delay is treated
// as a distribution, not a constant: the wait adapts with exponential backoff
// and optional jitter instead of a single fixed sleep.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy configures a visibility wait. All knobs are caller-supplied; nothing
// is hard-coded in the loop.
type Policy struct {
	// MaxAttempts is the total number of lookups, including the first.
	MaxAttempts int
	// InitialDelay is the sleep before the second attempt.
	InitialDelay time.Duration
	// BackoffMultiplier grows the delay after each miss.
	BackoffMultiplier float64
	// MaxDelay caps the grown delay.
	MaxDelay time.Duration
	// Jitter randomizes each sleep by +/- this fraction of the delay
	// (0 disables, 0.2 means +/-20%). Applied to the sleep only; the
	// stored delay keeps its deterministic growth.
	Jitter float64
}

// DefaultPolicy is a reasonable wait for sub-second replication lag.
var DefaultPolicy = Policy{
	MaxAttempts:       8,
	InitialDelay:      100 * time.Millisecond,
	BackoffMultiplier: 2.0,
	MaxDelay:          2 * time.Second,
	Jitter:            0.2,
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultPolicy.InitialDelay
	}
	if p.BackoffMultiplier < 1 {
		p.BackoffMultiplier = 1
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultPolicy.MaxDelay
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = 0
	}
	return p
}

// TimeoutError reports an exhausted retry budget. Attempts and Elapsed are
// recorded for observability; the wrapped target was never visible.
type TimeoutError struct {
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("not visible after %d attempts in %s", e.Attempts, e.Elapsed)
}

// WaitVisible polls lookup until it reports a present value, the policy's
// attempt budget runs out, or ctx is cancelled.
//
// lookup returns (value, true, nil) when the target is visible and
// (zero, false, nil) when it is not yet visible. A non-nil error aborts the
// wait immediately: errors are infrastructure failures, not misses.
//
// The fast path performs no sleep: when the first lookup hits, WaitVisible
// returns without touching a timer. Cancellation aborts an in-flight sleep
// promptly and returns ctx.Err().
func WaitVisible[T any](ctx context.Context, lookup func(ctx context.Context) (T, bool, error), policy Policy) (T, error) {
	var zero T
	p := policy.normalized()

	start := time.Now()
	delay := p.InitialDelay
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, ok, err := lookup(ctx)
		if err != nil {
			return zero, err
		}
		if ok {
			return v, nil
		}

		if attempt >= p.MaxAttempts {
			return zero, &TimeoutError{Attempts: attempt, Elapsed: time.Since(start)}
		}

		if err := sleep(ctx, jittered(delay, p.Jitter)); err != nil {
			return zero, err
		}
		delay = time.Duration(float64(delay) * p.BackoffMultiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

// jittered perturbs d by +/- fraction. The stored delay is never perturbed so
// backoff growth stays deterministic.
func jittered(d time.Duration, fraction float64) time.Duration {
	if fraction == 0 {
		return d
	}
	span := float64(d) * fraction
	offset := (rand.Float64()*2 - 1) * span
	j := time.Duration(float64(d) + offset)
	if j < 0 {
		return 0
	}
	return j
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
