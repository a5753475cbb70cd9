package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy defines exponential backoff between attempts. The zero value is not
// usable; start from DefaultPolicy.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including the first one).
	MaxAttempts int
	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps the computed delay before jitter is applied.
	MaxDelay time.Duration
	// ExponentialBase is the backoff multiplier per attempt.
	ExponentialBase float64
	// Jitter scales each delay by a uniform factor in [0.5, 1.5).
	Jitter bool
	// Rand is the random source for jitter (optional, uses the global source if nil).
	Rand *rand.Rand
}

// DefaultPolicy returns the standard policy: 3 attempts, 1s initial delay,
// 60s cap, base 2, jitter on.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// Delay computes the backoff before the attempt following the given one.
// Attempts are 1-indexed. The raw delay is initial*base^(attempt-1) clamped
// to [0, MaxDelay]; with Jitter disabled the result is deterministic.
func (p Policy) Delay(attempt int) time.Duration {
	raw := float64(p.InitialDelay) * math.Pow(p.ExponentialBase, float64(attempt-1))
	if max := float64(p.MaxDelay); raw > max {
		raw = max
	}
	if raw < 0 {
		raw = 0
	}
	if p.Jitter {
		raw *= 0.5 + p.float64()
	}
	return time.Duration(raw)
}

func (p Policy) float64() float64 {
	if p.Rand != nil {
		return p.Rand.Float64()
	}
	return rand.Float64()
}

// Sleeper suspends the current attempt sequence between retries. The two
// provided strategies yield identical attempt counts and delays; only the
// suspension primitive differs.
type Sleeper func(ctx context.Context, d time.Duration) error

// BlockingSleeper suspends the calling goroutine with a plain sleep. The
// context is ignored; the wrapped work unit bounds its own latency.
func BlockingSleeper(_ context.Context, d time.Duration) error {
	time.Sleep(d)
	return nil
}

// ContextSleeper waits on a timer and returns early when the context is done.
func ContextSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Options tunes a single retry sequence.
type Options struct {
	// Retryable reports whether a failure should be retried. Nil retries
	// every failure.
	Retryable func(error) bool
	// OnRetry is invoked before each suspension, observational only. It runs
	// synchronously and cannot alter the retry decision.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Sleep is the suspension strategy. Nil uses ContextSleeper.
	Sleep Sleeper
}

// ErrInvalidPolicy is returned when a policy allows no attempts at all.
var ErrInvalidPolicy = errors.New("retry: MaxAttempts must be at least 1")

// Do runs fn until it succeeds, a non-retryable failure occurs, or
// MaxAttempts is reached. The final failure propagates unchanged. Do itself
// enforces no per-attempt timeout and introduces no parallelism.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T
	if policy.MaxAttempts < 1 {
		return zero, ErrInvalidPolicy
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = ContextSleeper
	}

	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if opts.Retryable != nil && !opts.Retryable(err) {
			return zero, err
		}
		if attempt == policy.MaxAttempts {
			return zero, err
		}
		delay := policy.Delay(attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return zero, serr
		}
	}
}

// Run is Do for work units without a result value.
func Run(ctx context.Context, policy Policy, fn func(ctx context.Context) error, opts Options) error {
	_, err := Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts)
	return err
}
