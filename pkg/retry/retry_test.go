package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", p.MaxAttempts)
	}
	if p.InitialDelay != time.Second {
		t.Errorf("expected InitialDelay=1s, got %v", p.InitialDelay)
	}
	if p.MaxDelay != 60*time.Second {
		t.Errorf("expected MaxDelay=60s, got %v", p.MaxDelay)
	}
	if p.ExponentialBase != 2.0 {
		t.Errorf("expected ExponentialBase=2.0, got %f", p.ExponentialBase)
	}
	if !p.Jitter {
		t.Error("expected Jitter=true")
	}
}

func TestDelay(t *testing.T) {
	p := Policy{
		InitialDelay:    time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 1 * time.Second}, // 1 * 2^0
		{2, 2 * time.Second}, // 1 * 2^1
		{3, 4 * time.Second}, // 1 * 2^2
		{4, 8 * time.Second}, // 1 * 2^3
		{5, 10 * time.Second}, // 16s capped at 10s
		{6, 10 * time.Second}, // still capped
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := p.Delay(tt.attempt)
			if result != tt.expected {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestDelayJitterBounds(t *testing.T) {
	p := Policy{
		InitialDelay:    time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		Rand:            rand.New(rand.NewSource(42)),
	}

	for i := 0; i < 1000; i++ {
		d := p.Delay(3) // base 4s
		if d < 2*time.Second || d >= 6*time.Second {
			t.Fatalf("jittered delay %v outside [2s, 6s)", d)
		}
	}
}

func TestDelayJitterAppliedAfterCap(t *testing.T) {
	p := Policy{
		InitialDelay:    time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		Rand:            rand.New(rand.NewSource(7)),
	}

	// attempt 10 raw delay is 512s, clamped to 10s before jitter
	for i := 0; i < 1000; i++ {
		d := p.Delay(10)
		if d < 5*time.Second || d >= 15*time.Second {
			t.Fatalf("jittered delay %v outside [5s, 15s)", d)
		}
	}
}

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        10 * time.Millisecond,
		ExponentialBase: 2.0,
	}
}

func TestDoSuccessFirstAttempt(t *testing.T) {
	var attempts int32
	v, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		atomic.AddInt32(&attempts, 1)
		return 42, nil
	}, Options{})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDoSuccessAfterRetries(t *testing.T) {
	var attempts int32
	v, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}, Options{})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if v != "ok" {
		t.Errorf("expected ok, got %q", v)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoExhaustionReturnsOriginalError(t *testing.T) {
	original := errors.New("kept failing")
	var attempts int32
	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		atomic.AddInt32(&attempts, 1)
		return 0, original
	}, Options{})
	if !errors.Is(err, original) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if err != original {
		t.Errorf("error was wrapped: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoNonRetryableStopsImmediately(t *testing.T) {
	fatal := errors.New("fatal")
	var attempts int32
	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		atomic.AddInt32(&attempts, 1)
		return 0, fatal
	}, Options{
		Retryable: func(err error) bool { return false },
	})
	if err != fatal {
		t.Fatalf("expected the original error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestDoRetryablePredicate(t *testing.T) {
	transient := errors.New("transient")
	fatal := errors.New("fatal")
	var attempts int32
	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return 0, transient
		}
		return 0, fatal
	}, Options{
		Retryable: func(err error) bool { return errors.Is(err, transient) },
	})
	if err != fatal {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestDoOnRetryObservesAttempts(t *testing.T) {
	type call struct {
		attempt int
		delay   time.Duration
	}
	var calls []call
	var attempts int32

	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		atomic.AddInt32(&attempts, 1)
		return 0, errors.New("nope")
	}, Options{
		OnRetry: func(attempt int, delay time.Duration, err error) {
			calls = append(calls, call{attempt, delay})
		},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 OnRetry calls, got %d", len(calls))
	}
	if calls[0].attempt != 1 || calls[1].attempt != 2 {
		t.Errorf("unexpected attempt numbers: %+v", calls)
	}
	if calls[0].delay != time.Millisecond || calls[1].delay != 2*time.Millisecond {
		t.Errorf("unexpected delays: %+v", calls)
	}
}

func TestDoInvalidPolicy(t *testing.T) {
	_, err := Do(context.Background(), Policy{}, func(ctx context.Context) (int, error) {
		t.Fatal("fn must not run")
		return 0, nil
	}, Options{})
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestContextSleeperCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ContextSleeper(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDoStopsSleepingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{
		MaxAttempts:     5,
		InitialDelay:    time.Hour,
		MaxDelay:        time.Hour,
		ExponentialBase: 2.0,
	}
	var attempts int32

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, policy, func(ctx context.Context) (int, error) {
			atomic.AddInt32(&attempts, 1)
			return 0, errors.New("transient")
		}, Options{})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Errorf("expected 1 attempt, got %d", n)
	}
}

func TestBlockingSleeperIgnoresContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := BlockingSleeper(ctx, 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("BlockingSleeper returned early")
	}
}

func TestRun(t *testing.T) {
	var attempts int32
	err := Run(context.Background(), fastPolicy(), func(ctx context.Context) error {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return errors.New("transient")
		}
		return nil
	}, Options{})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}
