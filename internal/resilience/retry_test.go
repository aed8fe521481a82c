package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryConfig{Name: "test"}, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetry_SucceedsAfterFailure(t *testing.T) {
	calls := 0
	cfg := RetryConfig{Name: "test", BaseDelay: time.Millisecond}
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return errTest
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	cfg := RetryConfig{Name: "test", MaxAttempts: 3, BaseDelay: time.Millisecond}
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		return errTest
	})
	if !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want errTest", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	cfg := RetryConfig{Name: "test", BaseDelay: time.Millisecond}
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		return Permanent(errTest)
	})
	if !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want errTest", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (permanent error must not retry)", calls)
	}
}

func TestRetry_DeadlineBudgetSkipsBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	cfg := RetryConfig{Name: "test", BaseDelay: time.Second}
	start := time.Now()
	err := Retry(ctx, cfg, func(context.Context) error {
		calls++
		return errTest
	})
	if !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want errTest", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no budget for a 1s backoff)", calls)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Retry blocked %v, want immediate return", elapsed)
	}
}

func TestRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, RetryConfig{Name: "test"}, func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}
