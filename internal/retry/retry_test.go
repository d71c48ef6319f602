package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"strinks/internal/retry"
	"strinks/internal/testsupport"
)

var errFlaky = errors.New("flaky")

func TestDoRetriesUntilSuccess(t *testing.T) {
	clk := testsupport.NewFakeClock(time.Unix(0, 0))
	policy := retry.Policy{MaxAttempts: 4, Backoff: retry.ExponentialNoJitter(100*time.Millisecond, time.Second)}

	calls := 0
	err := policy.Do(context.Background(), clk, func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	sleeps := clk.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 100*time.Millisecond || sleeps[1] != 200*time.Millisecond {
		t.Fatalf("unexpected backoff schedule: %v", sleeps)
	}
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	clk := testsupport.NewFakeClock(time.Unix(0, 0))
	policy := retry.Policy{MaxAttempts: 3, Backoff: retry.Constant(time.Millisecond)}

	calls := 0
	err := policy.Do(context.Background(), clk, func(context.Context) error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoSkipsNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	policy := retry.Policy{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return !errors.Is(err, fatal) },
	}
	calls := 0
	err := policy.Do(context.Background(), testsupport.NewFakeClock(time.Unix(0, 0)), func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) || calls != 1 {
		t.Fatalf("expected one call with fatal error, got %d calls err=%v", calls, err)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := retry.Policy{MaxAttempts: 3}
	calls := 0
	err := policy.Do(ctx, nil, func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) || calls != 0 {
		t.Fatalf("expected cancellation before first call, got calls=%d err=%v", calls, err)
	}
}

func TestExponentialJitterStaysInBounds(t *testing.T) {
	jittered := retry.Exponential(100*time.Millisecond, time.Second)
	for attempt := 1; attempt <= 6; attempt++ {
		center := retry.ExponentialNoJitter(100*time.Millisecond, time.Second)(attempt)
		low, high := center/2, center+center/2+1
		for i := 0; i < 50; i++ {
			d := jittered(attempt)
			if d < low || d > high {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, low, high)
			}
		}
	}
	noJitter := retry.ExponentialNoJitter(100*time.Millisecond, time.Second)
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second}
	for i, w := range want {
		if got := noJitter(i + 1); got != w {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
	if got := noJitter(10); got != time.Second {
		t.Fatalf("expected cap at max, got %v", got)
	}
}

func TestDoReturnsLastErrorWhenCanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	policy := retry.Policy{MaxAttempts: 5, Backoff: retry.Constant(time.Hour)}

	calls := 0
	err := policy.Do(ctx, nil, func(context.Context) error {
		calls++
		cancel()
		return errFlaky
	})
	if !errors.Is(err, errFlaky) || calls != 1 {
		t.Fatalf("expected last error after one call, got calls=%d err=%v", calls, err)
	}
}

func TestBackOffStopsAfterBudget(t *testing.T) {
	b := retry.Policy{MaxAttempts: 3, Backoff: retry.Constant(time.Second)}.BackOff(context.Background())
	for i := 0; i < 2; i++ {
		if d := b.NextBackOff(); d != time.Second {
			t.Fatalf("retry %d: got %v", i+1, d)
		}
	}
	if d := b.NextBackOff(); d != backoff.Stop {
		t.Fatalf("expected stop after budget, got %v", d)
	}
	b.Reset()
	if d := b.NextBackOff(); d != time.Second {
		t.Fatalf("expected budget to reset, got %v", d)
	}
}

func TestRetriesReflectsBudget(t *testing.T) {
	if got := (retry.Policy{MaxAttempts: 4}).Retries(); got != 3 {
		t.Fatalf("expected 3 retries, got %d", got)
	}
	if got := (retry.Policy{}).Retries(); got != 0 {
		t.Fatalf("expected zero retries for empty policy, got %d", got)
	}
}
