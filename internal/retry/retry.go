// Package retry provides a bounded retry policy shared by the HTTP session,
// the translation cache, and any other call site that retries on failure.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"strinks/internal/clock"
)

// BackoffFunc returns the delay before the next attempt. attempt counts the
// failures so far and starts at 1.
type BackoffFunc func(attempt int) time.Duration

// Policy bounds how often and how eagerly an operation is retried.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
	Retryable   func(error) bool
}

// Exponential doubles base per attempt up to max and randomizes each delay
// by ±50%, so the result lies in [d/2, 3d/2].
func Exponential(base, max time.Duration) BackoffFunc {
	return exponential(base, max, backoff.DefaultRandomizationFactor)
}

// ExponentialNoJitter is Exponential without the random component.
func ExponentialNoJitter(base, max time.Duration) BackoffFunc {
	return exponential(base, max, 0)
}

// Constant always waits d.
func Constant(d time.Duration) BackoffFunc {
	return func(int) time.Duration { return d }
}

func exponential(base, max time.Duration, jitter float64) BackoffFunc {
	if max <= 0 {
		max = math.MaxInt64
	}
	return func(attempt int) time.Duration {
		if base <= 0 {
			return 0
		}
		b := backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(min(base, max)),
			backoff.WithMaxInterval(max),
			backoff.WithMultiplier(2),
			backoff.WithRandomizationFactor(jitter),
			backoff.WithMaxElapsedTime(0),
		)
		d := b.NextBackOff()
		for i := 1; i < attempt; i++ {
			d = b.NextBackOff()
		}
		return d
	}
}

// ShouldRetry reports whether another attempt is allowed after attempt
// failures ending in err.
func (p Policy) ShouldRetry(attempt int, err error) bool {
	if err == nil || attempt >= p.attempts() {
		return false
	}
	return p.retryable(err)
}

// Delay returns the wait before the next attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(attempt)
}

// Retries returns how many extra attempts the policy allows after the first.
func (p Policy) Retries() int {
	return p.attempts() - 1
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) retryable(err error) bool {
	return p.Retryable == nil || p.Retryable(err)
}

// BackOff adapts the policy to a backoff.BackOff that stops once the attempt
// budget is spent or ctx is done.
func (p Policy) BackOff(ctx context.Context) backoff.BackOffContext {
	return backoff.WithContext(
		backoff.WithMaxRetries(&attemptBackOff{fn: p.Backoff}, uint64(p.Retries())),
		ctx,
	)
}

// Do runs op until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. Waits go through clk so tests can simulate them. When ctx
// ends between attempts the last operation error is returned.
func (p Policy) Do(ctx context.Context, clk clock.Clock, op func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var last error
	err := backoff.RetryNotifyWithTimer(func() error {
		last = op(ctx)
		if last != nil && !p.retryable(last) {
			return backoff.Permanent(last)
		}
		return last
	}, p.BackOff(ctx), nil, newClockTimer(ctx, clock.OrReal(clk)))
	if err != nil && last != nil && ctx.Err() != nil {
		return last
	}
	return err
}

// attemptBackOff feeds a BackoffFunc the running failure count.
type attemptBackOff struct {
	fn      BackoffFunc
	attempt int
}

func (b *attemptBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.fn == nil {
		return 0
	}
	return b.fn(b.attempt)
}

func (b *attemptBackOff) Reset() { b.attempt = 0 }

// clockTimer is a backoff.Timer that waits on a clock.Clock. Start blocks in
// Sleep and fires only if the wait completed.
type clockTimer struct {
	ctx context.Context
	clk clock.Clock
	c   chan time.Time
}

func newClockTimer(ctx context.Context, clk clock.Clock) *clockTimer {
	return &clockTimer{ctx: ctx, clk: clk, c: make(chan time.Time, 1)}
}

func (t *clockTimer) Start(d time.Duration) {
	if t.clk.Sleep(t.ctx, d) != nil {
		return
	}
	select {
	case t.c <- t.clk.Now():
	default:
	}
}

func (t *clockTimer) Stop() {}

func (t *clockTimer) C() <-chan time.Time { return t.c }
