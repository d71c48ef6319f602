package testsupport

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// FakeClock is a simulated clock. Sleep advances the shared time instead of
// blocking, so pacing can be verified without wall-clock waits.
type FakeClock struct {
	fake *clockwork.FakeClock

	mu     sync.Mutex
	sleeps []time.Duration
}

// NewFakeClock returns a clock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{fake: clockwork.NewFakeClockAt(start)}
}

// Now returns the simulated time.
func (c *FakeClock) Now() time.Time {
	return c.fake.Now()
}

// Sleep advances the simulated time by d.
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fake.Advance(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

// Advance moves the simulated time forward without recording a sleep.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fake.Advance(d)
}

// Sleeps returns a copy of every positive duration passed to Sleep.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}
