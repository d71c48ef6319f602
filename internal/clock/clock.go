// Package clock abstracts wall time so pacing and cache freshness can be
// exercised deterministically in tests.
package clock

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock reports the current time and blocks for a duration.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real returns a Clock backed by the system time.
func Real() Clock {
	return Wrap(clockwork.NewRealClock())
}

// Wrap adapts a clockwork clock, real or fake, so its timers can be
// interrupted by a context.
func Wrap(c clockwork.Clock) Clock {
	return wrapped{c: c}
}

type wrapped struct {
	c clockwork.Clock
}

func (w wrapped) Now() time.Time { return w.c.Now() }

func (w wrapped) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := w.c.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OrReal returns c, or the real clock when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return Real()
	}
	return c
}
