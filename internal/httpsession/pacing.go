package httpsession

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// domainState is the pacing state of one domain. mu is held while a caller
// waits for its turn, so same-domain callers serialize on acquire.
type domainState struct {
	mu        sync.Mutex
	last      time.Time
	notBefore atomic.Int64
}

func (s *Session) state(domain string) *domainState {
	s.mu.RLock()
	st, ok := s.domains[domain]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.domains[domain]; ok {
		return st
	}
	st = &domainState{}
	s.domains[domain] = st
	return st
}

// Interval returns the minimum spacing between requests to domain.
func (s *Session) Interval(domain string) time.Duration {
	if d, ok := s.intervals[domain]; ok {
		return d
	}
	return s.defaultInterval
}

// Acquire blocks until a request to domain may start: at least Interval(domain)
// after the previous request and no earlier than any Retry-After deadline.
func (s *Session) Acquire(ctx context.Context, domain string) error {
	_, err := s.acquire(ctx, domain)
	return err
}

func (s *Session) acquire(ctx context.Context, domain string) (time.Time, error) {
	st := s.state(domain)
	interval := s.Interval(domain)

	st.mu.Lock()
	defer st.mu.Unlock()
	for {
		now := s.clock.Now()
		ready := now
		if !st.last.IsZero() {
			if next := st.last.Add(interval); next.After(ready) {
				ready = next
			}
		}
		if nb := st.notBefore.Load(); nb != 0 {
			if deadline := time.Unix(0, nb); deadline.After(ready) {
				ready = deadline
			}
		}
		wait := ready.Sub(now)
		if wait <= 0 {
			st.last = now
			return now, nil
		}
		if err := s.clock.Sleep(ctx, wait); err != nil {
			return time.Time{}, err
		}
	}
}

// Defer pushes the earliest start of the next request to domain out to until.
// Earlier deadlines never shorten a pending one.
func (s *Session) Defer(domain string, until time.Time) {
	st := s.state(domain)
	target := until.UnixNano()
	for {
		current := st.notBefore.Load()
		if current >= target {
			return
		}
		if st.notBefore.CompareAndSwap(current, target) {
			return
		}
	}
}
