package testsupport

import (
	"context"
	"sync"

	"strinks/internal/catalog"
	"strinks/internal/textutil"
)

// StubSearcher is a scripted catalog.Searcher that records every query.
type StubSearcher struct {
	name string

	mu       sync.Mutex
	results  map[string][]catalog.Candidate
	fallback []catalog.Candidate
	failures []error
	err      error
	gate     chan struct{}
	calls    []string
}

var _ catalog.Searcher = (*StubSearcher)(nil)

// NewStubSearcher returns a searcher reporting name that finds nothing.
func NewStubSearcher(name string) *StubSearcher {
	return &StubSearcher{name: name, results: make(map[string][]catalog.Candidate)}
}

// On scripts the candidates returned for query, compared in normalized form.
func (s *StubSearcher) On(query string, candidates ...catalog.Candidate) *StubSearcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[textutil.Normalize(query)] = s.tag(candidates)
	return s
}

// Default scripts the candidates returned for any unscripted query.
func (s *StubSearcher) Default(candidates ...catalog.Candidate) *StubSearcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = s.tag(candidates)
	return s
}

// FailNext queues errors returned by the next calls, one per call.
func (s *StubSearcher) FailNext(errs ...error) *StubSearcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
	return s
}

// FailAlways makes every call return err once queued failures are used up.
func (s *StubSearcher) FailAlways(err error) *StubSearcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Gate makes every call block until the returned channel is closed.
func (s *StubSearcher) Gate() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	return s.gate
}

// Name implements catalog.Searcher.
func (s *StubSearcher) Name() string { return s.name }

// Search implements catalog.Searcher.
func (s *StubSearcher) Search(ctx context.Context, query string, _ int) ([]catalog.Candidate, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		if err != nil {
			return nil, err
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if found, ok := s.results[textutil.Normalize(query)]; ok {
		return append([]catalog.Candidate(nil), found...), nil
	}
	return append([]catalog.Candidate(nil), s.fallback...), nil
}

// Calls returns the queries seen so far, in order.
func (s *StubSearcher) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount returns how many searches were issued.
func (s *StubSearcher) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *StubSearcher) tag(candidates []catalog.Candidate) []catalog.Candidate {
	out := make([]catalog.Candidate, len(candidates))
	for i, cand := range candidates {
		if cand.Backend == "" {
			cand.Backend = s.name
		}
		out[i] = cand
	}
	return out
}
