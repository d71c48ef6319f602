package matcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"strinks/internal/logging"
	"strinks/internal/services"
)

// Sink receives one upsert per processed record.
type Sink interface {
	Upsert(ctx context.Context, result Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, result Result) error

// Upsert calls f.
func (f SinkFunc) Upsert(ctx context.Context, result Result) error { return f(ctx, result) }

// Summary counts the outcomes of a run.
type Summary struct {
	Total         int           `json:"total"`
	Resolved      int           `json:"resolved"`
	LowConfidence int           `json:"unmatched_low_confidence"`
	Transient     int           `json:"unmatched_transient"`
	Errors        int           `json:"errors"`
	Skipped       int           `json:"skipped"`
	CacheHits     int           `json:"cache_hits"`
	SinkFailures  int           `json:"sink_failures"`
	Duration      time.Duration `json:"duration"`
}

func (s *Summary) add(res Result) {
	switch res.Status {
	case StatusResolved:
		s.Resolved++
	case StatusLowConfidence:
		s.LowConfidence++
	case StatusTransient:
		s.Transient++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Errors++
	}
	if res.Cached {
		s.CacheHits++
	}
}

// Run resolves records with up to Options.Workers concurrent workers and
// returns the results in input order. A failing record never stops the
// batch. When ctx ends, records not yet started are marked skipped and
// ctx.Err() is returned with the partial summary.
func (m *Matcher) Run(ctx context.Context, records []Record, sink Sink) (Summary, []Result, error) {
	start := m.clock.Now()
	logger := logging.WithContext(ctx, m.logger)
	logger.Info("match run started",
		logging.Int("record_count", len(records)),
		logging.Int("workers", m.workers),
		logging.Bool("web_only", m.WebOnly()))

	results := make([]Result, len(records))
	summary := Summary{Total: len(records)}
	var mu sync.Mutex

	finish := func(i int, res Result) {
		results[i] = res
		sinkFailed := false
		if sink != nil && res.Status != StatusSkipped {
			if err := sink.Upsert(ctx, res); err != nil {
				sinkFailed = true
				logging.WarnWithContext(logger, "result sink upsert failed", "sink_upsert_failed",
					logging.String(logging.FieldFingerprint, res.Fingerprint),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the output destination"),
					logging.String(logging.FieldImpact, "the result is cached but missing from the output"),
				)
			}
		}
		mu.Lock()
		summary.add(res)
		if sinkFailed {
			summary.SinkFailures++
		}
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, rec := range records {
		if ctx.Err() != nil {
			finish(i, skipped(rec, rec.Fingerprint(), ctx.Err()))
			continue
		}
		g.Go(func() error {
			res, err := m.Resolve(ctx, rec)
			if errors.Is(err, services.ErrValidation) {
				logging.WarnWithContext(logger, "record rejected", "record_invalid",
					logging.Int("index", i),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "fix the input listing"),
					logging.String(logging.FieldImpact, "the record is reported as an error and not searched"),
				)
			}
			finish(i, res)
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = m.clock.Now().Sub(start)
	logger.Info("match run completed",
		logging.Int("resolved", summary.Resolved),
		logging.Int("unmatched_low_confidence", summary.LowConfidence),
		logging.Int("unmatched_transient", summary.Transient),
		logging.Int("errors", summary.Errors),
		logging.Int("skipped", summary.Skipped),
		logging.Int("cache_hits", summary.CacheHits),
		logging.Duration("duration", summary.Duration),
		logging.Bool("web_only", m.WebOnly()))
	return summary, results, ctx.Err()
}
