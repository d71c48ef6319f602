package matcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"strinks/internal/catalog"
	"strinks/internal/clock"
	"strinks/internal/config"
	"strinks/internal/logging"
	"strinks/internal/matchcache"
	"strinks/internal/services"
)

// Status is the outcome of resolving one record.
type Status string

const (
	StatusResolved      Status = Status(matchcache.StatusResolved)
	StatusLowConfidence Status = Status(matchcache.StatusLowConfidence)
	StatusTransient     Status = Status(matchcache.StatusTransient)
	// StatusError marks records rejected before any search, such as invalid input.
	StatusError Status = "error"
	// StatusSkipped marks records left unprocessed because the run was canceled.
	StatusSkipped Status = "skipped"
)

// Result is the resolution decision for one record.
type Result struct {
	Record      Record             `json:"record"`
	Fingerprint string             `json:"fingerprint"`
	Status      Status             `json:"status"`
	Candidate   *catalog.Candidate `json:"candidate,omitempty"`
	Score       float64            `json:"score,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Cached      bool               `json:"cached"`
	Backend     string             `json:"backend,omitempty"`
	Query       string             `json:"query,omitempty"`
	Err         error              `json:"-"`
}

// Translator supplies the translated and romanized query variants.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) string
	Romanize(text string) string
}

// Options wires a Matcher.
type Options struct {
	// API is the preferred backend; nil runs in web-only mode.
	API catalog.Searcher
	// Web is the fallback backend.
	Web        catalog.Searcher
	Cache      *matchcache.Store
	Translator Translator
	Scoring    Scoring
	Freshness  matchcache.FreshnessPolicy
	// SearchLimit is passed to every backend search; zero lets the backend decide.
	SearchLimit int
	// Workers bounds Run concurrency; values below one mean sequential.
	Workers int
	// ForceRefresh ignores fresh cache entries once per fingerprint per Matcher.
	ForceRefresh bool
	Clock        clock.Clock
	Logger       *slog.Logger
}

// OptionsFromConfig fills the scoring, freshness and pool settings from cfg.
// Backends, cache and translator are left for the caller to wire.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Scoring: ScoringFromConfig(cfg),
		Freshness: matchcache.FreshnessPolicy{
			RetryWindow: cfg.RetryWindow(),
			ResolvedTTL: cfg.ResolvedTTL(),
		},
		SearchLimit: cfg.Untappd.SearchLimit,
		Workers:     cfg.Matching.Workers,
	}
}

// Matcher resolves records against the catalog. It is safe for concurrent use.
type Matcher struct {
	api        catalog.Searcher
	web        catalog.Searcher
	cache      *matchcache.Store
	translator Translator
	scoring    Scoring
	freshness  matchcache.FreshnessPolicy
	limit      int
	workers    int
	force      bool
	clock      clock.Clock
	logger     *slog.Logger

	// webOnly flips once when the API rejects credentials or runs out of quota.
	webOnly atomic.Bool
	flights singleflight.Group

	refreshMu sync.Mutex
	refreshed map[string]struct{}
}

// New validates opts and returns a Matcher.
func New(opts Options) (*Matcher, error) {
	if opts.API == nil && opts.Web == nil {
		return nil, services.Wrap(services.ErrConfiguration, "matcher", "new", "at least one catalog backend is required", nil)
	}
	if opts.Cache == nil {
		return nil, services.Wrap(services.ErrConfiguration, "matcher", "new", "match cache is required", nil)
	}
	if opts.Scoring.AcceptanceThreshold <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "matcher", "new", "acceptance threshold must be positive", nil)
	}
	translator := opts.Translator
	if translator == nil {
		translator = identity{}
	}
	m := &Matcher{
		api:        opts.API,
		web:        opts.Web,
		cache:      opts.Cache,
		translator: translator,
		scoring:    opts.Scoring,
		freshness:  opts.Freshness,
		limit:      opts.SearchLimit,
		workers:    max(opts.Workers, 1),
		force:      opts.ForceRefresh,
		clock:      clock.OrReal(opts.Clock),
		logger:     logging.NewComponentLogger(opts.Logger, "matcher"),
		refreshed:  make(map[string]struct{}),
	}
	if m.api == nil {
		m.logger.Info("no catalog api configured; using web backend only")
	}
	return m, nil
}

// WebOnly reports whether the matcher has abandoned the API backend.
func (m *Matcher) WebOnly() bool {
	return m.api == nil || m.webOnly.Load()
}

// Resolve produces the decision for rec. The returned error is non-nil only
// when the record is invalid or ctx ended; catalog failures are reported
// through Result.Status.
func (m *Matcher) Resolve(ctx context.Context, rec Record) (Result, error) {
	clean, err := rec.Clean()
	if err != nil {
		return Result{Record: rec, Status: StatusError, Reason: err.Error(), Err: err}, err
	}
	fp := clean.Fingerprint()
	if err := ctx.Err(); err != nil {
		return skipped(clean, fp, err), err
	}
	ctx = services.WithFingerprint(ctx, fp)

	if !m.force {
		if res, ok := m.fromCache(clean, fp); ok {
			return res, nil
		}
	}

	for {
		v, _, shared := m.flights.Do(fp, func() (any, error) {
			if !m.claimRefresh(fp) {
				if res, ok := m.fromCache(clean, fp); ok {
					return res, nil
				}
			}
			return m.resolve(ctx, clean, fp), nil
		})
		res := v.(Result)
		if shared {
			// the flight ran under the leader's context; a leader that went
			// away must not cancel callers that are still waiting
			if res.Status == StatusSkipped && ctx.Err() == nil {
				continue
			}
			res.Record = clean
		}
		if res.Status == StatusSkipped {
			return res, res.Err
		}
		return res, nil
	}
}

// claimRefresh reports whether this call should bypass the cache: true once
// per fingerprint when force refresh is on.
func (m *Matcher) claimRefresh(fp string) bool {
	if !m.force {
		return false
	}
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	if _, done := m.refreshed[fp]; done {
		return false
	}
	m.refreshed[fp] = struct{}{}
	return true
}

func (m *Matcher) fromCache(rec Record, fp string) (Result, bool) {
	entry, ok := m.cache.Get(fp)
	if !ok || !entry.Fresh(m.clock.Now(), m.freshness) {
		return Result{}, false
	}
	res := Result{
		Record:      rec,
		Fingerprint: fp,
		Status:      Status(entry.Status),
		Cached:      true,
		Query:       entry.Query,
		Reason:      "cached " + string(entry.Status) + " at " + entry.ResolvedAt.UTC().Format(time.RFC3339),
	}
	if entry.Status == matchcache.StatusResolved {
		res.Candidate = &catalog.Candidate{
			ID:      entry.CatalogID,
			Name:    entry.Name,
			Brewery: entry.Brewery,
			Rating:  entry.Rating,
		}
	}
	m.logger.Debug("cache hit",
		logging.String(logging.FieldFingerprint, fp),
		logging.String("status", string(entry.Status)))
	return res, true
}

func (m *Matcher) resolve(ctx context.Context, rec Record, fp string) Result {
	logger := logging.WithContext(ctx, m.logger)
	variants := newVariantSource(ctx, m.translator, rec)
	merged := make(map[string]catalog.Candidate)

	var (
		ranked   []Scored
		attempts int
		failures int
		lastErr  error
		backend  string
	)
	for {
		v, ok := variants.Next()
		if !ok {
			break
		}
		found, used, err := m.search(ctx, v.Query)
		attempts++
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return skipped(rec, fp, ctxErr)
			}
			failures++
			lastErr = err
			logger.Debug("variant search failed",
				logging.String("variant", string(v.Kind)),
				logging.String("query", v.Query),
				logging.Error(err))
			continue
		}
		backend = used
		mergeCandidates(merged, found)
		ranked = m.scoring.Rank(variants.Tried(), variants.BreweryForms(), candidateList(merged))
		logger.Debug("variant searched",
			logging.String("variant", string(v.Kind)),
			logging.String("query", v.Query),
			logging.String(logging.FieldBackend, used),
			logging.Int("result_count", len(found)),
			logging.Int("merged_count", len(merged)))
		if len(ranked) > 0 && ranked[0].Composite >= m.scoring.SearchFloor {
			break
		}
	}

	res := Result{Record: rec, Fingerprint: fp, Backend: backend}
	if attempts > 0 && failures == attempts {
		res.Status = StatusTransient
		res.Err = lastErr
		res.Reason = "every catalog search failed: " + lastErr.Error()
		logging.WarnWithContext(logger, "record left unresolved after catalog failures", "match_transient",
			logging.Int("attempts", attempts),
			logging.Error(lastErr),
			logging.String(logging.FieldErrorHint, "check network access and catalog credentials"),
			logging.String(logging.FieldImpact, "the record is retried on the next run"),
		)
		m.store(logger, fp, matchcache.Entry{Status: matchcache.StatusTransient, ResolvedAt: m.now()})
		return res
	}

	accepted, reason := m.scoring.Decide(ranked)
	res.Reason = reason
	if len(ranked) > 0 {
		res.Score = ranked[0].Composite
		res.Query = ranked[0].Query
	}
	attrs := append(logging.DecisionAttrs("catalog_match", decisionOutcome(accepted), reason),
		logging.Int("candidate_count", len(ranked)),
		logging.Int("variant_count", len(variants.Tried())),
		logging.Float64("score", res.Score),
		logging.Float64("runner_up", runnerUp(ranked)),
	)
	if len(ranked) > 0 {
		attrs = append(attrs,
			logging.String("catalog_id", ranked[0].Candidate.ID),
			logging.String("candidate_name", ranked[0].Candidate.Name),
			logging.Bool("brewery_exact", ranked[0].BreweryExact))
	}
	logger.Info("match decision", logging.Args(attrs...)...)

	if !accepted {
		res.Status = StatusLowConfidence
		res.Err = services.Wrap(services.ErrLowConfidence, "matcher", "resolve", reason, nil)
		m.store(logger, fp, matchcache.Entry{Status: matchcache.StatusLowConfidence, ResolvedAt: m.now(), Query: res.Query})
		return res
	}

	best := ranked[0].Candidate
	res.Status = StatusResolved
	res.Candidate = &best
	if best.Backend != "" {
		res.Backend = best.Backend
	}
	m.store(logger, fp, matchcache.Entry{
		CatalogID:  best.ID,
		Name:       best.Name,
		Brewery:    best.Brewery,
		Rating:     best.Rating,
		ResolvedAt: m.now(),
		Status:     matchcache.StatusResolved,
		Query:      res.Query,
	})
	return res
}

// search runs query on the active backend. NotFound counts as an empty
// result. An API auth or quota failure switches the matcher to the web
// backend for good; any other API failure retries this call on the web.
func (m *Matcher) search(ctx context.Context, query string) ([]catalog.Candidate, string, error) {
	if m.api != nil && !m.webOnly.Load() {
		found, err := m.api.Search(services.WithBackend(ctx, m.api.Name()), query, m.limit)
		switch {
		case err == nil:
			return found, m.api.Name(), nil
		case errors.Is(err, services.ErrNotFound):
			return nil, m.api.Name(), nil
		case ctx.Err() != nil:
			return nil, m.api.Name(), err
		case services.IsFallbackTrigger(err):
			m.fallBack(ctx, err)
		default:
			m.logger.Debug("api search failed; trying web backend for this query",
				logging.String("query", query),
				logging.Error(err))
		}
		if m.web == nil {
			return nil, m.api.Name(), err
		}
	}
	if m.web == nil {
		return nil, "", services.Wrap(services.ErrConfiguration, "matcher", "search", "api unavailable and no web backend configured", nil)
	}
	found, err := m.web.Search(services.WithBackend(ctx, m.web.Name()), query, m.limit)
	if err != nil && errors.Is(err, services.ErrNotFound) {
		return nil, m.web.Name(), nil
	}
	return found, m.web.Name(), err
}

func (m *Matcher) fallBack(ctx context.Context, cause error) {
	if !m.webOnly.CompareAndSwap(false, true) {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, m.logger), "catalog api unavailable; switching to web backend", "catalog_fallback",
		logging.String("kind", string(catalog.Classify(cause))),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "check untappd credentials and quota"),
		logging.String(logging.FieldImpact, "remaining records in this run use the slower web backend"),
	)
}

func (m *Matcher) store(logger *slog.Logger, fp string, entry matchcache.Entry) {
	if err := m.cache.Put(fp, entry); err != nil {
		logging.WarnWithContext(logger, "match cache write failed", "match_cache_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check disk space and permissions for the cache directory"),
			logging.String(logging.FieldImpact, "the record will be searched again next run"),
		)
	}
}

func decisionOutcome(accepted bool) string {
	if accepted {
		return "accepted"
	}
	return "rejected"
}

func (m *Matcher) now() time.Time {
	return m.clock.Now().UTC()
}

func skipped(rec Record, fp string, err error) Result {
	return Result{Record: rec, Fingerprint: fp, Status: StatusSkipped, Reason: "canceled before resolution", Err: err}
}

func runnerUp(ranked []Scored) float64 {
	if len(ranked) < 2 {
		return 0
	}
	return ranked[1].Composite
}
