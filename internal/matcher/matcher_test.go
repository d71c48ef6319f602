package matcher_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"strinks/internal/catalog"
	"strinks/internal/matchcache"
	"strinks/internal/matcher"
	"strinks/internal/services"
	"strinks/internal/testsupport"
	"strinks/internal/translation"
)

var epoch = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	api   *testsupport.StubSearcher
	web   *testsupport.StubSearcher
	cache *matchcache.Store
	clock *testsupport.FakeClock
	opts  matcher.Options
}

func newFixture(t *testing.T, withAPI bool) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cache, err := matchcache.Open(cfg.Paths.MatchCache, matchcache.Options{})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	f := &fixture{
		web:   testsupport.NewStubSearcher("untappd_web"),
		cache: cache,
		clock: testsupport.NewFakeClock(epoch),
	}
	f.opts = matcher.OptionsFromConfig(cfg)
	f.opts.Web = f.web
	f.opts.Cache = cache
	f.opts.Clock = f.clock
	f.opts.Translator = translation.New(translation.Options{
		Dictionary: translation.NewDictionary(map[string]string{"ゴーゼ": "Gose"}),
	})
	if withAPI {
		f.api = testsupport.NewStubSearcher("untappd_api")
		f.opts.API = f.api
	}
	return f
}

func (f *fixture) matcher(t *testing.T) *matcher.Matcher {
	t.Helper()
	m, err := matcher.New(f.opts)
	if err != nil {
		t.Fatalf("matcher.New: %v", err)
	}
	return m
}

func resolve(t *testing.T, m *matcher.Matcher, rec matcher.Record) matcher.Result {
	t.Helper()
	res, err := m.Resolve(context.Background(), rec)
	if err != nil {
		t.Fatalf("Resolve(%+v): %v", rec, err)
	}
	return res
}

func TestNewRequiresBackendAndCache(t *testing.T) {
	f := newFixture(t, false)

	noBackend := f.opts
	noBackend.Web = nil
	if _, err := matcher.New(noBackend); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without backends, got %v", err)
	}
	noCache := f.opts
	noCache.Cache = nil
	if _, err := matcher.New(noCache); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without cache, got %v", err)
	}
}

func TestResolveTranslatedName(t *testing.T) {
	f := newFixture(t, false)
	f.web.Default(catalog.Candidate{ID: "501", Name: "Gose", Brewery: "Example Brewery", Score: 0.95})
	m := f.matcher(t)

	res := resolve(t, m, matcher.Record{Name: "ゴーゼ", Brewery: "Example Brewery"})

	if res.Status != matcher.StatusResolved {
		t.Fatalf("expected resolved, got %s (%s)", res.Status, res.Reason)
	}
	if res.Candidate == nil || res.Candidate.ID != "501" {
		t.Fatalf("unexpected candidate: %+v", res.Candidate)
	}
	if res.Query != "Gose" || res.Backend != "untappd_web" || res.Cached {
		t.Fatalf("unexpected result metadata: %+v", res)
	}
	calls := f.web.Calls()
	if len(calls) != 2 || calls[0] != "ゴーゼ" || calls[1] != "Gose" {
		t.Fatalf("expected original then translated query, got %v", calls)
	}

	entry, ok := f.cache.Get(res.Fingerprint)
	if !ok || entry.Status != matchcache.StatusResolved || entry.CatalogID != "501" || !entry.ResolvedAt.Equal(epoch) {
		t.Fatalf("unexpected cache entry: %+v (ok=%v)", entry, ok)
	}
}

func TestResolveLowConfidenceHonorsRetryWindow(t *testing.T) {
	f := newFixture(t, false)
	f.web.Default(catalog.Candidate{ID: "9", Name: "Imperial Stout", Brewery: "Somewhere Else"})
	rec := matcher.Record{Name: "Hazy Jane", Brewery: "BrewDog"}

	res := resolve(t, f.matcher(t), rec)
	if res.Status != matcher.StatusLowConfidence {
		t.Fatalf("expected low confidence, got %s (%s)", res.Status, res.Reason)
	}
	searched := f.web.CallCount()
	if searched == 0 {
		t.Fatal("expected the first run to search")
	}

	// a new run one day later reuses the cached miss
	f.clock.Advance(24 * time.Hour)
	again := resolve(t, f.matcher(t), rec)
	if again.Status != matcher.StatusLowConfidence || !again.Cached {
		t.Fatalf("expected cached low confidence, got %+v", again)
	}
	if f.web.CallCount() != searched {
		t.Fatalf("expected no backend calls within the retry window, got %d more", f.web.CallCount()-searched)
	}

	f.clock.Advance(7 * 24 * time.Hour)
	retried := resolve(t, f.matcher(t), rec)
	if retried.Cached || f.web.CallCount() == searched {
		t.Fatalf("expected a new search after the retry window, got %+v", retried)
	}
}

func TestResolveStickyFallbackOnQuota(t *testing.T) {
	f := newFixture(t, true)
	f.api.Default(catalog.Candidate{ID: "1", Name: "Punk IPA", Brewery: "BrewDog"})
	f.api.FailNext(nil, services.Wrap(services.ErrQuota, "untappd", "search", "rate limited", nil))
	f.web.Default(catalog.Candidate{ID: "2", Name: "Hazy Jane", Brewery: "BrewDog"})
	f.web.On("Elvis Juice", catalog.Candidate{ID: "3", Name: "Elvis Juice", Brewery: "BrewDog"})
	m := f.matcher(t)

	first := resolve(t, m, matcher.Record{Name: "Punk IPA", Brewery: "BrewDog"})
	if first.Status != matcher.StatusResolved || first.Backend != "untappd_api" {
		t.Fatalf("expected api resolution before the failure, got %+v", first)
	}
	if m.WebOnly() {
		t.Fatal("expected api to stay active before any failure")
	}

	second := resolve(t, m, matcher.Record{Name: "Hazy Jane", Brewery: "BrewDog"})
	if second.Status != matcher.StatusResolved || second.Backend != "untappd_web" {
		t.Fatalf("expected web resolution after quota failure, got %+v", second)
	}
	if !m.WebOnly() {
		t.Fatal("expected sticky fallback after quota failure")
	}

	apiCalls := f.api.CallCount()
	third := resolve(t, m, matcher.Record{Name: "Elvis Juice", Brewery: "BrewDog"})
	if third.Status != matcher.StatusResolved || third.Backend != "untappd_web" {
		t.Fatalf("expected web resolution for later records, got %+v", third)
	}
	if f.api.CallCount() != apiCalls {
		t.Fatalf("expected no api calls after fallback, got %d more", f.api.CallCount()-apiCalls)
	}

	entry, ok := f.cache.Get(first.Fingerprint)
	if !ok || entry.CatalogID != "1" {
		t.Fatalf("expected the earlier api resolution to stay cached, got %+v", entry)
	}
}

func TestResolveTransientApiFailureTriesWebPerCall(t *testing.T) {
	f := newFixture(t, true)
	f.api.FailAlways(services.Wrap(services.ErrTransient, "untappd", "search", "timeout", nil))
	f.web.Default(catalog.Candidate{ID: "4473", Name: "Punk IPA", Brewery: "BrewDog"})
	m := f.matcher(t)

	for range 2 {
		if err := f.cache.Clear(); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		res := resolve(t, m, matcher.Record{Name: "Punk IPA", Brewery: "BrewDog"})
		if res.Status != matcher.StatusResolved || res.Backend != "untappd_web" {
			t.Fatalf("expected web resolution, got %+v", res)
		}
	}
	if m.WebOnly() {
		t.Fatal("transient api failures must not switch the run to the web backend")
	}
	if f.api.CallCount() != 2 {
		t.Fatalf("expected the api to be tried for every record, got %d calls", f.api.CallCount())
	}
}

func TestResolveAllBackendsFailingIsTransient(t *testing.T) {
	f := newFixture(t, false)
	f.web.FailAlways(services.Wrap(services.ErrParse, "untappd", "search", "markup changed", nil))
	m := f.matcher(t)
	rec := matcher.Record{Name: "Punk IPA", Brewery: "BrewDog"}

	res := resolve(t, m, rec)
	if res.Status != matcher.StatusTransient || res.Err == nil {
		t.Fatalf("expected transient result with cause, got %+v", res)
	}
	entry, ok := f.cache.Get(res.Fingerprint)
	if !ok || entry.Status != matchcache.StatusTransient {
		t.Fatalf("expected transient cache entry, got %+v", entry)
	}

	calls := f.web.CallCount()
	resolve(t, f.matcher(t), rec)
	if f.web.CallCount() == calls {
		t.Fatal("expected transient entries to be retried on the next run")
	}
}

func TestResolveWebOnlyWithoutAPI(t *testing.T) {
	f := newFixture(t, false)
	f.web.Default(catalog.Candidate{ID: "1", Name: "Punk IPA", Brewery: "BrewDog"})
	m := f.matcher(t)
	if !m.WebOnly() {
		t.Fatal("expected web-only mode without api backend")
	}
	if res := resolve(t, m, matcher.Record{Name: "Punk IPA", Brewery: "BrewDog"}); res.Status != matcher.StatusResolved {
		t.Fatalf("expected resolution, got %+v", res)
	}
}

func TestResolveNotFoundIsEmptyResult(t *testing.T) {
	f := newFixture(t, false)
	f.web.FailAlways(services.Wrap(services.ErrNotFound, "untappd", "search", "", nil))
	res := resolve(t, f.matcher(t), matcher.Record{Name: "Punk IPA", Brewery: "BrewDog"})
	if res.Status != matcher.StatusLowConfidence || !errors.Is(res.Err, services.ErrLowConfidence) {
		t.Fatalf("expected not-found searches to yield low confidence, got %+v", res)
	}
}

func TestResolveRejectsInvalidRecord(t *testing.T) {
	f := newFixture(t, false)
	m := f.matcher(t)

	for _, rec := range []matcher.Record{{Name: "   "}, {Name: "\u200b"}, {Brewery: "BrewDog"}} {
		res, err := m.Resolve(context.Background(), rec)
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", rec, err)
		}
		if res.Status != matcher.StatusError {
			t.Fatalf("expected error status, got %s", res.Status)
		}
	}
	if f.web.CallCount() != 0 {
		t.Fatal("invalid records must not be searched")
	}
}

func TestResolveCanceledContextSkips(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.matcher(t).Resolve(ctx, matcher.Record{Name: "Punk IPA", Brewery: "BrewDog"})
	if !errors.Is(err, context.Canceled) || res.Status != matcher.StatusSkipped {
		t.Fatalf("expected skipped result, got %+v (%v)", res, err)
	}
	if f.cache.Count() != 0 {
		t.Fatal("canceled records must not be cached")
	}
}

func TestResolveSearchesOncePerFingerprint(t *testing.T) {
	f := newFixture(t, false)
	f.web.Default(catalog.Candidate{ID: "4473", Name: "Punk IPA", Brewery: "BrewDog"})
	gate := f.web.Gate()
	m := f.matcher(t)

	const callers = 20
	var wg sync.WaitGroup
	results := make([]matcher.Result, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// spacing and case differ but the fingerprint is shared
			name := "Punk IPA"
			if i%2 == 0 {
				name = "  punk   ipa "
			}
			res, err := m.Resolve(context.Background(), matcher.Record{Name: name, Brewery: "BrewDog"})
			if err != nil {
				t.Errorf("Resolve: %v", err)
			}
			results[i] = res
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if f.web.CallCount() != 1 {
		t.Fatalf("expected exactly one search, got %d: %v", f.web.CallCount(), f.web.Calls())
	}
	for i, res := range results {
		if res.Status != matcher.StatusResolved || res.Candidate == nil || res.Candidate.ID != "4473" {
			t.Fatalf("caller %d got %+v", i, res)
		}
	}
}

func TestResolveSharedSearchSurvivesLeaderCancellation(t *testing.T) {
	f := newFixture(t, false)
	f.web.Default(catalog.Candidate{ID: "4473", Name: "Punk IPA", Brewery: "BrewDog"})
	gate := f.web.Gate()
	m := f.matcher(t)
	rec := matcher.Record{Name: "Punk IPA", Brewery: "BrewDog"}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := m.Resolve(leaderCtx, rec)
		leaderErr <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for f.web.CallCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("leader never reached the catalog")
		}
		time.Sleep(time.Millisecond)
	}

	type outcome struct {
		res matcher.Result
		err error
	}
	waiter := make(chan outcome, 1)
	go func() {
		res, err := m.Resolve(context.Background(), rec)
		waiter <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected leader cancellation, got %v", err)
	}
	close(gate)

	got := <-waiter
	if got.err != nil {
		t.Fatalf("waiter inherited leader error: %v", got.err)
	}
	if got.res.Status != matcher.StatusResolved || got.res.Candidate == nil || got.res.Candidate.ID != "4473" {
		t.Fatalf("waiter got %+v", got.res)
	}
	if f.cache.Count() != 1 {
		t.Fatalf("expected the waiter's result to be cached, got %d entries", f.cache.Count())
	}
}

func TestResolveForceRefresh(t *testing.T) {
	f := newFixture(t, false)
	f.web.Default(catalog.Candidate{ID: "2", Name: "Punk IPA", Brewery: "BrewDog"})
	rec := matcher.Record{Name: "Punk IPA", Brewery: "BrewDog"}
	if err := f.cache.Put(rec.Fingerprint(), matchcache.Entry{
		CatalogID:  "1",
		Name:       "Punk IPA",
		Brewery:    "BrewDog",
		ResolvedAt: epoch,
		Status:     matchcache.StatusResolved,
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	cached := resolve(t, f.matcher(t), rec)
	if !cached.Cached || cached.Candidate.ID != "1" {
		t.Fatalf("expected cached resolution, got %+v", cached)
	}

	f.opts.ForceRefresh = true
	m := f.matcher(t)
	refreshed := resolve(t, m, rec)
	if refreshed.Cached || refreshed.Candidate.ID != "2" {
		t.Fatalf("expected refreshed resolution, got %+v", refreshed)
	}
	calls := f.web.CallCount()
	repeat := resolve(t, m, rec)
	if !repeat.Cached || f.web.CallCount() != calls {
		t.Fatalf("expected a fingerprint to be refreshed once per run, got %+v", repeat)
	}
}

func TestResolveExpiredResolvedEntryIsSearchedAgain(t *testing.T) {
	f := newFixture(t, false)
	f.web.Default(catalog.Candidate{ID: "2", Name: "Punk IPA", Brewery: "BrewDog"})
	rec := matcher.Record{Name: "Punk IPA", Brewery: "BrewDog"}
	if err := f.cache.Put(rec.Fingerprint(), matchcache.Entry{
		CatalogID:  "1",
		ResolvedAt: epoch.Add(-31 * 24 * time.Hour),
		Status:     matchcache.StatusResolved,
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	res := resolve(t, f.matcher(t), rec)
	if res.Cached || res.Candidate.ID != "2" {
		t.Fatalf("expected expired entry to be refreshed, got %+v", res)
	}
}
