package matchcache_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"strinks/internal/matchcache"
	"strinks/internal/services"
)

func openStore(t *testing.T, path string, opts matchcache.Options) *matchcache.Store {
	t.Helper()
	store, err := matchcache.Open(path, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func rating(v float64) *float64 { return &v }

func TestStorePutAndGet(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "cache.json"), matchcache.Options{})

	entry := matchcache.Entry{
		CatalogID:  "4473",
		Name:       "Punk IPA",
		Brewery:    "BrewDog",
		Rating:     rating(3.71),
		ResolvedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Status:     matchcache.StatusResolved,
		Query:      "Punk IPA",
	}
	if err := store.Put("punk ipa|brewdog", entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := store.Get("punk ipa|brewdog")
	if !ok {
		t.Fatal("expected entry to be present")
	}
	if got.CatalogID != "4473" || got.Name != "Punk IPA" || got.Fingerprint != "punk ipa|brewdog" {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if _, ok := store.Get("missing|brewery"); ok {
		t.Fatal("expected miss for unknown fingerprint")
	}
}

func TestStorePutRejectsInvalidInput(t *testing.T) {
	store := openStore(t, "", matchcache.Options{})

	if err := store.Put("  ", matchcache.Entry{Status: matchcache.StatusResolved}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty fingerprint, got %v", err)
	}
	if err := store.Put("a|b", matchcache.Entry{Status: "bogus"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	resolvedAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	first, err := matchcache.Open(path, matchcache.Options{FlushDelay: time.Hour})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.Put("hazy|brewery", matchcache.Entry{
		CatalogID:  "99",
		Name:       "Hazy",
		Brewery:    "Brewery",
		ResolvedAt: resolvedAt,
		Status:     matchcache.StatusResolved,
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := first.Put("nothing|brewery", matchcache.Entry{
		ResolvedAt: resolvedAt,
		Status:     matchcache.StatusLowConfidence,
		Query:      "nothing",
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second := openStore(t, path, matchcache.Options{})
	if second.Count() != 2 {
		t.Fatalf("expected 2 entries after reopen, got %d", second.Count())
	}
	got, ok := second.Get("hazy|brewery")
	if !ok || got.CatalogID != "99" || !got.ResolvedAt.Equal(resolvedAt) {
		t.Fatalf("unexpected reloaded entry: %+v (ok=%v)", got, ok)
	}
	miss, ok := second.Get("nothing|brewery")
	if !ok || miss.Status != matchcache.StatusLowConfidence || miss.CatalogID != "" {
		t.Fatalf("unexpected reloaded miss: %+v (ok=%v)", miss, ok)
	}
}

func TestStorePutAfterCloseWritesThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store, err := matchcache.Open(path, matchcache.Options{FlushDelay: time.Hour})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.Put("late|brewery", matchcache.Entry{
		CatalogID:  "7",
		Name:       "Late",
		Brewery:    "Brewery",
		ResolvedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Status:     matchcache.StatusResolved,
	}); err != nil {
		t.Fatalf("Put after Close: %v", err)
	}

	reopened := openStore(t, path, matchcache.Options{})
	got, ok := reopened.Get("late|brewery")
	if !ok || got.CatalogID != "7" {
		t.Fatalf("expected late write on disk, got %+v (ok=%v)", got, ok)
	}
}

func TestStoreWriteThroughProducesValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := openStore(t, path, matchcache.Options{})

	if err := store.Put("a|b", matchcache.Entry{
		CatalogID:  "1",
		Name:       "A",
		Brewery:    "B",
		ResolvedAt: time.Now().UTC(),
		Status:     matchcache.StatusResolved,
	}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("cache file is not a JSON object: %v\n%s", err, data)
	}
	record, ok := decoded["a|b"]
	if !ok {
		t.Fatalf("expected fingerprint key in file, got %s", data)
	}
	if record["catalogId"] != "1" || record["status"] != "resolved" {
		t.Fatalf("unexpected record layout: %v", record)
	}
	if _, ok := record["rating"]; ok {
		t.Fatalf("expected absent rating to be omitted: %v", record)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("expected temp files to be renamed away, found %v", matches)
	}
}

func TestStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := openStore(t, path, matchcache.Options{Logger: logger})

	if store.Count() != 0 {
		t.Fatalf("expected empty cache, got %d entries", store.Count())
	}
	if !strings.Contains(buf.String(), "match_cache_load_failed") {
		t.Fatalf("expected load failure warning, got %q", buf.String())
	}

	if err := store.Put("a|b", matchcache.Entry{Status: matchcache.StatusTransient, ResolvedAt: time.Now()}); err != nil {
		t.Fatalf("Put after corrupt load: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("expected corrupt file to be replaced with valid JSON, got %s", data)
	}
}

func TestStoreRemoveClearListStats(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "cache.json"), matchcache.Options{})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	puts := []struct {
		fp     string
		status matchcache.Status
		offset time.Duration
	}{
		{"a|x", matchcache.StatusResolved, 0},
		{"b|x", matchcache.StatusResolved, time.Hour},
		{"c|x", matchcache.StatusLowConfidence, 2 * time.Hour},
		{"d|x", matchcache.StatusTransient, 2 * time.Hour},
	}
	for _, p := range puts {
		if err := store.Put(p.fp, matchcache.Entry{Status: p.status, ResolvedAt: base.Add(p.offset)}); err != nil {
			t.Fatalf("Put %s: %v", p.fp, err)
		}
	}

	stats := store.Stats()
	want := matchcache.Stats{Total: 4, Resolved: 2, LowConfidence: 1, Transient: 1}
	if stats != want {
		t.Fatalf("Stats = %+v, want %+v", stats, want)
	}

	list := store.List()
	order := make([]string, 0, len(list))
	for _, entry := range list {
		order = append(order, entry.Fingerprint)
	}
	if strings.Join(order, ",") != "c|x,d|x,b|x,a|x" {
		t.Fatalf("unexpected list order: %v", order)
	}

	if err := store.Remove("b|x"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove("b|x"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
	if store.Count() != 3 {
		t.Fatalf("expected 3 entries after remove, got %d", store.Count())
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if store.Count() != 0 {
		t.Fatalf("expected empty cache after clear, got %d", store.Count())
	}
}

func TestStoreConcurrentPuts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store, err := matchcache.Open(path, matchcache.Options{FlushDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fp := fmt.Sprintf("beer %d|brewery", i)
			if err := store.Put(fp, matchcache.Entry{Status: matchcache.StatusResolved, ResolvedAt: time.Now()}); err != nil {
				t.Errorf("Put %s: %v", fp, err)
			}
			store.Get(fp)
		}(i)
	}
	wg.Wait()
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openStore(t, path, matchcache.Options{})
	if reopened.Count() != 50 {
		t.Fatalf("expected 50 persisted entries, got %d", reopened.Count())
	}
}

func TestStoreInMemory(t *testing.T) {
	store := openStore(t, "", matchcache.Options{FlushDelay: time.Second})
	if err := store.Put("a|b", matchcache.Entry{Status: matchcache.StatusResolved}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if store.Count() != 1 {
		t.Fatalf("expected 1 entry, got %d", store.Count())
	}
	if err := store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestEntryFresh(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := matchcache.FreshnessPolicy{RetryWindow: 7 * 24 * time.Hour, ResolvedTTL: 30 * 24 * time.Hour}

	tests := []struct {
		name   string
		entry  matchcache.Entry
		policy matchcache.FreshnessPolicy
		want   bool
	}{
		{"resolved recent", matchcache.Entry{Status: matchcache.StatusResolved, ResolvedAt: now.Add(-time.Hour)}, policy, true},
		{"resolved expired", matchcache.Entry{Status: matchcache.StatusResolved, ResolvedAt: now.Add(-31 * 24 * time.Hour)}, policy, false},
		{"resolved forever", matchcache.Entry{Status: matchcache.StatusResolved, ResolvedAt: now.Add(-1000 * 24 * time.Hour)}, matchcache.FreshnessPolicy{RetryWindow: time.Hour}, true},
		{"low confidence within window", matchcache.Entry{Status: matchcache.StatusLowConfidence, ResolvedAt: now.Add(-6 * 24 * time.Hour)}, policy, true},
		{"low confidence outside window", matchcache.Entry{Status: matchcache.StatusLowConfidence, ResolvedAt: now.Add(-8 * 24 * time.Hour)}, policy, false},
		{"transient never fresh", matchcache.Entry{Status: matchcache.StatusTransient, ResolvedAt: now}, policy, false},
		{"unknown status", matchcache.Entry{Status: "other", ResolvedAt: now}, policy, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Fresh(now, tt.policy); got != tt.want {
				t.Fatalf("Fresh = %v, want %v", got, tt.want)
			}
		})
	}
}
