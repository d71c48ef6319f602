package translation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type stubRemote struct {
	calls  atomic.Int32
	result string
	err    error
}

func (s *stubRemote) Translate(_ context.Context, text, _, _ string) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	if s.result != "" {
		return s.result, nil
	}
	return "EN(" + text + ")", nil
}

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := OpenCache(context.Background(), filepath.Join(t.TempDir(), "translations.db"))
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestServiceDictionaryFirst(t *testing.T) {
	remote := &stubRemote{}
	svc := New(Options{Dictionary: NewDictionary(map[string]string{"ミッケラー": "Mikkeller"}), Remote: remote})

	if got := svc.Translate(context.Background(), " ミッケラー ", "ja", "en"); got != "Mikkeller" {
		t.Fatalf("Translate = %q", got)
	}
	if remote.calls.Load() != 0 {
		t.Fatal("dictionary hit should not reach the remote translator")
	}
}

func TestServiceSkipsNonJapanese(t *testing.T) {
	remote := &stubRemote{}
	svc := New(Options{Remote: remote})
	if got := svc.Translate(context.Background(), "Punk IPA", "ja", "en"); got != "Punk IPA" {
		t.Fatalf("Translate = %q", got)
	}
	if remote.calls.Load() != 0 {
		t.Fatal("latin text should not be sent for translation")
	}
}

func TestServiceCachesRemoteResults(t *testing.T) {
	remote := &stubRemote{}
	cache := openTestCache(t)
	svc := New(Options{Cache: cache, Remote: remote})

	first := svc.Translate(context.Background(), "鬼伝説", "ja", "en")
	second := svc.Translate(context.Background(), "鬼伝説", "ja", "en")
	if first != "EN(鬼伝説)" || second != first {
		t.Fatalf("unexpected translations %q / %q", first, second)
	}
	if remote.calls.Load() != 1 {
		t.Fatalf("expected one remote call, got %d", remote.calls.Load())
	}
	if cached, ok, _ := cache.Get(context.Background(), "鬼伝説", "ja", "en"); !ok || cached != first {
		t.Fatalf("expected cached translation, got %q (ok=%v)", cached, ok)
	}
}

func TestServiceFailureReturnsOriginal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := New(Options{Remote: &stubRemote{err: errors.New("boom")}, Logger: logger})

	if got := svc.Translate(context.Background(), "よなよなエール", "ja", "en"); got != "よなよなエール" {
		t.Fatalf("Translate = %q, want original", got)
	}
	if !strings.Contains(buf.String(), "translation_failed") {
		t.Fatalf("expected warning, got %q", buf.String())
	}
}

func TestServiceWithoutRemote(t *testing.T) {
	svc := New(Options{})
	if got := svc.Translate(context.Background(), "よなよなエール", "ja", "en"); got != "よなよなエール" {
		t.Fatalf("Translate = %q, want original", got)
	}
	if got := svc.Translate(context.Background(), "   ", "ja", "en"); got != "   " {
		t.Fatalf("blank input should pass through, got %q", got)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close without cache: %v", err)
	}
}

func TestServiceConcurrentTranslate(t *testing.T) {
	remote := &stubRemote{}
	svc := New(Options{Cache: openTestCache(t), Remote: remote})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := svc.Translate(context.Background(), "常陸野", "ja", "en"); got != "EN(常陸野)" {
				t.Errorf("Translate = %q", got)
			}
		}()
	}
	wg.Wait()
	if remote.calls.Load() < 1 {
		t.Fatal("expected at least one remote call")
	}
}
