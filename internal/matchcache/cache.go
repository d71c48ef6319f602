package matchcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"strinks/internal/logging"
	"strinks/internal/services"
)

// Status records how a fingerprint was last settled.
type Status string

const (
	StatusResolved      Status = "resolved"
	StatusLowConfidence Status = "unmatched_low_confidence"
	StatusTransient     Status = "unmatched_transient"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusResolved, StatusLowConfidence, StatusTransient:
		return true
	}
	return false
}

// Entry is a cached resolution.
type Entry struct {
	Fingerprint string    `json:"-"`
	CatalogID   string    `json:"catalogId,omitempty"`
	Name        string    `json:"name,omitempty"`
	Brewery     string    `json:"brewery,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	ResolvedAt  time.Time `json:"resolvedAt"`
	Status      Status    `json:"status"`
	Query       string    `json:"query,omitempty"`
}

// FreshnessPolicy controls how long cached misses and hits are reused.
type FreshnessPolicy struct {
	RetryWindow time.Duration
	// ResolvedTTL of zero keeps resolved entries forever.
	ResolvedTTL time.Duration
}

// Fresh reports whether the entry can be reused at now without a new search.
func (e Entry) Fresh(now time.Time, policy FreshnessPolicy) bool {
	switch e.Status {
	case StatusResolved:
		if policy.ResolvedTTL <= 0 {
			return true
		}
		return now.Sub(e.ResolvedAt) < policy.ResolvedTTL
	case StatusLowConfidence:
		return now.Sub(e.ResolvedAt) < policy.RetryWindow
	default:
		return false
	}
}

// Stats summarizes the cache contents by status.
type Stats struct {
	Total         int `json:"total"`
	Resolved      int `json:"resolved"`
	LowConfidence int `json:"unmatched_low_confidence"`
	Transient     int `json:"unmatched_transient"`
}

// Options configures a Store.
type Options struct {
	// FlushDelay coalesces writes; zero writes through on every Put.
	FlushDelay time.Duration
	Logger     *slog.Logger
}

// Store is the fingerprint -> Entry cache. It is safe for concurrent use.
type Store struct {
	path       string
	flushDelay time.Duration
	logger     *slog.Logger

	mu      sync.RWMutex
	entries map[string]Entry
	version uint64

	saveMu sync.Mutex
	saved  uint64
	lock   *flock.Flock

	dirty     chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
}

// Open loads the cache at path. An empty path yields an in-memory store.
// A malformed or unreadable file is logged and the store starts empty.
func Open(path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Store{
		path:       strings.TrimSpace(path),
		flushDelay: opts.FlushDelay,
		logger:     logging.NewComponentLogger(logger, "matchcache"),
		entries:    make(map[string]Entry),
	}
	if s.path == "" {
		return s, nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "matchcache", "open", "create cache directory", err)
	}
	s.lock = flock.New(s.path + ".lock")

	if err := s.load(); err != nil {
		logging.WarnWithContext(s.logger, "match cache load failed; starting empty", "match_cache_load_failed",
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect or delete the cache file; it is rewritten on the next flush"),
			logging.String(logging.FieldImpact, "previously resolved records will be searched again"),
		)
		s.entries = make(map[string]Entry)
	}

	if s.flushDelay > 0 {
		s.dirty = make(chan struct{}, 1)
		s.done = make(chan struct{})
		s.wg.Add(1)
		go s.flushLoop()
	}
	return s, nil
}

// Path returns the backing file path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Get returns the entry for fingerprint.
func (s *Store) Get(fingerprint string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[fingerprint]
	return entry, ok
}

// Put upserts the entry for fingerprint and schedules a durable write.
func (s *Store) Put(fingerprint string, entry Entry) error {
	if strings.TrimSpace(fingerprint) == "" {
		return services.Wrap(services.ErrValidation, "matchcache", "put", "fingerprint cannot be empty", nil)
	}
	if !entry.Status.Valid() {
		return services.Wrap(services.ErrValidation, "matchcache", "put", fmt.Sprintf("unknown status %q", entry.Status), nil)
	}
	entry.Fingerprint = fingerprint

	s.mu.Lock()
	s.entries[fingerprint] = entry
	s.version++
	s.mu.Unlock()

	s.logger.Debug("cached match",
		logging.String(logging.FieldFingerprint, fingerprint),
		logging.String("status", string(entry.Status)),
		logging.String("catalog_id", entry.CatalogID))

	return s.schedule()
}

// Remove deletes the entry for fingerprint.
func (s *Store) Remove(fingerprint string) error {
	s.mu.Lock()
	if _, ok := s.entries[fingerprint]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("fingerprint %q: %w", fingerprint, services.ErrNotFound)
	}
	delete(s.entries, fingerprint)
	s.version++
	s.mu.Unlock()

	s.logger.Debug("removed match from cache", logging.String(logging.FieldFingerprint, fingerprint))
	return s.schedule()
}

// Clear drops every entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.entries = make(map[string]Entry)
	s.version++
	s.mu.Unlock()

	s.logger.Debug("cleared match cache")
	return s.schedule()
}

// List returns all entries, newest first, ties broken by fingerprint.
func (s *Store) List() []Entry {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ResolvedAt.Equal(entries[j].ResolvedAt) {
			return entries[i].ResolvedAt.After(entries[j].ResolvedAt)
		}
		return entries[i].Fingerprint < entries[j].Fingerprint
	})
	return entries
}

// Count returns the number of entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns per-status counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Stats{Total: len(s.entries)}
	for _, entry := range s.entries {
		switch entry.Status {
		case StatusResolved:
			stats.Resolved++
		case StatusLowConfidence:
			stats.LowConfidence++
		case StatusTransient:
			stats.Transient++
		}
	}
	return stats
}

// Flush writes pending changes to disk. It is a no-op when nothing changed
// since the last successful write.
func (s *Store) Flush() error {
	if s.path == "" {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	version := s.version
	if version == s.saved {
		s.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	count := len(s.entries)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if err := s.write(data); err != nil {
		return err
	}
	s.saved = version
	s.logger.Debug("flushed match cache",
		logging.Int("entry_count", count),
		logging.String("path", s.path))
	return nil
}

// Close stops the background flusher and writes any pending changes. Writes
// made after Close go straight to disk.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.done != nil {
			close(s.done)
			s.wg.Wait()
		}
	})
	return s.Flush()
}

func (s *Store) schedule() error {
	if s.path == "" {
		return nil
	}
	if s.dirty == nil || s.closed.Load() {
		if err := s.Flush(); err != nil {
			return fmt.Errorf("persist cache: %w", err)
		}
		return nil
	}
	select {
	case s.dirty <- struct{}{}:
	default:
	}
	return nil
}

func (s *Store) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.dirty:
		}

		timer := time.NewTimer(s.flushDelay)
		select {
		case <-timer.C:
		case <-s.done:
			timer.Stop()
			return
		}

		if err := s.Flush(); err != nil {
			logging.WarnWithContext(s.logger, "match cache flush failed", "match_cache_flush_failed",
				logging.String("path", s.path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check disk space and permissions for the cache directory"),
				logging.String(logging.FieldImpact, "recent resolutions may be lost if the process exits"),
			)
		}
	}
}

func (s *Store) load() error {
	if err := s.lock.RLock(); err != nil {
		return fmt.Errorf("lock cache file: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: parse cache file: %w", services.ErrCacheCorruption, err)
	}

	entries := make(map[string]Entry, len(raw))
	for fingerprint, entry := range raw {
		if strings.TrimSpace(fingerprint) == "" {
			continue
		}
		entry.Fingerprint = fingerprint
		entries[fingerprint] = entry
	}
	s.entries = entries

	s.logger.Debug("loaded match cache",
		logging.Int("entry_count", len(entries)),
		logging.String("path", s.path))
	return nil
}

func (s *Store) write(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock cache file: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		cleanup()
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
