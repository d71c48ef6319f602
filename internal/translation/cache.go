package translation

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"strinks/internal/clock"
	"strinks/internal/retry"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

const sqliteBusyCode = 5

// ErrSchemaMismatch indicates the cache database was written by an
// incompatible version.
var ErrSchemaMismatch = errors.New("translation cache schema version mismatch")

// busyPolicy retries statements that hit SQLITE_BUSY.
var busyPolicy = retry.Policy{
	MaxAttempts: 5,
	Backoff:     retry.ExponentialNoJitter(10*time.Millisecond, 200*time.Millisecond),
	Retryable:   isSQLiteBusy,
}

// Cache persists translations in SQLite.
type Cache struct {
	db    *sql.DB
	path  string
	clock clock.Clock
}

// OpenCache opens or creates the translation cache database at path.
func OpenCache(ctx context.Context, path string) (*Cache, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("translation cache path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection keeps the pragmas below in effect for every statement
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	cache := &Cache{db: db, path: path, clock: clock.Real()}
	if err := cache.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return cache, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the cached translation of text.
func (c *Cache) Get(ctx context.Context, text, from, to string) (string, bool, error) {
	var translated string
	err := busyPolicy.Do(ctx, c.clock, func(ctx context.Context) error {
		return c.db.QueryRowContext(ctx,
			`SELECT translated_text FROM translations
             WHERE source_text = ? AND source_lang = ? AND target_lang = ?`,
			text, from, to,
		).Scan(&translated)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query translation: %w", err)
	}
	return translated, true, nil
}

// Put stores or replaces the translation of text.
func (c *Cache) Put(ctx context.Context, text, from, to, translated string) error {
	timestamp := c.clock.Now().UTC().Format(time.RFC3339Nano)
	err := busyPolicy.Do(ctx, c.clock, func(ctx context.Context) error {
		_, execErr := c.db.ExecContext(ctx,
			`INSERT INTO translations (source_text, source_lang, target_lang, translated_text, created_at)
             VALUES (?, ?, ?, ?, ?)
             ON CONFLICT (source_text, source_lang, target_lang)
             DO UPDATE SET translated_text = excluded.translated_text, created_at = excluded.created_at`,
			text, from, to, translated, timestamp,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("store translation: %w", err)
	}
	return nil
}

// Count returns the number of cached translations.
func (c *Cache) Count(ctx context.Context) (int, error) {
	var count int
	err := busyPolicy.Do(ctx, c.clock, func(ctx context.Context) error {
		return c.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM translations").Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("count translations: %w", err)
	}
	return count, nil
}

func (c *Cache) initSchema(ctx context.Context) error {
	var tableExists int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return c.createSchema(ctx)
	}

	var version int
	if err := c.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, c.path)
	}
	return nil
}

func (c *Cache) createSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
