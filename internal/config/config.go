package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains cache and log locations.
type Paths struct {
	CacheDir         string `toml:"cache_dir"`
	MatchCache       string `toml:"match_cache"`
	TranslationCache string `toml:"translation_cache"`
	Overrides        string `toml:"overrides"`
	LogDir           string `toml:"log_dir"`
}

// Untappd contains catalog credentials and endpoints. Leaving every
// credential empty puts the matcher in web-only mode.
type Untappd struct {
	ClientID             string `toml:"client_id"`
	ClientSecret         string `toml:"client_secret"`
	AccessToken          string `toml:"access_token"`
	APIBaseURL           string `toml:"api_base_url"`
	WebBaseURL           string `toml:"web_base_url"`
	SearchLimit          int    `toml:"search_limit"`
	QuotaCooldownSeconds int    `toml:"quota_cooldown_seconds"`
	WebRequestsPerHour   int    `toml:"web_requests_per_hour"`
}

// DeepL contains configuration for the external translation API.
type DeepL struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// Matching contains scoring and cache retry settings.
type Matching struct {
	AcceptanceThreshold float64  `toml:"acceptance_threshold"`
	Margin              float64  `toml:"margin"`
	BreweryBonus        float64  `toml:"brewery_bonus"`
	SearchFloor         float64  `toml:"search_floor"`
	RetryWindowHours    int      `toml:"retry_window_hours"`
	ResolvedTTLHours    int      `toml:"resolved_ttl_hours"`
	Workers             int      `toml:"workers"`
	TieBreak            []string `toml:"tie_break"`
}

// HTTP contains outbound request pacing and retry bounds.
type HTTP struct {
	RequestTimeoutSeconds int                `toml:"request_timeout_seconds"`
	MaxAttempts           int                `toml:"max_attempts"`
	BackoffBaseMillis     int                `toml:"backoff_base_ms"`
	BackoffMaxSeconds     int                `toml:"backoff_max_seconds"`
	DefaultIntervalMillis int                `toml:"default_interval_ms"`
	DomainIntervals       map[string]float64 `toml:"domain_intervals"`
	UserAgent             string             `toml:"user_agent"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for strinks.
//
// Configuration sections by subsystem:
//   - Paths: match cache, translation cache, override dictionary, logs
//   - Untappd: catalog API credentials and web fallback endpoint
//   - DeepL: translation API credentials
//   - Matching: acceptance threshold, margin, retry windows, workers
//   - HTTP: request timeout, retry bounds, per-domain pacing
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Untappd  Untappd  `toml:"untappd"`
	DeepL    DeepL    `toml:"deepl"`
	Matching Matching `toml:"matching"`
	HTTP     HTTP     `toml:"http"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("strinks.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.CacheDir, filepath.Dir(c.Paths.MatchCache)}
	if c.Paths.TranslationCache != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.TranslationCache))
	}
	if c.Paths.LogDir != "" {
		dirs = append(dirs, c.Paths.LogDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HasAPICredentials reports whether the Untappd API backend can be used.
func (c *Config) HasAPICredentials() bool {
	if c.Untappd.AccessToken != "" {
		return true
	}
	return c.Untappd.ClientID != "" && c.Untappd.ClientSecret != ""
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.RequestTimeoutSeconds) * time.Second
}

// DefaultInterval returns the pacing interval applied to domains without an override.
func (c *Config) DefaultInterval() time.Duration {
	return time.Duration(c.HTTP.DefaultIntervalMillis) * time.Millisecond
}

// DomainIntervals returns per-domain pacing overrides as durations.
func (c *Config) DomainIntervals() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.HTTP.DomainIntervals))
	for domain, seconds := range c.HTTP.DomainIntervals {
		out[domain] = time.Duration(seconds * float64(time.Second))
	}
	return out
}

// RetryWindow returns how long a low-confidence miss is honored.
func (c *Config) RetryWindow() time.Duration {
	return time.Duration(c.Matching.RetryWindowHours) * time.Hour
}

// ResolvedTTL returns how long a resolved match is honored. Zero means forever.
func (c *Config) ResolvedTTL() time.Duration {
	return time.Duration(c.Matching.ResolvedTTLHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "strinks")
	}
	return "~/.cache/strinks"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
