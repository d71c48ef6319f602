package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeUntappd()
	c.normalizeDeepL()
	c.normalizeMatching()
	c.normalizeHTTP()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.MatchCache) == "" {
		c.Paths.MatchCache = filepath.Join(c.Paths.CacheDir, defaultMatchCacheName)
	}
	if c.Paths.MatchCache, err = expandPath(c.Paths.MatchCache); err != nil {
		return fmt.Errorf("paths.match_cache: %w", err)
	}
	if strings.TrimSpace(c.Paths.TranslationCache) == "" {
		c.Paths.TranslationCache = filepath.Join(c.Paths.CacheDir, defaultTranslationName)
	}
	if c.Paths.TranslationCache, err = expandPath(c.Paths.TranslationCache); err != nil {
		return fmt.Errorf("paths.translation_cache: %w", err)
	}
	if c.Paths.Overrides, err = expandPath(strings.TrimSpace(c.Paths.Overrides)); err != nil {
		return fmt.Errorf("paths.overrides: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeUntappd() {
	c.Untappd.ClientID = envFallback(c.Untappd.ClientID, "UNTAPPD_CLIENT_ID")
	c.Untappd.ClientSecret = envFallback(c.Untappd.ClientSecret, "UNTAPPD_CLIENT_SECRET")
	c.Untappd.AccessToken = envFallback(c.Untappd.AccessToken, "UNTAPPD_ACCESS_TOKEN")
	c.Untappd.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Untappd.APIBaseURL), "/")
	if c.Untappd.APIBaseURL == "" {
		c.Untappd.APIBaseURL = defaultUntappdAPIBaseURL
	}
	c.Untappd.WebBaseURL = strings.TrimRight(strings.TrimSpace(c.Untappd.WebBaseURL), "/")
	if c.Untappd.WebBaseURL == "" {
		c.Untappd.WebBaseURL = defaultUntappdWebBaseURL
	}
	if c.Untappd.SearchLimit == 0 {
		c.Untappd.SearchLimit = defaultSearchLimit
	}
	if c.Untappd.WebRequestsPerHour == 0 {
		c.Untappd.WebRequestsPerHour = defaultWebRequestsPerHour
	}
}

func (c *Config) normalizeDeepL() {
	c.DeepL.APIKey = envFallback(c.DeepL.APIKey, "DEEPL_API_KEY")
	c.DeepL.BaseURL = strings.TrimRight(strings.TrimSpace(c.DeepL.BaseURL), "/")
	if c.DeepL.BaseURL == "" {
		c.DeepL.BaseURL = defaultDeepLBaseURL
	}
}

func (c *Config) normalizeMatching() {
	if c.Matching.Workers == 0 {
		c.Matching.Workers = defaultWorkers
	}
	order := make([]string, 0, len(c.Matching.TieBreak))
	seen := make(map[string]struct{}, len(c.Matching.TieBreak))
	for _, key := range c.Matching.TieBreak {
		normalized := strings.ToLower(strings.TrimSpace(key))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		order = append(order, normalized)
	}
	if len(order) == 0 {
		order = append(order, defaultTieBreak...)
	}
	c.Matching.TieBreak = order
}

func (c *Config) normalizeHTTP() {
	if c.HTTP.RequestTimeoutSeconds == 0 {
		c.HTTP.RequestTimeoutSeconds = defaultRequestTimeout
	}
	if c.HTTP.MaxAttempts == 0 {
		c.HTTP.MaxAttempts = defaultMaxAttempts
	}
	if c.HTTP.DefaultIntervalMillis == 0 {
		c.HTTP.DefaultIntervalMillis = defaultIntervalMillis
	}
	intervals := make(map[string]float64, len(c.HTTP.DomainIntervals))
	for domain, seconds := range c.HTTP.DomainIntervals {
		key := strings.ToLower(strings.TrimSpace(domain))
		if key == "" {
			continue
		}
		intervals[key] = seconds
	}
	c.HTTP.DomainIntervals = intervals
	c.HTTP.UserAgent = strings.TrimSpace(c.HTTP.UserAgent)
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envFallback(current, key string) string {
	current = strings.TrimSpace(current)
	if current != "" {
		return current
	}
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
