package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateUntappd(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateHTTP(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.MatchCache) == "" {
		return errors.New("paths.match_cache must be set")
	}
	return nil
}

func (c *Config) validateUntappd() error {
	if (c.Untappd.ClientID == "") != (c.Untappd.ClientSecret == "") {
		return errors.New("untappd.client_id and untappd.client_secret must be set together")
	}
	if c.Untappd.SearchLimit < 1 || c.Untappd.SearchLimit > 50 {
		return errors.New("untappd.search_limit must be between 1 and 50")
	}
	if c.Untappd.QuotaCooldownSeconds < 0 {
		return errors.New("untappd.quota_cooldown_seconds must be >= 0")
	}
	if c.Untappd.WebRequestsPerHour < 1 {
		return errors.New("untappd.web_requests_per_hour must be positive")
	}
	return nil
}

func (c *Config) validateMatching() error {
	m := c.Matching
	if m.AcceptanceThreshold <= 0 {
		return errors.New("matching.acceptance_threshold must be positive")
	}
	if m.Margin < 0 {
		return errors.New("matching.margin must be >= 0")
	}
	if m.BreweryBonus < 0 {
		return errors.New("matching.brewery_bonus must be >= 0")
	}
	if m.SearchFloor < 0 || m.SearchFloor > m.AcceptanceThreshold {
		return errors.New("matching.search_floor must be between 0 and acceptance_threshold")
	}
	if m.RetryWindowHours < 0 {
		return errors.New("matching.retry_window_hours must be >= 0")
	}
	if m.ResolvedTTLHours < 0 {
		return errors.New("matching.resolved_ttl_hours must be >= 0")
	}
	if m.Workers < 1 {
		return errors.New("matching.workers must be >= 1")
	}
	for _, key := range m.TieBreak {
		switch key {
		case "brewery", "rating", "id":
		default:
			return fmt.Errorf("matching.tie_break: unsupported key %q", key)
		}
	}
	return nil
}

func (c *Config) validateHTTP() error {
	if c.HTTP.RequestTimeoutSeconds < 1 {
		return errors.New("http.request_timeout_seconds must be positive")
	}
	if c.HTTP.MaxAttempts < 1 {
		return errors.New("http.max_attempts must be >= 1")
	}
	if c.HTTP.BackoffBaseMillis < 0 || c.HTTP.BackoffMaxSeconds < 0 {
		return errors.New("http backoff bounds must be >= 0")
	}
	if c.HTTP.DefaultIntervalMillis < 0 {
		return errors.New("http.default_interval_ms must be >= 0")
	}
	for domain, seconds := range c.HTTP.DomainIntervals {
		if seconds < 0 {
			return fmt.Errorf("http.domain_intervals.%s must be >= 0", domain)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
