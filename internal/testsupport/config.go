package testsupport

import (
	"path/filepath"
	"testing"

	"strinks/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Credentials are cleared so tests run in web-only mode unless an option adds them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.MatchCache = filepath.Join(base, "cache", "untappd_cache.json")
	cfgVal.Paths.TranslationCache = filepath.Join(base, "cache", "translations.db")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Untappd.ClientID = ""
	cfgVal.Untappd.ClientSecret = ""
	cfgVal.Untappd.AccessToken = ""
	cfgVal.DeepL.APIKey = ""
	cfgVal.HTTP.DefaultIntervalMillis = 0
	cfgVal.HTTP.DomainIntervals = map[string]float64{}
	cfgVal.HTTP.BackoffBaseMillis = 1
	cfgVal.HTTP.BackoffMaxSeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPICredentials sets Untappd client credentials.
func WithAPICredentials(id, secret string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Untappd.ClientID = id
		b.cfg.Untappd.ClientSecret = secret
	}
}

// WithUntappdURLs overrides the API and web endpoints, typically with httptest servers.
func WithUntappdURLs(apiBase, webBase string) ConfigOption {
	return func(b *configBuilder) {
		if apiBase != "" {
			b.cfg.Untappd.APIBaseURL = apiBase
		}
		if webBase != "" {
			b.cfg.Untappd.WebBaseURL = webBase
		}
	}
}

// WithWorkers overrides the matcher worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Matching.Workers = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
