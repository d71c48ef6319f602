package config

const (
	defaultConfigPath          = "~/.config/strinks/config.toml"
	defaultMatchCacheName      = "untappd_cache.json"
	defaultTranslationName     = "translations.db"
	defaultUntappdAPIBaseURL   = "https://api.untappd.com/v4"
	defaultUntappdWebBaseURL   = "https://untappd.com"
	defaultSearchLimit         = 10
	defaultQuotaCooldown       = 600
	defaultWebRequestsPerHour  = 1000
	defaultDeepLBaseURL        = "https://api-free.deepl.com/v2"
	defaultAcceptanceThreshold = 0.8
	defaultMargin              = 0.05
	defaultBreweryBonus        = 0.2
	defaultSearchFloor         = 0.5
	defaultRetryWindowHours    = 24 * 7
	defaultResolvedTTLHours    = 24 * 30
	defaultWorkers             = 4
	defaultRequestTimeout      = 10
	defaultMaxAttempts         = 4
	defaultBackoffBaseMillis   = 500
	defaultBackoffMaxSeconds   = 30
	defaultIntervalMillis      = 500
	defaultUserAgent           = "strinks/dev"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

var defaultTieBreak = []string{"brewery", "rating", "id"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir(),
		},
		Untappd: Untappd{
			APIBaseURL:           defaultUntappdAPIBaseURL,
			WebBaseURL:           defaultUntappdWebBaseURL,
			SearchLimit:          defaultSearchLimit,
			QuotaCooldownSeconds: defaultQuotaCooldown,
			WebRequestsPerHour:   defaultWebRequestsPerHour,
		},
		DeepL: DeepL{
			BaseURL: defaultDeepLBaseURL,
		},
		Matching: Matching{
			AcceptanceThreshold: defaultAcceptanceThreshold,
			Margin:              defaultMargin,
			BreweryBonus:        defaultBreweryBonus,
			SearchFloor:         defaultSearchFloor,
			RetryWindowHours:    defaultRetryWindowHours,
			ResolvedTTLHours:    defaultResolvedTTLHours,
			Workers:             defaultWorkers,
			TieBreak:            append([]string(nil), defaultTieBreak...),
		},
		HTTP: HTTP{
			RequestTimeoutSeconds: defaultRequestTimeout,
			MaxAttempts:           defaultMaxAttempts,
			BackoffBaseMillis:     defaultBackoffBaseMillis,
			BackoffMaxSeconds:     defaultBackoffMaxSeconds,
			DefaultIntervalMillis: defaultIntervalMillis,
			DomainIntervals: map[string]float64{
				"untappd.com": 1.0,
			},
			UserAgent: defaultUserAgent,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
