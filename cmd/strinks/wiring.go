package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"strinks/internal/catalog"
	"strinks/internal/catalog/untappd"
	"strinks/internal/config"
	"strinks/internal/httpsession"
	"strinks/internal/logging"
	"strinks/internal/matchcache"
	"strinks/internal/translation"
)

// cacheFlushDelay coalesces match cache writes during a batch run.
const cacheFlushDelay = 2 * time.Second

// runtime holds the process-scoped collaborators shared by commands. Every
// field is optional; Close releases whatever was opened.
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	session    *httpsession.Session
	api        *untappd.APIClient
	web        *untappd.WebClient
	translator *translation.Service
	cache      *matchcache.Store
}

func (c *commandContext) newRuntime() (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	sessionOpts := httpsession.OptionsFromConfig(cfg)
	sessionOpts.Logger = logger
	return &runtime{
		cfg:     cfg,
		logger:  logger,
		session: httpsession.New(sessionOpts),
	}, nil
}

// openCatalog builds the web backend and, when credentials exist, the API backend.
func (r *runtime) openCatalog() error {
	webOpts := untappd.WebOptionsFromConfig(r.cfg)
	webOpts.Logger = r.logger
	web, err := untappd.NewWebClient(r.session, webOpts)
	if err != nil {
		return err
	}
	r.web = web

	if !r.cfg.HasAPICredentials() {
		r.logger.Info("untappd api credentials not configured; using web backend only")
		return nil
	}
	apiOpts := untappd.APIOptionsFromConfig(r.cfg)
	apiOpts.Logger = r.logger
	api, err := untappd.NewAPIClient(r.session, apiOpts)
	if err != nil {
		return err
	}
	r.api = api
	return nil
}

// openTranslator loads the override dictionary and the persistent
// translation cache. A cache that cannot be opened only costs performance.
func (r *runtime) openTranslator(ctx context.Context) error {
	dict, err := translation.LoadDictionary(r.cfg.Paths.Overrides)
	if err != nil {
		return fmt.Errorf("load translation overrides: %w", err)
	}
	opts := translation.Options{Dictionary: dict, Logger: r.logger}

	if path := r.cfg.Paths.TranslationCache; path != "" {
		cache, err := translation.OpenCache(ctx, path)
		if err != nil {
			logging.WarnWithContext(r.logger, "translation cache unavailable", "translation_cache_open_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete or repair the translation cache database"),
				logging.String(logging.FieldImpact, "translations are requested again every run"),
			)
		} else {
			opts.Cache = cache
		}
	}
	if remote := translation.NewDeepLClient(r.session, r.cfg.DeepL.BaseURL, r.cfg.DeepL.APIKey); remote != nil {
		opts.Remote = remote
	} else {
		r.logger.Info("deepl api key not configured; translation limited to the override dictionary")
	}
	r.translator = translation.New(opts)
	return nil
}

func (r *runtime) openCache(flushDelay time.Duration) error {
	cache, err := matchcache.Open(r.cfg.Paths.MatchCache, matchcache.Options{
		FlushDelay: flushDelay,
		Logger:     r.logger,
	})
	if err != nil {
		return err
	}
	r.cache = cache
	return nil
}

// infoProvider prefers the API backend for single-beer lookups.
func (r *runtime) infoProvider() catalog.InfoProvider {
	if r.api != nil {
		return r.api
	}
	return r.web
}

// Close flushes the match cache and releases the translation cache.
func (r *runtime) Close() error {
	var errs []error
	if r.cache != nil {
		if err := r.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close match cache: %w", err))
		}
	}
	if r.translator != nil {
		if err := r.translator.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close translation cache: %w", err))
		}
	}
	return errors.Join(errs...)
}
