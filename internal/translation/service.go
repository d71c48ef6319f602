package translation

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"strinks/internal/logging"
)

// Remote translates text over the network.
type Remote interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Options wires the lookup tiers of a Service. Every tier is optional.
type Options struct {
	Dictionary *Dictionary
	Cache      *Cache
	Remote     Remote
	Logger     *slog.Logger
}

// Service resolves translations through the override dictionary, the
// persistent cache, and finally the remote translator. It never fails:
// when every tier misses or errors, the input comes back unchanged.
type Service struct {
	dict   *Dictionary
	cache  *Cache
	remote Remote
	logger *slog.Logger
	flight singleflight.Group
}

// New builds a Service from opts.
func New(opts Options) *Service {
	return &Service{
		dict:   opts.Dictionary,
		cache:  opts.Cache,
		remote: opts.Remote,
		logger: logging.NewComponentLogger(opts.Logger, "translation"),
	}
}

// Translate returns text translated from one language to another, or text
// itself when no translation is available. Japanese-to-anything requests for
// text without Japanese characters return immediately.
func (s *Service) Translate(ctx context.Context, text, from, to string) string {
	source := strings.TrimSpace(text)
	if source == "" {
		return text
	}
	if v, ok := s.dict.Lookup(source); ok {
		return v
	}
	if strings.EqualFold(from, "ja") && !HasJapanese(source) {
		return text
	}

	key := from + "\x00" + to + "\x00" + source
	v, _, _ := s.flight.Do(key, func() (any, error) {
		return s.lookup(ctx, source, from, to), nil
	})
	if translated, ok := v.(string); ok && translated != "" {
		return translated
	}
	return text
}

// Romanize transliterates kana to romaji.
func (s *Service) Romanize(text string) string {
	return Romanize(text)
}

// HasJapanese reports whether text contains Japanese characters.
func (s *Service) HasJapanese(text string) bool {
	return HasJapanese(text)
}

// Close releases the persistent cache.
func (s *Service) Close() error {
	return s.cache.Close()
}

func (s *Service) lookup(ctx context.Context, source, from, to string) string {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, source, from, to)
		switch {
		case err != nil:
			logging.WarnWithContext(s.logger, "translation cache read failed", "translation_cache_read_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the translation cache database"),
				logging.String(logging.FieldImpact, "translation falls through to the remote service"),
			)
		case ok:
			return cached
		}
	}

	if s.remote == nil {
		s.logger.Debug("no remote translator configured", logging.String("text", source))
		return source
	}
	translated, err := s.remote.Translate(ctx, source, from, to)
	if err != nil {
		logging.WarnWithContext(s.logger, "translation failed; using original text", "translation_failed",
			logging.String("text", source),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check deepl.api_key and quota"),
			logging.String(logging.FieldImpact, "query variants fall back to the original name"),
		)
		return source
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, source, from, to, translated); err != nil {
			logging.WarnWithContext(s.logger, "translation cache write failed", "translation_cache_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check disk space and permissions for the cache directory"),
				logging.String(logging.FieldImpact, "the text will be translated again next run"),
			)
		}
	}
	s.logger.Debug("translated text",
		logging.String("text", source),
		logging.String("translation", translated))
	return translated
}
