package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"strings"
	"time"

	"strinks/internal/services"
)

// FieldErrorClass names the failure class of the "error" attribute in JSON
// lines so log queries can filter by kind without parsing messages.
const FieldErrorClass = "error_class"

// jsonHandler writes one JSON object per record. Run, fingerprint, and
// backend values found on the record's context are added unless the logger
// already carries them, and error attributes are tagged with their class.
type jsonHandler struct {
	inner   slog.Handler
	bound   map[string]struct{}
	grouped bool
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	}
	return &jsonHandler{inner: slog.NewJSONHandler(w, &opts), bound: map[string]struct{}{}}
}

func replaceJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch attr.Key {
		case slog.TimeKey:
			attr.Key = "ts"
			if attr.Value.Kind() == slog.KindTime {
				attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return attr
		case slog.LevelKey:
			attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			return attr
		case slog.SourceKey:
			if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
				attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
			}
			return attr
		}
	}
	// pacing waits and retry delays read better as "1.5s" than as nanoseconds
	if attr.Value.Kind() == slog.KindDuration {
		attr.Value = slog.StringValue(attr.Value.Duration().String())
	}
	return attr
}

func (h *jsonHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *jsonHandler) Handle(ctx context.Context, r slog.Record) error {
	present := make(map[string]bool, r.NumAttrs())
	class := ""
	r.Attrs(func(a slog.Attr) bool {
		present[a.Key] = true
		if a.Key == "error" && class == "" {
			if err, ok := a.Value.Resolve().Any().(error); ok {
				class = ErrorClass(err)
			}
		}
		return true
	})

	var extra []slog.Attr
	if class != "" && !present[FieldErrorClass] {
		extra = append(extra, slog.String(FieldErrorClass, class))
	}
	if !h.grouped {
		for _, field := range ContextFields(ctx) {
			if _, ok := h.bound[field.Key]; ok || present[field.Key] {
				continue
			}
			extra = append(extra, field)
		}
	}
	if len(extra) > 0 {
		r = r.Clone()
		r.AddAttrs(extra...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &jsonHandler{inner: h.inner.WithAttrs(attrs), bound: h.bound, grouped: h.grouped}
	if !h.grouped && len(attrs) > 0 {
		next.bound = maps.Clone(h.bound)
		for _, a := range attrs {
			next.bound[a.Key] = struct{}{}
		}
	}
	return next
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &jsonHandler{inner: h.inner.WithGroup(name), bound: h.bound, grouped: true}
}

// ErrorClass returns a short label for the failure class err belongs to, or
// "" when err carries none of the service markers.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, services.ErrAuth):
		return "auth"
	case errors.Is(err, services.ErrQuota):
		return "quota"
	case errors.Is(err, services.ErrNotFound):
		return "not_found"
	case errors.Is(err, services.ErrParse):
		return "parse"
	case errors.Is(err, services.ErrTransient):
		return "transient"
	case errors.Is(err, services.ErrLowConfidence):
		return "low_confidence"
	case errors.Is(err, services.ErrCacheCorruption):
		return "cache_corruption"
	case errors.Is(err, services.ErrValidation):
		return "validation"
	case errors.Is(err, services.ErrConfiguration):
		return "configuration"
	}
	return ""
}
