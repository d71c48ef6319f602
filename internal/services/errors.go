package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAuth            = errors.New("catalog authentication rejected")
	ErrQuota           = errors.New("catalog quota exceeded")
	ErrNotFound        = errors.New("not found")
	ErrTransient       = errors.New("transient failure")
	ErrLowConfidence   = errors.New("low confidence")
	ErrCacheCorruption = errors.New("cache corruption")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
)

// ErrParse marks markup or payload that could not be interpreted. It is a
// transient failure: errors.Is(err, ErrTransient) holds for any parse error.
var ErrParse = fmt.Errorf("%w: parse failure", ErrTransient)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFallbackTrigger reports whether err should switch the run from the API
// backend to the web backend for the rest of the run.
func IsFallbackTrigger(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrQuota)
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
