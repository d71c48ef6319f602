// Package services defines shared utilities consumed by the matcher, the
// catalog backends, and the translation assist.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, record fingerprints, and
//     backend names for logging.
//   - Structured error markers plus the Wrap helper that let callers classify
//     failures (auth, quota, transient, parse) with errors.Is after any amount
//     of wrapping.
//
// Use these helpers when wiring new components so failure classification and
// observability stay uniform across the resolution pipeline.
package services
