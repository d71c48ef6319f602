// Package config loads, normalizes, and validates strinks configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// UNTAPPD_CLIENT_ID and DEEPL_API_KEY. The Config type centralizes every knob
// the matcher and CLI need: catalog credentials, per-domain pacing, scoring
// thresholds, and cache locations.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
