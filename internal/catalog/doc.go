// Package catalog defines the beer catalog contract shared by the matcher and
// its backends.
//
// A Searcher returns candidates in the backend's own relevance order. Errors
// carry one of the sentinel markers from internal/services so callers can
// decide between retrying, falling back to another backend, or recording a
// miss; Classify maps an error to that decision.
//
// Concrete backends live in subpackages (see catalog/untappd).
package catalog
