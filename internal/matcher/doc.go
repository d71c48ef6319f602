// Package matcher resolves retail beer records against the catalog.
//
// A Matcher owns the per-record procedure: fingerprint the record, reuse a
// fresh cache entry when one exists, otherwise search the catalog with a
// lazily generated list of query variants (original, translated, romanized,
// brewery-qualified), score the merged candidates and either accept the best
// one or record a low-confidence or transient miss. Concurrent requests for
// the same fingerprint share one resolution.
//
// Run drives a batch of records through a bounded worker pool and reports a
// Summary; a Sink receives one upsert per processed record.
package matcher
