// Package matchcache persists catalog resolutions keyed by record fingerprint.
//
// The store keeps every entry in memory and mirrors it to a single JSON
// object on disk (default: ~/.cache/strinks/match_cache.json):
//
//	{
//	  "punk ipa|brewdog": {
//	    "catalogId": "4473",
//	    "name": "Punk IPA",
//	    "brewery": "BrewDog",
//	    "rating": 3.71,
//	    "resolvedAt": "2026-05-01T10:00:00Z",
//	    "status": "resolved",
//	    "query": "Punk IPA"
//	  }
//	}
//
// Writes are coalesced by a background flusher and land through a temp file
// plus rename, serialized in-process by a save lock and across processes by
// a flock on "<path>.lock". A malformed file is reported and replaced by an
// empty cache on the next flush.
//
// Entries carry one of three statuses. Resolved entries are reused until the
// configured TTL expires (never, when the TTL is zero). Low-confidence misses
// are reused within the retry window. Transient misses are retried on every
// run.
package matchcache
