// Package main hosts the strinks CLI entrypoint and command graph.
//
// The Cobra command tree wires the resolution core together: it loads the
// configuration, builds the shared HTTP session, catalog backends, translation
// service and match cache, then runs batches of retail listings through the
// matcher. Cache administration, one-off translation and catalog lookups are
// exposed for operators.
//
// Keep this package lean: new behaviour belongs in the internal packages and
// is surfaced here through commands or flags.
package main
