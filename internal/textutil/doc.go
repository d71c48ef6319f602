// Package textutil provides the text primitives used to key and compare beer
// records.
//
// The primary use cases are:
//   - Normalizing names so visually equivalent spellings compare equal
//   - Building record fingerprints from (name, brewery) pairs
//   - Scoring candidate names with edit-distance and token similarity
//
// Normalization applies NFKC, Unicode case folding, removal of combining
// marks and format characters, width folding, and whitespace collapse. Every
// function in this package is pure and safe for concurrent use.
package textutil
