// Package translation turns Japanese beer and brewery names into forms the
// catalog can match.
//
// Service.Translate consults three tiers in order:
//
//  1. an override dictionary (built-in brewery names plus an optional JSON
//     file), matched exactly after trimming;
//  2. a SQLite cache of earlier remote translations;
//  3. the DeepL API, reached through the shared HTTP session.
//
// Failures never surface to callers: the original text is returned and a
// warning is logged. Romanize provides a deterministic kana to Hepburn
// transliteration that needs no network at all.
package translation
