// Package store persists the two halves of the cache.
//
// The content store is a flat directory of write-once files named by
// fingerprint: <fingerprint>.stan holds canonical program text,
// <fingerprint>.json holds a canonical dataset serialization. An existing
// file is trusted and never rewritten; new files land via a temp file and
// rename so a half-written file never appears under its final name.
//
// The memo table records run results keyed by the exact argument tuple of an
// invocation. It is SQLite-backed (memo.db inside the cache root) with WAL
// mode and a single-writer connection pool. Entries are write-once: a
// duplicate put is silently ignored.
package store
