// Package store provides SQLite-backed durable storage for the script
// content cache.
//
// The store keeps two tables:
//   - Scripts: fetched script bodies keyed by URL, with a content hash
//   - Bad scripts: the negative cache of identifiers known to fail loading
//
// # Ordering
//
// Rows are ordered by insertion (rowid), never by wall-clock timestamps,
// so listings are deterministic across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Content hashes are computed via entity.ContentHash (NFC-normalized,
// domain-separated SHA-256).
package store
