// Package store provides SQLite-backed durable storage for addressed tokens.
//
// Each row of cache_records maps a content identifier to the content it
// addresses and the (level, number) token the content was derived from.
//
// # Access Patterns
//
//   - Writes: Upsert and UpsertBatch on a single writer connection.
//     UpsertBatch commits one transaction per batch, so readers see either
//     all of a batch or none of it.
//   - Point reads: Get by identifier, GetByToken by (level, number).
//   - Bulk reads: GetMany chunks its IN (...) queries below SQLite's
//     parameter limit and runs all chunks inside one read transaction.
//
// Readers use a pooled set of read-only connections and never wait on the
// writer beyond WAL's own locking.
//
// # Addressing Scheme
//
// A store only ever holds identifiers of one scheme. The first build
// records it with ClaimScheme; a later build with another scheme gets
// ErrSchemeMismatch before it writes anything.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: 5 second lock wait
//   - user_version: Schema migration tracking
package store
