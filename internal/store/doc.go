// Package store provides SQLite-backed durable storage for palletwatch.
//
// The store holds three append-mostly tables:
//   - records: one output record per processed event (row or key-value layout)
//   - processed_ids: the persisted deduplication ledger, in insertion order
//   - dispatches: the reminder claim log, one row per dispatch key
//
// # Idempotency
//
// Records are unique per event id and dispatch claims are unique per
// (date, center, kind). Both are written with INSERT ... ON CONFLICT DO
// NOTHING, so replaying a write is harmless and the caller learns from the
// affected-row count whether it was first.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
