// Package journal provides a SQLite-backed log of the plain actions that
// reached a store's reducer.
//
// The journal is opt-in: install [Recorder] as the innermost middleware and
// every successfully reduced store.Action is appended as an [Entry].
// Deferred computations never reach it, so only their effects are recorded.
//
// # Ordering and identity
//
//   - Entries are stamped with a logical sequence number from a [Sequencer],
//     never a wall-clock timestamp
//   - Entry IDs are content-addressed: SHA-256 over canonical JSON of
//     (session, seq, type, payload) with domain separation
//   - Appends are idempotent (ON CONFLICT(id) DO NOTHING)
//   - Reads are ordered by seq ASC, id ASC
//
// # Database configuration
//
//   - WAL mode, synchronous=NORMAL, busy_timeout=5000
//   - a single open connection (SQLite has one writer)
//   - schema migrations tracked with PRAGMA user_version
//
// Payloads must be canonical-JSON encodable: no floats, no nulls.
package journal
