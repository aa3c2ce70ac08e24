// Package store provides SQLite-backed durable storage for lifetimes.
//
// The store keeps two kinds of state:
//   - kv: values written by persisted accessors (implements kv.Store)
//   - runs and events: simulator traces, keyed by run token
//
// Event ordering uses the logical seq column, never timestamps, so a stored
// trace reads back in exactly the order it was recorded.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
