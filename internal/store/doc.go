// Package store provides SQLite-backed storage for evaluation traces.
//
// Every pass a driver runs can be recorded: the pass itself (graph name,
// cycle, kind, whether its batches were applied) and one row per root
// with the value it produced or the error it raised.
//
// # Ordering
//
//   - Passes get a store-assigned seq on first write; reads order by
//     seq ASC, id ASC COLLATE BINARY.
//   - Root results keep the driver's registration order (position).
//
// # Values
//
// Pure root values are stored as canonical JSON (value.MarshalCanonical)
// together with a domain-separated SHA-256 hash, so equal values have
// equal hashes across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
