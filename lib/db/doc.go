// Package db provides the standardized interface for the flat, byte-oriented
// key-value backends the versioned store is built on.
//
// The package focuses on:
//   - A unified interface for ordered key-value operations
//   - Feature discovery through capability flags
//   - Atomic batch writes and synced metadata writes
//   - Comprehensive metadata reporting
//
// Key Components:
//
//   - Engine Interface: The core interface that all backends must satisfy.
//     It provides point operations (Get, Insert, Remove), ordered range
//     iteration (NewIterator), atomic multi-op commits (WriteBatch) and small
//     durable metadata writes (Persist, LoadMeta).
//
//   - Feature Flags: The Feature type defines capability flags that backends
//     advertise through SupportsFeature. The in-memory backend for example
//     does not set FeatureDurable.
//
//   - Implementation Identifiers: The Implementation type names the
//     available backends ("pebble", "level", "memory"). The store selects one
//     at construction time, there are no build tags.
//
//   - Database Information: DatabaseInfo reports size estimates, the backend
//     type and backend-specific metadata. Sizes are estimates for all
//     durable backends since a precise calculation is expensive.
//
// Ordering and atomicity contract:
//   - Keys are ordered bytewise. An iterator bounded by [Lower, Upper) never
//     returns a key outside of that range, in either direction.
//   - WriteBatch is all or nothing. A failed batch leaves no partial state.
//   - Persist returns only after the value reached stable storage. It is
//     meant for tiny, rarely written values such as the prefix ceiling.
//   - Removing a missing key succeeds.
//
// Related Packages:
//
// The engines/pebble package wraps github.com/cockroachdb/pebble, the
// RocksDB-like LSM used by CockroachDB. The engines/level package wraps
// github.com/syndtr/goleveldb, a pure-Go LevelDB port. The engines/memory
// package keeps everything in a github.com/google/btree and is meant for
// tests and ephemeral stores.
//
// The testing package (github.com/ValentinKolb/vsdb/lib/db/testing) provides
// standardized tests and benchmarks for every Engine implementation.
//   - RunEngineTests: Runs the conformance suite
//   - RunEngineBenchmarks: Provides comparable performance numbers
package db
