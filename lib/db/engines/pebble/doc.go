// Package pebble implements db.Engine on top of github.com/cockroachdb/pebble,
// the RocksDB-inspired LSM-tree that backs CockroachDB.
//
// Design notes:
//
//  1. Writes: Insert, Remove and WriteBatch go through the WAL without an
//     fsync (pebble.NoSync) unless Config.SyncWrites is set. Persist always
//     commits with pebble.Sync. Pebble's WAL is sequential, so a synced
//     Persist also makes every earlier write durable. The prefix allocator
//     relies on this when it raises its ceiling.
//
//  2. Batches: WriteBatch maps onto a pebble.Batch, which pebble applies
//     atomically.
//
//  3. Iteration: bounds are handed to pebble as IterOptions so the LSM can
//     skip sstables outside of the range. Reverse scans start at Last() and
//     walk with Prev().
//
//  4. Logging: pebble's internal logger is routed into the dragonboat
//     logger named "engine", so pebble messages share the store's format and
//     level.
//
//  5. In-memory mode: Config.InMemory opens the database on vfs.NewMem().
//     This is used by tests that want real LSM behaviour without touching
//     the disk.
package pebble
