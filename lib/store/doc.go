// Package store ties an engine, the prefix allocator and the version
// manager together into one handle.
//
// Key Components:
//
//   - Store: opened from a Config that selects the engine at runtime
//     (pebble, level or memory). It hands out collections (NewMap,
//     NewVersionedMap), reattaches them by prefix after a restart
//     (OpenMap, OpenVersionedMap) and destroys them (DestroyCollection).
//     All state lives in the Store, several stores can be open in one
//     process.
//
//   - RetCode: numeric outcome codes derived from the error taxonomy with
//     Code(err). The CLI uses them as exit codes.
//
// Versioning operations (branches, versions, merge, prune) are reached
// through Manager() or directly on a versioned collection handle.
package store
