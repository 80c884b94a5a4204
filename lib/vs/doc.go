// Package vs implements the branch/version manager of the versioned store.
//
// A Manager keeps the complete version history metadata of one store:
//
//   - branches: named, mutable sequences of versions. Every branch owns a
//     full copy of its sequence, so resolving history never walks an
//     ancestor tree.
//   - versions: globally unique, named units of change. A version is only
//     ever appended to a sequence, sequences are never reordered.
//   - change sets: for every version the (collection prefix, key) pairs
//     written in it, kept in a store wide index so that prune, revert and
//     clean-up find the data without scanning every collection.
//
// All metadata lives under keys.ManagerPrefix and is loaded into memory on
// Open. Every mutation is persisted with exactly one atomic engine batch
// before the in-memory state changes, so a failed write leaves both
// untouched.
//
// Writes only go to a version that is referenced by exactly one branch.
// Forking a branch opens fresh, automatically named versions ("auto-<uuid>")
// on both sides and a write to a branch whose tail is shared opens one
// lazily. This keeps branches isolated without copying data.
//
// Concurrency: metadata mutations are serialized by a sync.RWMutex. The
// data path (Read, Write, Snapshot) only takes the read lock. BranchSwap,
// VersionRevertGlobally and VersionRebase require an *Exclusive guard that
// holds the write lock and can only be taken while no iterator is open.
package vs
