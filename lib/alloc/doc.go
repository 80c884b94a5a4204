// Package alloc hands out globally unique, crash consistent collection
// prefixes.
//
// The persisted ceiling (meta key keys.MetaCeilingKey) is the source of
// truth: every id below it may have been handed out before a crash, so a
// freshly opened Allocator starts counting at the ceiling.
//
// Ids are served from Arenas. An Arena owns a batch of Options.BatchSize
// consecutive ids and serves them from plain local counters. When a batch
// is used up the arena reserves the next one with a single atomic add on the
// allocator's global counter. Only when the end of that batch passes the
// persisted ceiling does the allocator take its mutex and raise the ceiling
// with a synced engine write. The batch is handed out after that write
// succeeded, never before.
//
// An Arena is not safe for concurrent use, it is meant to be owned by one
// worker. Allocator.Alloc borrows arenas from a sync.Pool for callers that
// do not want to manage arenas themselves.
//
// The allocator also keeps the store wide key length hint: the largest
// caller key observed so far, persisted below keys.MetaMaxKeyLenKey.
package alloc
