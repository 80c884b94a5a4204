// Package mapx provides the collections stored in one engine: each
// collection owns a key prefix handed out by the allocator.
//
// Collections:
//
//   - Raw: a plain ordered map. Keys live under prefix | 'b' | key.
//
//   - Versioned: an ordered map with branch and version history. Every
//     write goes to the open version of a branch, reads resolve the newest
//     entry of a key within the branch's version sequence (optionally
//     pinned at a version). An empty value is a tombstone, inserting an
//     empty value and removing a key are the same operation.
//
//   - Map[K, V]: a typed wrapper over either of the two, using a
//     codec.KeyCodec for keys and a codec.Codec for values.
//
// All handles are safe for concurrent use. Iterators over versioned
// collections count as open readers of the version manager until closed.
package mapx
