// Package memory implements db.Engine on top of an in-memory
// github.com/google/btree.
//
// The engine keeps every key in one ordered B-tree guarded by a
// sync.RWMutex. It is the backend of choice for tests and for ephemeral
// stores: it starts instantly, needs no directory and is fully
// deterministic. It does not advertise db.FeatureDurable, so data is lost
// when the engine is closed.
//
// Iterators work on a copy-on-write clone of the tree taken when the
// iterator is created, so a scan sees a stable snapshot even while writers
// keep going. The clone is cheap: nodes are only copied once either side
// modifies them. Entries are pulled from the snapshot in small chunks, so
// a scan that stops early only pays for what it read.
//
// The engine records the size of every stored value in a
// util.SizeHistogram which is reported through GetInfo.
package memory
