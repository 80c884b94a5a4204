// Package level implements db.Engine on top of github.com/syndtr/goleveldb,
// a pure-Go port of LevelDB.
//
// It is the pure-Go LSM alternative to the pebble backend. It needs no cgo
// and its on-disk format is the LevelDB one. Persist commits with
// opt.WriteOptions{Sync: true}. Batches map onto leveldb.Batch, which
// goleveldb applies atomically through its journal.
//
// Config.InMemory opens the database on storage.NewMemStorage().
package level
