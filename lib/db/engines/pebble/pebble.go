package pebble

import (
	"bytes"
	"sync/atomic"

	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/db/util"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/lni/dragonboat/v4/logger"
)

// features supported by this engine
const features = db.FeatureGet | db.FeatureInsert | db.FeatureRemove |
	db.FeatureIterate | db.FeatureReverseIter | db.FeatureBatch |
	db.FeaturePersist | db.FeatureDurable | db.FeatureFlush | db.FeatureSizeEstimate

var (
	counters = util.NewOpCounters(string(db.ImplPebble))
	log      = logger.GetLogger("engine")
)

// Config holds the options of the pebble engine
type Config struct {
	// Dir is the data directory (ignored if InMemory is set)
	Dir string
	// InMemory opens the database on an in-memory file system
	InMemory bool
	// SyncWrites fsyncs the WAL on every write, not only on Persist
	SyncWrites bool
	// CacheSizeMB is the size of the block cache, 0 uses pebble's default
	CacheSizeMB int64
}

type engineImpl struct {
	pdb       *pebble.DB
	cfg       Config
	writeOpts *pebble.WriteOptions
	closed    atomic.Bool
}

// NewPebbleEngine opens (or creates) a pebble database.
func NewPebbleEngine(cfg Config) (db.Engine, error) {
	opts := &pebble.Options{
		Logger: pebbleLogger{},
	}
	if cfg.InMemory {
		opts.FS = vfs.NewMem()
	}
	if cfg.CacheSizeMB > 0 {
		cache := pebble.NewCache(cfg.CacheSizeMB << 20)
		defer cache.Unref()
		opts.Cache = cache
	}

	dir := cfg.Dir
	if cfg.InMemory {
		dir = ""
	}
	pdb, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble at %q", cfg.Dir)
	}

	writeOpts := pebble.NoSync
	if cfg.SyncWrites {
		writeOpts = pebble.Sync
	}
	log.Infof("pebble engine opened (dir=%q, in-memory=%t, sync=%t)", cfg.Dir, cfg.InMemory, cfg.SyncWrites)

	return &engineImpl{
		pdb:       pdb,
		cfg:       cfg,
		writeOpts: writeOpts,
	}, nil
}

// --------------------------------------------------------------------------
// Write Operations (docu see db.Engine)
// --------------------------------------------------------------------------

func (e *engineImpl) Insert(key, value []byte) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	counters.Insert.Inc()
	return counters.Err(e.pdb.Set(key, value, e.writeOpts))
}

func (e *engineImpl) Remove(key []byte) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	counters.Remove.Inc()
	return counters.Err(e.pdb.Delete(key, e.writeOpts))
}

func (e *engineImpl) WriteBatch(ops []db.Op) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	counters.Batch.Inc()
	counters.BatchOp.Add(len(ops))

	b := e.pdb.NewBatch()
	defer b.Close()

	for _, op := range ops {
		var err error
		switch op.Kind {
		case db.OpInsert:
			err = b.Set(op.Key, op.Value, nil)
		case db.OpRemove:
			err = b.Delete(op.Key, nil)
		default:
			err = errors.Newf("unknown batch op %d", op.Kind)
		}
		if err != nil {
			// nothing has been committed yet, dropping the batch discards all ops
			return counters.Err(err)
		}
	}
	return counters.Err(b.Commit(e.writeOpts))
}

func (e *engineImpl) Persist(metaKey, value []byte) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	counters.Persist.Inc()
	return counters.Err(e.pdb.Set(metaKey, value, pebble.Sync))
}

// --------------------------------------------------------------------------
// Query Operations (docu see db.Engine)
// --------------------------------------------------------------------------

func (e *engineImpl) Get(key []byte) ([]byte, bool, error) {
	if e.closed.Load() {
		return nil, false, db.ErrClosed
	}
	counters.Get.Inc()

	value, closer, err := e.pdb.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, counters.Err(err)
	}
	// the returned slice is only valid until closer.Close()
	res := bytes.Clone(value)
	if res == nil {
		res = []byte{}
	}
	return res, true, closer.Close()
}

func (e *engineImpl) LoadMeta(metaKey []byte) ([]byte, bool, error) {
	return e.Get(metaKey)
}

func (e *engineImpl) NewIterator(opts db.IterOptions) (db.Iterator, error) {
	if e.closed.Load() {
		return nil, db.ErrClosed
	}
	counters.Iter.Inc()

	iter, err := e.pdb.NewIter(&pebble.IterOptions{
		LowerBound: opts.Lower,
		UpperBound: opts.Upper,
	})
	if err != nil {
		return nil, counters.Err(err)
	}
	if opts.Reverse {
		iter.Last()
	} else {
		iter.First()
	}
	return &iterator{iter: iter, rev: opts.Reverse}, nil
}

// --------------------------------------------------------------------------
// Maintenance & Feature Support (docu see db.Engine)
// --------------------------------------------------------------------------

func (e *engineImpl) Flush() error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	return counters.Err(e.pdb.Flush())
}

func (e *engineImpl) SupportsFeature(feature db.Feature) bool {
	return features&feature == feature
}

func (e *engineImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:            db.ImplPebble,
		SupportedFeatures: db.FeatureList(features),
	}
	if e.closed.Load() {
		return info
	}
	m := e.pdb.Metrics()
	info.SizeBytes = int(m.DiskSpaceUsage())
	info.Metadata = map[string]interface{}{
		"dir":           e.cfg.Dir,
		"in_memory":     e.cfg.InMemory,
		"sync_writes":   e.cfg.SyncWrites,
		"memtable_size": m.MemTable.Size,
		"wal_files":     m.WAL.Files,
		"read_amp":      m.ReadAmp(),
	}
	return info
}

func (e *engineImpl) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	log.Infof("closing pebble engine (dir=%q)", e.cfg.Dir)
	return e.pdb.Close()
}

// --------------------------------------------------------------------------
// Iterator
// --------------------------------------------------------------------------

type iterator struct {
	iter *pebble.Iterator
	rev  bool
}

func (it *iterator) Valid() bool {
	return it.iter.Valid()
}

func (it *iterator) Next() {
	if it.rev {
		it.iter.Prev()
	} else {
		it.iter.Next()
	}
}

func (it *iterator) Key() []byte {
	return it.iter.Key()
}

func (it *iterator) Value() []byte {
	return it.iter.Value()
}

func (it *iterator) Error() error {
	return it.iter.Error()
}

func (it *iterator) Close() error {
	if it.iter == nil {
		return nil
	}
	err := it.iter.Close()
	it.iter = nil
	return err
}

// --------------------------------------------------------------------------
// Logger bridge
// --------------------------------------------------------------------------

// pebbleLogger routes pebble's log output into the "engine" logger
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

func (pebbleLogger) Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Panicf(format, args...)
}
