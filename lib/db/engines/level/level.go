package level

import (
	"bytes"
	"sync/atomic"

	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/db/util"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	lutil "github.com/syndtr/goleveldb/leveldb/util"
)

// features supported by this engine
const features = db.FeatureGet | db.FeatureInsert | db.FeatureRemove |
	db.FeatureIterate | db.FeatureReverseIter | db.FeatureBatch |
	db.FeaturePersist | db.FeatureDurable | db.FeatureSizeEstimate

var (
	counters = util.NewOpCounters(string(db.ImplLevel))
	log      = logger.GetLogger("engine")
	syncOpts = &opt.WriteOptions{Sync: true}

	// upper bound for size estimates, sorts after every prefixed key
	sizeLimit = bytes.Repeat([]byte{0xff}, 16)
)

// Config holds the options of the leveldb engine
type Config struct {
	// Dir is the data directory (ignored if InMemory is set)
	Dir string
	// InMemory opens the database on an in-memory storage
	InMemory bool
	// SyncWrites fsyncs the journal on every write, not only on Persist
	SyncWrites bool
	// BlockCacheMB is the size of the block cache, 0 uses goleveldb's default
	BlockCacheMB int
}

type engineImpl struct {
	ldb       *leveldb.DB
	cfg       Config
	writeOpts *opt.WriteOptions
	closed    atomic.Bool
}

// NewLevelEngine opens (or creates) a leveldb database.
func NewLevelEngine(cfg Config) (db.Engine, error) {
	o := &opt.Options{}
	if cfg.BlockCacheMB > 0 {
		o.BlockCacheCapacity = cfg.BlockCacheMB * opt.MiB
	}

	var (
		ldb *leveldb.DB
		err error
	)
	if cfg.InMemory {
		ldb, err = leveldb.Open(storage.NewMemStorage(), o)
	} else {
		ldb, err = leveldb.OpenFile(cfg.Dir, o)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb at %q", cfg.Dir)
	}

	writeOpts := &opt.WriteOptions{Sync: cfg.SyncWrites}
	log.Infof("leveldb engine opened (dir=%q, in-memory=%t, sync=%t)", cfg.Dir, cfg.InMemory, cfg.SyncWrites)

	return &engineImpl{
		ldb:       ldb,
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
	return counters.Err(e.ldb.Put(key, value, e.writeOpts))
}

func (e *engineImpl) Remove(key []byte) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	counters.Remove.Inc()
	return counters.Err(e.ldb.Delete(key, e.writeOpts))
}

func (e *engineImpl) WriteBatch(ops []db.Op) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	counters.Batch.Inc()
	counters.BatchOp.Add(len(ops))

	b := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Kind {
		case db.OpInsert:
			b.Put(op.Key, op.Value)
		case db.OpRemove:
			b.Delete(op.Key)
		default:
			return errors.Newf("unknown batch op %d", op.Kind)
		}
	}
	return counters.Err(e.ldb.Write(b, e.writeOpts))
}

func (e *engineImpl) Persist(metaKey, value []byte) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	counters.Persist.Inc()
	return counters.Err(e.ldb.Put(metaKey, value, syncOpts))
}

// --------------------------------------------------------------------------
// Query Operations (docu see db.Engine)
// --------------------------------------------------------------------------

func (e *engineImpl) Get(key []byte) ([]byte, bool, error) {
	if e.closed.Load() {
		return nil, false, db.ErrClosed
	}
	counters.Get.Inc()

	// goleveldb returns its own copy of the value
	value, err := e.ldb.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, counters.Err(err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (e *engineImpl) LoadMeta(metaKey []byte) ([]byte, bool, error) {
	return e.Get(metaKey)
}

func (e *engineImpl) NewIterator(opts db.IterOptions) (db.Iterator, error) {
	if e.closed.Load() {
		return nil, db.ErrClosed
	}
	counters.Iter.Inc()

	iter := e.ldb.NewIterator(&lutil.Range{Start: opts.Lower, Limit: opts.Upper}, nil)
	var valid bool
	if opts.Reverse {
		valid = iter.Last()
	} else {
		valid = iter.First()
	}
	return &levelIterator{iter: iter, rev: opts.Reverse, valid: valid}, nil
}

// --------------------------------------------------------------------------
// Maintenance & Feature Support (docu see db.Engine)
// --------------------------------------------------------------------------

// Flush is a no-op: goleveldb has no memtable flush api, durability is
// reached through synced writes (Persist).
func (e *engineImpl) Flush() error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	return nil
}

func (e *engineImpl) SupportsFeature(feature db.Feature) bool {
	return features&feature == feature
}

func (e *engineImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:            db.ImplLevel,
		SupportedFeatures: db.FeatureList(features),
	}
	if e.closed.Load() {
		return info
	}
	if sizes, err := e.ldb.SizeOf([]lutil.Range{{Limit: sizeLimit}}); err == nil {
		info.SizeBytes = int(sizes.Sum())
	}
	var stats leveldb.DBStats
	if err := e.ldb.Stats(&stats); err == nil {
		info.Metadata = map[string]interface{}{
			"dir":          e.cfg.Dir,
			"in_memory":    e.cfg.InMemory,
			"sync_writes":  e.cfg.SyncWrites,
			"alive_iters":  stats.AliveIterators,
			"alive_snaps":  stats.AliveSnapshots,
			"level_tables": stats.LevelTablesCounts,
		}
	}
	return info
}

func (e *engineImpl) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	log.Infof("closing leveldb engine (dir=%q)", e.cfg.Dir)
	return e.ldb.Close()
}

// --------------------------------------------------------------------------
// Iterator
// --------------------------------------------------------------------------

type levelIterator struct {
	iter  iterator.Iterator
	rev   bool
	valid bool
}

func (it *levelIterator) Valid() bool {
	return it.valid
}

func (it *levelIterator) Next() {
	if it.rev {
		it.valid = it.iter.Prev()
	} else {
		it.valid = it.iter.Next()
	}
}

func (it *levelIterator) Key() []byte {
	return it.iter.Key()
}

func (it *levelIterator) Value() []byte {
	return it.iter.Value()
}

func (it *levelIterator) Error() error {
	return it.iter.Error()
}

func (it *levelIterator) Close() error {
	if it.iter == nil {
		return nil
	}
	err := it.iter.Error()
	it.iter.Release()
	it.iter = nil
	return err
}
