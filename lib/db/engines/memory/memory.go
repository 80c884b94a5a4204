package memory

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/db/util"
	"github.com/google/btree"
)

const (
	// degree of the b-tree
	degree = 32
	// number of entries an iterator pulls from the snapshot at once
	iterChunk = 128
)

// features supported by this engine
const features = db.FeatureGet | db.FeatureInsert | db.FeatureRemove |
	db.FeatureIterate | db.FeatureReverseIter | db.FeatureBatch |
	db.FeaturePersist | db.FeatureFlush | db.FeatureSizeEstimate

var counters = util.NewOpCounters(string(db.ImplMemory))

// item is one key-value pair stored in the tree
type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// engineImpl is the in-memory implementation of db.Engine
type engineImpl struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[item]
	sizes  *util.SizeHistogram
	closed atomic.Bool
}

// NewMemoryEngine creates a new empty in-memory engine.
func NewMemoryEngine() db.Engine {
	return &engineImpl{
		tree:  btree.NewG[item](degree, less),
		sizes: util.NewSizeHistogram(),
	}
}

// --------------------------------------------------------------------------
// Write Operations (docu see db.Engine)
// --------------------------------------------------------------------------

func (e *engineImpl) Insert(key, value []byte) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	counters.Insert.Inc()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.set(key, value)
	return nil
}

func (e *engineImpl) Remove(key []byte) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	counters.Remove.Inc()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.del(key)
	return nil
}

func (e *engineImpl) WriteBatch(ops []db.Op) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	counters.Batch.Inc()
	counters.BatchOp.Add(len(ops))

	// a single lock over the whole batch makes it atomic for readers
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case db.OpInsert:
			e.set(op.Key, op.Value)
		case db.OpRemove:
			e.del(op.Key)
		}
	}
	return nil
}

func (e *engineImpl) Persist(metaKey, value []byte) error {
	if e.closed.Load() {
		return db.ErrClosed
	}
	counters.Persist.Inc()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.set(metaKey, value)
	return nil
}

// set inserts a copy of key and value (caller holds the write lock)
func (e *engineImpl) set(key, value []byte) {
	it := item{
		key:   bytes.Clone(key),
		value: append(make([]byte, 0, len(value)), value...),
	}
	if old, replaced := e.tree.ReplaceOrInsert(it); replaced {
		e.sizes.RemoveSample(len(old.value))
	}
	e.sizes.AddSample(len(value))
}

// del removes key (caller holds the write lock)
func (e *engineImpl) del(key []byte) {
	if old, ok := e.tree.Delete(item{key: key}); ok {
		e.sizes.RemoveSample(len(old.value))
	}
}

// --------------------------------------------------------------------------
// Query Operations (docu see db.Engine)
// --------------------------------------------------------------------------

func (e *engineImpl) Get(key []byte) ([]byte, bool, error) {
	if e.closed.Load() {
		return nil, false, db.ErrClosed
	}
	counters.Get.Inc()

	e.mu.RLock()
	defer e.mu.RUnlock()
	it, ok := e.tree.Get(item{key: key})
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(it.value), true, nil
}

func (e *engineImpl) LoadMeta(metaKey []byte) ([]byte, bool, error) {
	return e.Get(metaKey)
}

func (e *engineImpl) NewIterator(opts db.IterOptions) (db.Iterator, error) {
	if e.closed.Load() {
		return nil, db.ErrClosed
	}
	counters.Iter.Inc()

	// Clone updates the copy-on-write context of the tree, so it needs the write lock
	e.mu.Lock()
	snapshot := e.tree.Clone()
	e.mu.Unlock()

	it := &iterator{
		tree:  snapshot,
		lower: bytes.Clone(opts.Lower),
		upper: bytes.Clone(opts.Upper),
		rev:   opts.Reverse,
	}
	it.fill()
	return it, nil
}

// --------------------------------------------------------------------------
// Maintenance & Feature Support (docu see db.Engine)
// --------------------------------------------------------------------------

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
	e.mu.RLock()
	keys := e.tree.Len()
	e.mu.RUnlock()

	snap := e.sizes.Snapshot()
	return db.DatabaseInfo{
		SizeBytes:         int(snap.Sum),
		DbType:            db.ImplMemory,
		SupportedFeatures: db.FeatureList(features),
		Metadata: map[string]interface{}{
			"keys":        keys,
			"value_sizes": snap,
		},
	}
}

func (e *engineImpl) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.mu.Lock()
	e.tree.Clear(false)
	e.mu.Unlock()
	e.sizes.Reset()
	return nil
}

// --------------------------------------------------------------------------
// Iterator
// --------------------------------------------------------------------------

// iterator pulls entries from a tree snapshot in chunks of iterChunk
type iterator struct {
	tree  *btree.BTreeG[item]
	lower []byte
	upper []byte
	rev   bool

	buf  []item
	pos  int
	last []byte // last key handed out, resume point for the next chunk
	done bool   // no more entries after buf
}

func (it *iterator) inRange(key []byte) bool {
	if it.lower != nil && bytes.Compare(key, it.lower) < 0 {
		return false
	}
	if it.upper != nil && bytes.Compare(key, it.upper) >= 0 {
		return false
	}
	return true
}

// fill loads the next chunk starting after it.last
func (it *iterator) fill() {
	it.buf = it.buf[:0]
	it.pos = 0
	if it.done || it.tree == nil {
		it.done = true
		return
	}

	collect := func(i item) bool {
		if it.last != nil && bytes.Equal(i.key, it.last) {
			return true
		}
		if !it.inRange(i.key) {
			// keys are ordered, once out of range we are done
			it.done = true
			return false
		}
		it.buf = append(it.buf, i)
		return len(it.buf) < iterChunk
	}

	if !it.rev {
		switch {
		case it.last != nil:
			it.tree.AscendGreaterOrEqual(item{key: it.last}, collect)
		case it.lower != nil:
			it.tree.AscendGreaterOrEqual(item{key: it.lower}, collect)
		default:
			it.tree.Ascend(collect)
		}
	} else {
		switch {
		case it.last != nil:
			it.tree.DescendLessOrEqual(item{key: it.last}, collect)
		case it.upper != nil:
			// skip keys >= upper, DescendLessOrEqual includes the pivot
			it.tree.DescendLessOrEqual(item{key: it.upper}, func(i item) bool {
				if bytes.Compare(i.key, it.upper) >= 0 {
					return true
				}
				return collect(i)
			})
		default:
			it.tree.Descend(collect)
		}
	}

	if len(it.buf) < iterChunk {
		it.done = true
	}
	if len(it.buf) > 0 {
		it.last = it.buf[len(it.buf)-1].key
	}
}

func (it *iterator) Valid() bool {
	return it.pos < len(it.buf)
}

func (it *iterator) Next() {
	if !it.Valid() {
		return
	}
	it.pos++
	if it.pos >= len(it.buf) && !it.done {
		it.fill()
	}
}

func (it *iterator) Key() []byte {
	return it.buf[it.pos].key
}

func (it *iterator) Value() []byte {
	return it.buf[it.pos].value
}

func (it *iterator) Error() error {
	return nil
}

func (it *iterator) Close() error {
	it.tree = nil
	it.buf = nil
	it.done = true
	return nil
}
