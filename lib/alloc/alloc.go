package alloc

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/vsdb/lib/common"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/keys"
	"github.com/VictoriaMetrics/metrics"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
)

// DefaultBatchSize is the number of ids an arena reserves at once
const DefaultBatchSize = 8192

var (
	log = logger.GetLogger("alloc")

	batchesTotal       = metrics.NewCounter("vsdb_alloc_batches_total")
	ceilingRaisesTotal = metrics.NewCounter("vsdb_alloc_ceiling_raises_total")
)

// Options configures an Allocator
type Options struct {
	// BatchSize is the number of ids reserved per arena refill (default DefaultBatchSize)
	BatchSize uint64
}

// Allocator issues collection prefixes. It is safe for concurrent use.
type Allocator struct {
	engine db.Engine
	batch  uint64

	// next is the first id not yet reserved by any arena
	next atomic.Uint64
	// ceiling is the persisted upper bound, every reserved id is below it
	ceiling atomic.Uint64
	// mu serializes ceiling raises
	mu sync.Mutex

	poisoned atomic.Bool
	pool     sync.Pool

	maxKeyLen atomic.Uint64
	keyLenMu  sync.Mutex
}

// New opens the allocator stored in engine. A missing ceiling starts a
// fresh store at keys.ReservedPrefixes.
func New(engine db.Engine, opts Options) (*Allocator, error) {
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	a := &Allocator{engine: engine, batch: opts.BatchSize}
	a.pool.New = func() any { return a.NewArena() }

	ceiling, err := loadUint64(engine, keys.MetaCeilingKey)
	switch {
	case errors.Is(err, common.ErrNotFound):
		ceiling = uint64(keys.ReservedPrefixes)
		if err := engine.Persist(keys.MetaCeilingKey, binary.BigEndian.AppendUint64(nil, ceiling)); err != nil {
			return nil, common.EngineErr(err, "persist initial prefix ceiling")
		}
		log.Infof("initialized prefix ceiling at %d", ceiling)
	case err != nil:
		return nil, err
	case ceiling < uint64(keys.ReservedPrefixes):
		return nil, common.Errorf(common.ErrInconsistent, "prefix ceiling %d is inside the reserved range", ceiling)
	}
	a.next.Store(ceiling)
	a.ceiling.Store(ceiling)

	maxLen, err := loadUint64(engine, keys.MetaMaxKeyLenKey)
	switch {
	case errors.Is(err, common.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		a.maxKeyLen.Store(maxLen)
	}

	log.Debugf("allocator opened (ceiling=%d, batch=%d)", ceiling, a.batch)
	return a, nil
}

// loadUint64 reads a big-endian meta value
func loadUint64(engine db.Engine, key []byte) (uint64, error) {
	raw, found, err := engine.LoadMeta(key)
	if err != nil {
		return 0, common.EngineErr(err, "load meta %q", key)
	}
	if !found {
		return 0, common.Errorf(common.ErrNotFound, "meta %q", key)
	}
	if len(raw) != 8 {
		return 0, common.Errorf(common.ErrInconsistent, "meta %q has %d bytes, want 8", key, len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// NewArena returns an empty arena. The first Alloc reserves its batch.
func (a *Allocator) NewArena() *Arena {
	return &Arena{alloc: a}
}

// Alloc returns a fresh prefix using a pooled arena.
func (a *Allocator) Alloc() (keys.Prefix, error) {
	ar := a.pool.Get().(*Arena)
	p, err := ar.Alloc()
	a.pool.Put(ar)
	return p, err
}

// Ceiling returns the persisted ceiling.
func (a *Allocator) Ceiling() uint64 {
	return a.ceiling.Load()
}

// BatchSize returns the number of ids reserved per batch.
func (a *Allocator) BatchSize() uint64 {
	return a.batch
}

// reserve claims [start, start+batch) and makes sure the persisted ceiling covers it
func (a *Allocator) reserve() (start, end uint64, err error) {
	if a.poisoned.Load() {
		return 0, 0, common.Errorf(common.ErrInconsistent, "prefix space exhausted")
	}

	end = a.next.Add(a.batch)
	start = end - a.batch
	if end < start || end > math.MaxUint64-a.batch {
		a.poisoned.Store(true)
		log.Errorf("prefix space exhausted at %d", start)
		return 0, 0, common.Errorf(common.ErrInconsistent, "prefix space exhausted at %d", start)
	}
	batchesTotal.Inc()

	if end <= a.ceiling.Load() {
		return start, end, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if end <= a.ceiling.Load() {
		return start, end, nil
	}

	// one batch of headroom so the next reservation usually stays on the fast path
	newCeiling := end + a.batch
	if err := a.engine.Persist(keys.MetaCeilingKey, binary.BigEndian.AppendUint64(nil, newCeiling)); err != nil {
		return 0, 0, common.EngineErr(err, "raise prefix ceiling to %d", newCeiling)
	}
	a.ceiling.Store(newCeiling)
	ceilingRaisesTotal.Inc()
	log.Debugf("raised prefix ceiling to %d", newCeiling)
	return start, end, nil
}

// --------------------------------------------------------------------------
// Arena
// --------------------------------------------------------------------------

// Arena serves ids from one reserved batch without synchronization.
// It must not be used by more than one goroutine at a time.
type Arena struct {
	alloc *Allocator
	next  uint64
	end   uint64
}

// Alloc returns the next id of the arena, reserving a new batch if needed.
// On error the arena is left unchanged.
func (ar *Arena) Alloc() (keys.Prefix, error) {
	if ar.next == ar.end {
		start, end, err := ar.alloc.reserve()
		if err != nil {
			return 0, err
		}
		ar.next, ar.end = start, end
	}
	p := ar.next
	ar.next++
	return keys.Prefix(p), nil
}

// Remaining returns the number of ids left in the current batch.
func (ar *Arena) Remaining() uint64 {
	return ar.end - ar.next
}

// --------------------------------------------------------------------------
// Key length hint
// --------------------------------------------------------------------------

// MaxKeyLen returns the largest caller key length observed so far.
func (a *Allocator) MaxKeyLen() int {
	return int(a.maxKeyLen.Load())
}

// ObserveKeyLen records a caller key length and persists it when it grows.
func (a *Allocator) ObserveKeyLen(n int) error {
	if uint64(n) <= a.maxKeyLen.Load() {
		return nil
	}
	a.keyLenMu.Lock()
	defer a.keyLenMu.Unlock()
	if uint64(n) <= a.maxKeyLen.Load() {
		return nil
	}
	if err := a.engine.Persist(keys.MetaMaxKeyLenKey, binary.BigEndian.AppendUint64(nil, uint64(n))); err != nil {
		return common.EngineErr(err, "persist key length hint %d", n)
	}
	a.maxKeyLen.Store(uint64(n))
	return nil
}
