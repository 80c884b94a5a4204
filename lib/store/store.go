package store

import (
	"sync/atomic"

	"github.com/ValentinKolb/vsdb/lib/alloc"
	"github.com/ValentinKolb/vsdb/lib/common"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/db/engines/level"
	"github.com/ValentinKolb/vsdb/lib/db/engines/memory"
	"github.com/ValentinKolb/vsdb/lib/db/engines/pebble"
	"github.com/ValentinKolb/vsdb/lib/keys"
	"github.com/ValentinKolb/vsdb/lib/mapx"
	"github.com/ValentinKolb/vsdb/lib/vs"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("store")

// collection is an open collection handle, exactly one field is set
type collection struct {
	raw       *mapx.Raw
	versioned *mapx.Versioned
}

// Store owns one engine with its allocator and version manager. Several
// stores can be open in one process, each on its own directory.
type Store struct {
	cfg    Config
	engine db.Engine
	alloc  *alloc.Allocator
	mgr    *vs.Manager

	collections *xsync.MapOf[keys.Prefix, *collection]
	closed      atomic.Bool
}

// Open creates or reopens the store described by cfg.
func Open(cfg Config) (*Store, error) {
	if cfg.LogLevel != "" {
		if err := common.InitLoggers(cfg.LogLevel); err != nil {
			return nil, err
		}
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return nil, err
	}

	a, err := alloc.New(engine, alloc.Options{BatchSize: cfg.BatchSize})
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	mgr, err := vs.Open(engine, a)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	log.Infof("opened %s store (dir=%q, in-memory=%t)", cfg.Engine, cfg.DataDir, cfg.InMemory)
	return &Store{
		cfg:         cfg,
		engine:      engine,
		alloc:       a,
		mgr:         mgr,
		collections: xsync.NewMapOf[keys.Prefix, *collection](),
	}, nil
}

func openEngine(cfg Config) (db.Engine, error) {
	if cfg.Engine != db.ImplMemory && !cfg.InMemory && cfg.DataDir == "" {
		return nil, common.Errorf(common.ErrInvalidOperation, "%s engine needs a data directory", cfg.Engine)
	}

	var (
		engine db.Engine
		err    error
	)
	switch cfg.Engine {
	case db.ImplPebble, "":
		engine, err = pebble.NewPebbleEngine(pebble.Config{
			Dir:         cfg.DataDir,
			InMemory:    cfg.InMemory,
			SyncWrites:  cfg.SyncWrites,
			CacheSizeMB: int64(cfg.CacheMB),
		})
	case db.ImplLevel:
		engine, err = level.NewLevelEngine(level.Config{
			Dir:          cfg.DataDir,
			InMemory:     cfg.InMemory,
			SyncWrites:   cfg.SyncWrites,
			BlockCacheMB: cfg.CacheMB,
		})
	case db.ImplMemory:
		engine = memory.NewMemoryEngine()
	default:
		return nil, common.Errorf(common.ErrInvalidOperation, "unknown engine %q", cfg.Engine)
	}
	if err != nil {
		return nil, common.EngineErr(err, "open %s engine", cfg.Engine)
	}
	return engine, nil
}

// --------------------------------------------------------------------------
// Collections
// --------------------------------------------------------------------------

// NewMap allocates a fresh basic collection.
func (s *Store) NewMap() (*mapx.Raw, error) {
	p, err := s.alloc.Alloc()
	if err != nil {
		return nil, err
	}
	return s.OpenMap(p)
}

// NewVersionedMap allocates a fresh versioned collection.
func (s *Store) NewVersionedMap() (*mapx.Versioned, error) {
	p, err := s.alloc.Alloc()
	if err != nil {
		return nil, err
	}
	return s.OpenVersionedMap(p)
}

// OpenMap reattaches the basic collection stored under p.
func (s *Store) OpenMap(p keys.Prefix) (*mapx.Raw, error) {
	c, err := s.open(p, func() *collection {
		return &collection{raw: mapx.NewRaw(s.engine, p, s.alloc)}
	})
	if err != nil {
		return nil, err
	}
	if c.raw == nil {
		return nil, common.Errorf(common.ErrInvalidOperation, "collection %d is open as a versioned map", p)
	}
	return c.raw, nil
}

// OpenVersionedMap reattaches the versioned collection stored under p.
func (s *Store) OpenVersionedMap(p keys.Prefix) (*mapx.Versioned, error) {
	c, err := s.open(p, func() *collection {
		return &collection{versioned: mapx.NewVersioned(s.engine, s.mgr, p, s.alloc)}
	})
	if err != nil {
		return nil, err
	}
	if c.versioned == nil {
		return nil, common.Errorf(common.ErrInvalidOperation, "collection %d is open as a basic map", p)
	}
	return c.versioned, nil
}

func (s *Store) open(p keys.Prefix, create func() *collection) (*collection, error) {
	if s.closed.Load() {
		return nil, db.ErrClosed
	}
	if p < keys.ReservedPrefixes || uint64(p) >= s.alloc.Ceiling() {
		return nil, common.Errorf(common.ErrInvalidOperation, "prefix %d was never allocated", p)
	}
	c, _ := s.collections.LoadOrCompute(p, create)
	return c, nil
}

// DestroyCollection deletes every entry stored under p, basic and
// versioned, including the change-set index entries.
func (s *Store) DestroyCollection(p keys.Prefix) error {
	if s.closed.Load() {
		return db.ErrClosed
	}
	if p < keys.ReservedPrefixes {
		return common.Errorf(common.ErrInvalidOperation, "prefix %d is reserved", p)
	}
	if err := mapx.NewRaw(s.engine, p, nil).Clear(); err != nil {
		return err
	}
	if err := s.mgr.DropCollection(p); err != nil {
		return err
	}
	s.collections.Delete(p)
	log.Infof("destroyed collection %d", p)
	return nil
}

// Collections returns the number of collection handles opened through the store.
func (s *Store) Collections() int {
	return s.collections.Size()
}

// --------------------------------------------------------------------------
// Versioning & maintenance
// --------------------------------------------------------------------------

// NewArena returns a private allocator arena.
func (s *Store) NewArena() *alloc.Arena {
	return s.alloc.NewArena()
}

// Exclusive acquires the guard required by BranchSwap,
// VersionRevertGlobally and VersionRebase.
func (s *Store) Exclusive() (*vs.Exclusive, error) {
	return s.mgr.Exclusive()
}

// Prune compacts the shared history keeping reserved versions unfolded.
func (s *Store) Prune(reserved int) error {
	return s.mgr.Prune(vs.PruneOptions{Reserved: reserved})
}

// Manager returns the version manager.
func (s *Store) Manager() *vs.Manager {
	return s.mgr
}

// Engine returns the underlying engine.
func (s *Store) Engine() db.Engine {
	return s.engine
}

// Allocator returns the prefix allocator.
func (s *Store) Allocator() *alloc.Allocator {
	return s.alloc
}

// Config returns the configuration the store was opened with.
func (s *Store) Config() Config {
	return s.cfg
}

// Info summarizes the store
type Info struct {
	Engine      db.DatabaseInfo `json:"engine"`
	Versions    vs.Stats        `json:"versions"`
	Ceiling     uint64          `json:"prefix_ceiling"`
	MaxKeyLen   int             `json:"max_key_len"`
	Collections int             `json:"open_collections"`
}

// Info returns engine, manager and allocator statistics.
func (s *Store) Info() Info {
	return Info{
		Engine:      s.engine.GetInfo(),
		Versions:    s.mgr.Stats(),
		Ceiling:     s.alloc.Ceiling(),
		MaxKeyLen:   s.alloc.MaxKeyLen(),
		Collections: s.collections.Size(),
	}
}

// Flush forces buffered writes to stable storage.
func (s *Store) Flush() error {
	if !s.engine.SupportsFeature(db.FeatureFlush) {
		return errors.Wrapf(ErrUnsupported, "%s engine can not flush", s.cfg.Engine)
	}
	return common.EngineErr(s.engine.Flush(), "flush")
}

// Close closes the engine. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	log.Infof("closing %s store", s.cfg.Engine)
	return s.engine.Close()
}
