package vs

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/vsdb/lib/alloc"
	"github.com/ValentinKolb/vsdb/lib/common"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/keys"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultBranch is the branch every fresh store starts with
const DefaultBranch = "main"

var log = logger.GetLogger("vs")

// VersionID is the internal id of a version
type VersionID uint64

// BranchID is the internal id of a branch sequence
type BranchID uint64

type version struct {
	id   VersionID
	name string
	// number of live branches whose sequence contains the version
	refs int
	// whether the change set is non-empty
	changed atomic.Bool
}

type branch struct {
	id   BranchID
	name string
	seq  []VersionID
}

// Manager owns the branch and version metadata of one store.
type Manager struct {
	engine db.Engine
	// ids of versions and branches, only used under the write lock
	arena *alloc.Arena

	mu            sync.RWMutex
	branches      map[string]*branch
	versions      map[VersionID]*version
	dangling      map[BranchID]int // removed branches whose sequence is still on disk
	defaultBranch string

	names    *xsync.MapOf[string, *version]
	lineages *xsync.MapOf[string, *Lineage]

	poison  atomic.Pointer[error]
	readers atomic.Int64
	guard   atomic.Pointer[Exclusive]
}

// Open loads the manager state stored in engine. A store without any
// branch is initialized with DefaultBranch.
func Open(engine db.Engine, allocator *alloc.Allocator) (*Manager, error) {
	m := &Manager{
		engine:   engine,
		arena:    allocator.NewArena(),
		branches: make(map[string]*branch),
		versions: make(map[VersionID]*version),
		dangling: make(map[BranchID]int),
		names:    xsync.NewMapOf[string, *version](),
		lineages: xsync.NewMapOf[string, *Lineage](),
	}
	if err := m.load(); err != nil {
		return nil, err
	}

	if len(m.branches) == 0 {
		t := m.begin("init")
		br, err := t.newBranch(DefaultBranch, nil)
		if err != nil {
			return nil, err
		}
		t.setDefault(br.name)
		if err := t.commit(); err != nil {
			return nil, err
		}
		log.Infof("initialized version manager with branch %q", DefaultBranch)
	}

	log.Infof("version manager opened (%d branches, %d versions)", len(m.branches), len(m.versions))
	return m, nil
}

// --------------------------------------------------------------------------
// Loading
// --------------------------------------------------------------------------

// scan calls fn for every entry in [lower, upper)
func (m *Manager) scan(lower, upper []byte, fn func(k, v []byte) error) error {
	iter, err := m.engine.NewIterator(db.IterOptions{Lower: lower, Upper: upper})
	if err != nil {
		return common.EngineErr(err, "scan manager metadata")
	}
	for ; iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			_ = iter.Close()
			return err
		}
	}
	return common.EngineErr(iter.Close(), "scan manager metadata")
}

// hasAny reports whether [lower, upper) contains at least one entry
func (m *Manager) hasAny(lower, upper []byte) (bool, error) {
	iter, err := m.engine.NewIterator(db.IterOptions{Lower: lower, Upper: upper})
	if err != nil {
		return false, common.EngineErr(err, "probe range")
	}
	found := iter.Valid()
	return found, common.EngineErr(iter.Close(), "probe range")
}

func (m *Manager) load() error {
	tagLen := keys.PrefixSize + 1
	corrupt := func(format string, args ...interface{}) error {
		return m.poisonWith(common.Errorf(common.ErrInconsistent, format, args...))
	}

	// versions
	lower, upper := tagRange(tagVersionID)
	err := m.scan(lower, upper, func(k, v []byte) error {
		id, _, err := keys.DecodeUint64(k[tagLen:])
		if err != nil {
			return corrupt("version id key %x", k)
		}
		ver := &version{id: VersionID(id), name: string(v)}
		m.versions[ver.id] = ver
		m.names.Store(ver.name, ver)
		return nil
	})
	if err != nil {
		return err
	}

	// name index must match the id index
	named := 0
	lower, upper = tagRange(tagVersionName)
	err = m.scan(lower, upper, func(k, v []byte) error {
		id, _, err := keys.DecodeUint64(v)
		if err != nil {
			return corrupt("version name entry %x", k)
		}
		ver, ok := m.names.Load(string(k[tagLen:]))
		if !ok || ver.id != VersionID(id) {
			return corrupt("version name %q points to unknown version %d", k[tagLen:], id)
		}
		named++
		return nil
	})
	if err != nil {
		return err
	}
	if named != len(m.versions) {
		return corrupt("%d version names for %d versions", named, len(m.versions))
	}

	// branches
	byID := make(map[BranchID]*branch)
	lower, upper = tagRange(tagBranchName)
	err = m.scan(lower, upper, func(k, v []byte) error {
		id, _, err := keys.DecodeUint64(v)
		if err != nil {
			return corrupt("branch entry %x", k)
		}
		br := &branch{id: BranchID(id), name: string(k[tagLen:])}
		m.branches[br.name] = br
		byID[br.id] = br
		return nil
	})
	if err != nil {
		return err
	}

	// sequences, positions are stored in order
	lower, upper = tagRange(tagSequence)
	err = m.scan(lower, upper, func(k, v []byte) error {
		id, rest, err := keys.DecodeUint64(k[tagLen:])
		if err != nil {
			return corrupt("sequence key %x", k)
		}
		pos, _, err := keys.DecodeUint64(rest)
		if err != nil {
			return corrupt("sequence key %x", k)
		}
		vid, _, err := keys.DecodeUint64(v)
		if err != nil {
			return corrupt("sequence value %x", v)
		}
		br, live := byID[BranchID(id)]
		if !live {
			m.dangling[BranchID(id)]++
			return nil
		}
		if int(pos) != len(br.seq) {
			return corrupt("branch %q has a gap at position %d", br.name, pos)
		}
		ver, ok := m.versions[VersionID(vid)]
		if !ok {
			return corrupt("branch %q references unknown version %d", br.name, vid)
		}
		br.seq = append(br.seq, ver.id)
		ver.refs++
		return nil
	})
	if err != nil {
		return err
	}

	// change-set flags
	for _, ver := range m.versions {
		lower, upper := changeSetRange(ver.id)
		changed, err := m.hasAny(lower, upper)
		if err != nil {
			return err
		}
		ver.changed.Store(changed)
	}

	raw, found, err := m.engine.Get(defaultKey())
	if err != nil {
		return common.EngineErr(err, "load default branch")
	}
	if found {
		m.defaultBranch = string(raw)
		if _, ok := m.branches[m.defaultBranch]; !ok {
			return corrupt("default branch %q does not exist", m.defaultBranch)
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Poisoning
// --------------------------------------------------------------------------

// poisonWith marks the manager unusable for mutations and returns err
func (m *Manager) poisonWith(err error) error {
	if m.poison.CompareAndSwap(nil, &err) {
		log.Errorf("version manager poisoned: %v", err)
	}
	return err
}

// checkPoison returns the poisoning error, if any
func (m *Manager) checkPoison() error {
	if p := m.poison.Load(); p != nil {
		return *p
	}
	return nil
}

// --------------------------------------------------------------------------
// Helpers (callers hold the lock)
// --------------------------------------------------------------------------

func validName(kind, name string) error {
	if name == "" {
		return common.Errorf(common.ErrInvalidOperation, "empty %s name", kind)
	}
	return nil
}

func (m *Manager) branch(name string) (*branch, error) {
	if name == "" {
		name = m.defaultBranch
	}
	br, ok := m.branches[name]
	if !ok {
		return nil, common.Errorf(common.ErrNotFound, "branch %q", name)
	}
	return br, nil
}

func (m *Manager) versionByName(name string) (*version, error) {
	ver, ok := m.names.Load(name)
	if !ok {
		return nil, common.Errorf(common.ErrNotFound, "version %q", name)
	}
	return ver, nil
}

func (m *Manager) nextID() (uint64, error) {
	p, err := m.arena.Alloc()
	return uint64(p), err
}

func autoVersionName() string {
	return "auto-" + uuid.NewString()
}

func indexOf(seq []VersionID, v VersionID) int {
	for i, id := range seq {
		if id == v {
			return i
		}
	}
	return -1
}

func contains(seq []VersionID, v VersionID) bool {
	return indexOf(seq, v) >= 0
}

func mutationCounter(op string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`vsdb_vs_mutations_total{op=%q}`, op))
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

// txn collects the engine ops and the in-memory changes of one mutation.
// Nothing in memory changes before the batch is committed.
type txn struct {
	m  *Manager
	op string
	b  db.Batch

	planned map[*branch][]VersionID
	order   []*branch
	added   []*branch
	removed map[*branch]bool
	created []*version
	purged  map[VersionID]*version
	renames map[*branch]string
	defName *string
	after   []func()
}

func (m *Manager) begin(op string) *txn {
	return &txn{
		m:       m,
		op:      op,
		planned: make(map[*branch][]VersionID),
		removed: make(map[*branch]bool),
		purged:  make(map[VersionID]*version),
		renames: make(map[*branch]string),
	}
}

// seq returns the planned sequence of br
func (t *txn) seq(br *branch) []VersionID {
	if s, ok := t.planned[br]; ok {
		return s
	}
	return br.seq
}

// setSeq plans a new sequence for br
func (t *txn) setSeq(br *branch, seq []VersionID) {
	if _, ok := t.planned[br]; !ok {
		t.order = append(t.order, br)
	}
	t.planned[br] = seq
}

// newBranch plans a new branch with the given sequence
func (t *txn) newBranch(name string, seq []VersionID) (*branch, error) {
	id, err := t.m.nextID()
	if err != nil {
		return nil, err
	}
	br := &branch{id: BranchID(id), name: name}
	t.added = append(t.added, br)
	t.b.Insert(branchNameKey(name), u64(id))
	t.setSeq(br, append([]VersionID(nil), seq...))
	return br, nil
}

// removeBranch plans the removal of br. Its sequence stays on disk until clean-up.
func (t *txn) removeBranch(br *branch) {
	t.removed[br] = true
	t.b.Remove(branchNameKey(br.name))
}

// newVersion plans a new version and returns it
func (t *txn) newVersion(name string) (*version, error) {
	id, err := t.m.nextID()
	if err != nil {
		return nil, err
	}
	ver := &version{id: VersionID(id), name: name}
	t.created = append(t.created, ver)
	t.b.Insert(versionNameKey(name), u64(id))
	t.b.Insert(versionIDKey(ver.id), []byte(name))
	return ver, nil
}

// purgeVersion plans the deletion of a version's data, change set and names
func (t *txn) purgeVersion(ver *version) error {
	lower, upper := changeSetRange(ver.id)
	err := t.m.scan(lower, upper, func(k, _ []byte) error {
		_, p, key, err := decodeChangeSetKey(k)
		if err != nil {
			return t.m.poisonWith(common.Wrap(common.ErrInconsistent, err, "change set of %q", ver.name))
		}
		t.b.Remove(dataKey(p, key, ver.id))
		t.b.Remove(append([]byte(nil), k...))
		return nil
	})
	if err != nil {
		return err
	}
	t.b.Remove(versionNameKey(ver.name))
	t.b.Remove(versionIDKey(ver.id))
	t.purged[ver.id] = ver
	return nil
}

func (t *txn) setDefault(name string) {
	t.defName = &name
	t.b.Insert(defaultKey(), []byte(name))
}

func (t *txn) then(fn func()) {
	t.after = append(t.after, fn)
}

// writeSeq adds the ops that turn the persisted sequence old into seq
func writeSeq(b *db.Batch, id BranchID, old, seq []VersionID) {
	i := 0
	for i < len(old) && i < len(seq) && old[i] == seq[i] {
		i++
	}
	for j := i; j < len(seq); j++ {
		b.Insert(seqKey(id, j), u64(uint64(seq[j])))
	}
	for j := len(seq); j < len(old); j++ {
		b.Remove(seqKey(id, j))
	}
}

// commit writes the batch and applies the planned changes to memory
func (t *txn) commit() error {
	m := t.m
	for _, br := range t.order {
		if t.removed[br] {
			continue
		}
		writeSeq(&t.b, br.id, br.seq, t.planned[br])
	}

	if t.b.Len() > 0 {
		if err := m.engine.WriteBatch(t.b.Ops); err != nil {
			return common.EngineErr(err, "%s: commit %d ops", t.op, t.b.Len())
		}
	}

	for _, ver := range t.created {
		m.versions[ver.id] = ver
		m.names.Store(ver.name, ver)
	}
	for br := range t.removed {
		for _, v := range br.seq {
			m.versions[v].refs--
		}
		if m.branches[br.name] == br {
			delete(m.branches, br.name)
		}
		m.dangling[br.id] = len(br.seq)
	}
	for _, br := range t.order {
		if t.removed[br] {
			continue
		}
		for _, v := range br.seq {
			m.versions[v].refs--
		}
		br.seq = t.planned[br]
		for _, v := range br.seq {
			m.versions[v].refs++
		}
	}
	for br, name := range t.renames {
		br.name = name
	}
	if len(t.renames) > 0 {
		for br := range t.renames {
			m.branches[br.name] = br
		}
	}
	for _, br := range t.added {
		m.branches[br.name] = br
	}
	for id, ver := range t.purged {
		if ver.refs != 0 {
			return m.poisonWith(common.Errorf(common.ErrInconsistent,
				"purged version %q is still referenced %d times", ver.name, ver.refs))
		}
		delete(m.versions, id)
		m.names.Delete(ver.name)
	}
	if t.defName != nil {
		m.defaultBranch = *t.defName
	}
	for _, fn := range t.after {
		fn()
	}

	m.lineages.Clear()
	mutationCounter(t.op).Inc()
	return nil
}

// refreshChanged recomputes the change-set flag of ver from the index
func (m *Manager) refreshChanged(ver *version) error {
	lower, upper := changeSetRange(ver.id)
	changed, err := m.hasAny(lower, upper)
	if err != nil {
		return err
	}
	ver.changed.Store(changed)
	return nil
}

// mustExist is used for ids found in sequences, a miss means corrupted memory
func (m *Manager) mustExist(id VersionID) (*version, error) {
	ver, ok := m.versions[id]
	if !ok {
		return nil, m.poisonWith(common.Errorf(common.ErrInconsistent, "sequence references unknown version %d", id))
	}
	return ver, nil
}
