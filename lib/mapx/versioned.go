package mapx

import (
	"github.com/ValentinKolb/vsdb/lib/common"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/keys"
	"github.com/ValentinKolb/vsdb/lib/vs"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("mapx")

// Versioned is an ordered map with branch and version history. A handle
// works on one branch, the default branch unless pinned with OnBranch.
type Versioned struct {
	engine db.Engine
	mgr    *vs.Manager
	prefix keys.Prefix
	hint   KeyHint
	branch string
}

// NewVersioned returns the versioned map stored under prefix p. hint may be nil.
func NewVersioned(engine db.Engine, mgr *vs.Manager, p keys.Prefix, hint KeyHint) *Versioned {
	return &Versioned{engine: engine, mgr: mgr, prefix: p, hint: hint}
}

// OnBranch returns a handle on the same collection pinned to branch.
func (m *Versioned) OnBranch(branch string) *Versioned {
	c := *m
	c.branch = branch
	return &c
}

// Branch returns the branch the handle is pinned to ("" is the default branch).
func (m *Versioned) Branch() string {
	return m.branch
}

// Prefix returns the collection's prefix.
func (m *Versioned) Prefix() keys.Prefix {
	return m.prefix
}

// Manager returns the version manager shared by all collections of the store.
func (m *Versioned) Manager() *vs.Manager {
	return m.mgr
}

// --------------------------------------------------------------------------
// Writes
// --------------------------------------------------------------------------

// Insert writes key on the handle's branch. An empty value removes the key.
func (m *Versioned) Insert(key, value []byte) error {
	return m.InsertByBranch(key, value, m.branch)
}

// Remove writes a tombstone for key on the handle's branch.
func (m *Versioned) Remove(key []byte) error {
	return m.RemoveByBranch(key, m.branch)
}

// InsertByBranch writes key into the open version of branch.
func (m *Versioned) InsertByBranch(key, value []byte, branch string) error {
	if m.hint != nil {
		if err := m.hint.ObserveKeyLen(len(key)); err != nil {
			return err
		}
	}
	return m.mgr.Write(branch, func(v vs.VersionID, b *db.Batch) error {
		b.Insert(keys.AppendVersionedKey(nil, m.prefix, key, uint64(v)), value)
		vs.RecordWrite(b, v, m.prefix, key)
		return nil
	})
}

// RemoveByBranch writes a tombstone for key into the open version of branch.
func (m *Versioned) RemoveByBranch(key []byte, branch string) error {
	return m.InsertByBranch(key, nil, branch)
}

// WriteBatch applies ops to the open version of the handle's branch atomically.
func (m *Versioned) WriteBatch(ops []db.Op) error {
	if len(ops) == 0 {
		return nil
	}
	for _, op := range ops {
		if m.hint != nil && op.Kind == db.OpInsert {
			if err := m.hint.ObserveKeyLen(len(op.Key)); err != nil {
				return err
			}
		}
	}
	return m.mgr.Write(m.branch, func(v vs.VersionID, b *db.Batch) error {
		for _, op := range ops {
			var value []byte
			if op.Kind == db.OpInsert {
				value = op.Value
			}
			b.Insert(keys.AppendVersionedKey(nil, m.prefix, op.Key, uint64(v)), value)
			vs.RecordWrite(b, v, m.prefix, op.Key)
		}
		return nil
	})
}

// --------------------------------------------------------------------------
// Point reads
// --------------------------------------------------------------------------

// Get returns the value of key on the handle's branch.
func (m *Versioned) Get(key []byte) ([]byte, bool, error) {
	return m.GetByBranchVersion(key, m.branch, "")
}

// GetByBranch returns the value of key on branch.
func (m *Versioned) GetByBranch(key []byte, branch string) ([]byte, bool, error) {
	return m.GetByBranchVersion(key, branch, "")
}

// GetByBranchVersion returns the value of key as seen by version on branch.
// An empty version reads the branch head.
func (m *Versioned) GetByBranchVersion(key []byte, branch, version string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := m.mgr.Read(branch, version, func(l *vs.Lineage) error {
		var err error
		value, found, err = m.resolve(l, key)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// resolve finds the visible value of key in l (caller holds the read lock)
func (m *Versioned) resolve(l *vs.Lineage, key []byte) ([]byte, bool, error) {
	lower := keys.MakeVersionedKeyPrefix(m.prefix, key)
	opts := db.IterOptions{Lower: lower.Bytes()}
	if upper, ok := lower.End(); ok {
		opts.Upper = upper.Bytes()
	}
	it, err := m.engine.NewIterator(opts)
	if err != nil {
		return nil, false, common.EngineErr(err, "get from collection %d", m.prefix)
	}

	best, depth := -1, 0
	var value []byte
	for ; it.Valid(); it.Next() {
		depth++
		k := it.Key()
		id, _, err := keys.DecodeUint64(k[len(k)-8:])
		if err != nil {
			_ = it.Close()
			return nil, false, common.Wrap(common.ErrInconsistent, err, "collection %d", m.prefix)
		}
		if pos, ok := l.Position(vs.VersionID(id)); ok && pos > best {
			best = pos
			value = append(value[:0], it.Value()...)
		}
	}
	if err := it.Close(); err != nil {
		return nil, false, common.EngineErr(err, "get from collection %d", m.prefix)
	}
	lookupDepth.Update(int64(depth))

	if best < 0 || len(value) == 0 {
		return nil, false, nil
	}
	return value, true, nil
}

// ContainsKey reports whether key is visible on the handle's branch.
func (m *Versioned) ContainsKey(key []byte) (bool, error) {
	return m.ContainsKeyByBranchVersion(key, m.branch, "")
}

// ContainsKeyByBranch reports whether key is visible on branch.
func (m *Versioned) ContainsKeyByBranch(key []byte, branch string) (bool, error) {
	return m.ContainsKeyByBranchVersion(key, branch, "")
}

// ContainsKeyByBranchVersion reports whether key is visible at version on branch.
func (m *Versioned) ContainsKeyByBranchVersion(key []byte, branch, version string) (bool, error) {
	_, found, err := m.GetByBranchVersion(key, branch, version)
	return found, err
}

// GetGE returns the first visible entry whose key is >= key.
func (m *Versioned) GetGE(key []byte) (k, v []byte, found bool, err error) {
	lower, _ := keys.VersionedKeyRange(m.prefix, key)
	_, upper := keys.VersionedRange(m.prefix)
	return m.first(lower, upper, false)
}

// GetLE returns the last visible entry whose key is <= key.
func (m *Versioned) GetLE(key []byte) (k, v []byte, found bool, err error) {
	lower, _ := keys.VersionedRange(m.prefix)
	_, upper := keys.VersionedKeyRange(m.prefix, key)
	return m.first(lower, upper, true)
}

func (m *Versioned) first(lower, upper []byte, reverse bool) ([]byte, []byte, bool, error) {
	var (
		k, v  []byte
		found bool
	)
	err := m.mgr.Read(m.branch, "", func(l *vs.Lineage) error {
		it, err := m.newIter(l, lower, upper, reverse)
		if err != nil {
			return err
		}
		if it.Valid() {
			k, v, found = it.Key(), it.Value(), true
		}
		return it.Close()
	})
	if err != nil {
		return nil, nil, false, err
	}
	return k, v, found, nil
}

// --------------------------------------------------------------------------
// Iteration
// --------------------------------------------------------------------------

// Iter returns an iterator over the visible entries of the handle's branch.
// The iterator must be closed.
func (m *Versioned) Iter() (db.Iterator, error) {
	return m.RangeByBranchVersion(m.branch, "", db.IterOptions{})
}

// IterByBranch returns an iterator over the visible entries of branch.
func (m *Versioned) IterByBranch(branch string) (db.Iterator, error) {
	return m.RangeByBranchVersion(branch, "", db.IterOptions{})
}

// IterByBranchVersion returns an iterator over the entries visible at version on branch.
func (m *Versioned) IterByBranchVersion(branch, version string) (db.Iterator, error) {
	return m.RangeByBranchVersion(branch, version, db.IterOptions{})
}

// Range returns an iterator over the caller keys in [opts.Lower, opts.Upper)
// on the handle's branch.
func (m *Versioned) Range(opts db.IterOptions) (db.Iterator, error) {
	return m.RangeByBranchVersion(m.branch, "", opts)
}

// RangeByBranch is Range on branch.
func (m *Versioned) RangeByBranch(branch string, opts db.IterOptions) (db.Iterator, error) {
	return m.RangeByBranchVersion(branch, "", opts)
}

// RangeByBranchVersion is Range on branch pinned at version.
func (m *Versioned) RangeByBranchVersion(branch, version string, opts db.IterOptions) (db.Iterator, error) {
	lower, upper := keys.VersionedRange(m.prefix)
	if opts.Lower != nil {
		lower, _ = keys.VersionedKeyRange(m.prefix, opts.Lower)
	}
	if opts.Upper != nil {
		upper, _ = keys.VersionedKeyRange(m.prefix, opts.Upper)
	}

	var it *versionedIter
	release, err := m.mgr.Snapshot(branch, version, func(l *vs.Lineage) error {
		var err error
		it, err = m.newIter(l, lower, upper, opts.Reverse)
		return err
	})
	if err != nil {
		return nil, err
	}
	it.release = release
	return it, nil
}

// Len counts the visible entries of the handle's branch.
func (m *Versioned) Len() (int, error) {
	return m.LenByBranchVersion(m.branch, "")
}

// LenByBranch counts the visible entries of branch.
func (m *Versioned) LenByBranch(branch string) (int, error) {
	return m.LenByBranchVersion(branch, "")
}

// LenByBranchVersion counts the entries visible at version on branch.
func (m *Versioned) LenByBranchVersion(branch, version string) (int, error) {
	it, err := m.IterByBranchVersion(branch, version)
	if err != nil {
		return 0, err
	}
	return count(it)
}

// IsEmpty reports whether nothing is visible on the handle's branch.
func (m *Versioned) IsEmpty() (bool, error) {
	it, err := m.Iter()
	if err != nil {
		return false, err
	}
	empty := !it.Valid()
	return empty, it.Close()
}

// --------------------------------------------------------------------------
// Versioning
// --------------------------------------------------------------------------

// VersionCreate creates a version on the handle's branch.
func (m *Versioned) VersionCreate(name string) error {
	return m.mgr.VersionCreate(m.branch, name)
}

// BranchCreate forks the handle's branch into name.
func (m *Versioned) BranchCreate(name string, force bool) error {
	return m.mgr.BranchCreate(name, m.defaultedBranch(), force)
}

// BranchMergeTo merges the handle's branch into dst.
func (m *Versioned) BranchMergeTo(dst string, force bool) error {
	return m.mgr.BranchMergeTo(m.defaultedBranch(), dst, force)
}

func (m *Versioned) defaultedBranch() string {
	if m.branch == "" {
		return m.mgr.BranchGetDefault()
	}
	return m.branch
}

// Destroy deletes every entry of the collection on every branch.
func (m *Versioned) Destroy() error {
	if err := m.mgr.DropCollection(m.prefix); err != nil {
		return err
	}
	log.Infof("destroyed versioned collection %d", m.prefix)
	return nil
}
