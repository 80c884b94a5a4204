package vs

import (
	"sync"

	"github.com/ValentinKolb/vsdb/lib/common"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/keys"
)

// lineage returns the cached snapshot of br (caller holds a lock)
func (m *Manager) lineage(br *branch) *Lineage {
	l, _ := m.lineages.LoadOrCompute(br.name, func() *Lineage {
		return newLineage(br.name, br.seq)
	})
	return l
}

// lineageAt resolves branch and optional version to a snapshot (caller holds a lock)
func (m *Manager) lineageAt(branchName, versionName string) (*Lineage, error) {
	br, err := m.branch(branchName)
	if err != nil {
		return nil, err
	}
	l := m.lineage(br)
	if versionName == "" {
		return l, nil
	}
	ver, err := m.versionByName(versionName)
	if err != nil {
		return nil, err
	}
	pinned, ok := l.upTo(ver.id)
	if !ok {
		return nil, common.Errorf(common.ErrNotFound, "version %q on branch %q", versionName, br.name)
	}
	return pinned, nil
}

// Lineage returns a snapshot of the branch's sequence. An empty name
// selects the default branch.
func (m *Manager) Lineage(branch string) (*Lineage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lineageAt(branch, "")
}

// LineageAt returns a snapshot of the branch's sequence up to and including version.
func (m *Manager) LineageAt(branch, version string) (*Lineage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lineageAt(branch, version)
}

// Read runs fn with the lineage of branch (pinned at version if not empty)
// while holding the read lock, so no metadata mutation can interleave.
func (m *Manager) Read(branch, version string, fn func(l *Lineage) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, err := m.lineageAt(branch, version)
	if err != nil {
		return err
	}
	return fn(l)
}

// Snapshot is Read for long running readers. fn runs under the read lock
// (open engine iterators there), and when it succeeds the reader counts as
// open until release is called, which makes Exclusive fail with ErrBusy.
func (m *Manager) Snapshot(branch, version string, fn func(l *Lineage) error) (release func(), err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, err := m.lineageAt(branch, version)
	if err != nil {
		return nil, err
	}
	if err := fn(l); err != nil {
		return nil, err
	}
	m.readers.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { m.readers.Add(-1) })
	}, nil
}

// OpenReaders returns the number of snapshots not yet released.
func (m *Manager) OpenReaders() int64 {
	return m.readers.Load()
}

// OpenVersion returns the version that receives writes on branch. If the
// branch's tail is shared with another branch a fresh version is opened.
func (m *Manager) OpenVersion(branch string) (VersionID, error) {
	var open VersionID
	err := m.Write(branch, func(v VersionID, _ *db.Batch) error {
		open = v
		return nil
	})
	return open, err
}

// RecordWrite adds the change-set index entry for (p, key) in version v to b.
func RecordWrite(b *db.Batch, v VersionID, p keys.Prefix, key []byte) {
	b.Insert(changeSetKey(v, p, key), nil)
}

// Write calls fn with the open version of branch and commits the ops fn
// adds to the batch atomically. fn is expected to add the data entries and
// their RecordWrite index entries. The read lock is held until the batch is
// committed, so a concurrent fork can not make the version shared halfway.
func (m *Manager) Write(branch string, fn func(v VersionID, b *db.Batch) error) error {
	for {
		m.mu.RLock()
		if err := m.checkPoison(); err != nil {
			m.mu.RUnlock()
			return err
		}
		br, err := m.branch(branch)
		if err != nil {
			m.mu.RUnlock()
			return err
		}
		if len(br.seq) == 0 {
			m.mu.RUnlock()
			return common.Errorf(common.ErrNotFound, "branch %q has no version, create a version first", br.name)
		}
		tail, err := m.mustExist(br.seq[len(br.seq)-1])
		if err != nil {
			m.mu.RUnlock()
			return err
		}
		if tail.refs > 1 {
			m.mu.RUnlock()
			if err := m.openExclusiveTail(branch); err != nil {
				return err
			}
			continue
		}

		err = m.commitWrite(tail, fn)
		m.mu.RUnlock()
		return err
	}
}

func (m *Manager) commitWrite(tail *version, fn func(v VersionID, b *db.Batch) error) error {
	var b db.Batch
	if err := fn(tail.id, &b); err != nil {
		return err
	}
	if b.Len() == 0 {
		return nil
	}
	if err := m.engine.WriteBatch(b.Ops); err != nil {
		return common.EngineErr(err, "write %d ops to version %q", b.Len(), tail.name)
	}
	tail.changed.Store(true)
	return nil
}

// openExclusiveTail appends a fresh version to branch if its tail is shared
func (m *Manager) openExclusiveTail(branch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPoison(); err != nil {
		return err
	}
	br, err := m.branch(branch)
	if err != nil {
		return err
	}
	if len(br.seq) == 0 || m.versions[br.seq[len(br.seq)-1]].refs <= 1 {
		return nil
	}
	t := m.begin("open_version")
	if err := t.appendAuto(br); err != nil {
		return err
	}
	return t.commit()
}

// appendAuto plans a fresh automatically named version at the end of br
func (t *txn) appendAuto(br *branch) error {
	ver, err := t.newVersion(autoVersionName())
	if err != nil {
		return err
	}
	seq := t.seq(br)
	t.setSeq(br, append(append(make([]VersionID, 0, len(seq)+1), seq...), ver.id))
	log.Debugf("opened version %q on branch %q", ver.name, br.name)
	return nil
}
