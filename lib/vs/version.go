package vs

import (
	"github.com/ValentinKolb/vsdb/lib/common"
	"github.com/ValentinKolb/vsdb/lib/keys"
)

// VersionCreate appends a new version to branch. Subsequent writes on the
// branch go to it. Version names are unique store wide, a name that is
// still known (even as an orphan) fails with ErrAlreadyExists.
func (m *Manager) VersionCreate(branch, name string) error {
	if err := validName("version", name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPoison(); err != nil {
		return err
	}

	br, err := m.branch(branch)
	if err != nil {
		return err
	}
	if _, taken := m.names.Load(name); taken {
		return common.Errorf(common.ErrAlreadyExists, "version %q", name)
	}

	t := m.begin("version_create")
	ver, err := t.newVersion(name)
	if err != nil {
		return err
	}
	t.setSeq(br, append(append([]VersionID(nil), br.seq...), ver.id))
	if err := t.commit(); err != nil {
		return err
	}
	log.Debugf("created version %q on branch %q", name, br.name)
	return nil
}

// VersionPop drops the newest version of branch, see BranchPopVersion.
func (m *Manager) VersionPop(branch string) error {
	return m.BranchPopVersion(branch)
}

// VersionRevertGlobally deletes a version with its data and removes it from
// every branch.
func (m *Manager) VersionRevertGlobally(guard *Exclusive, name string) error {
	if err := m.checkGuard(guard); err != nil {
		return err
	}
	if err := m.checkPoison(); err != nil {
		return err
	}

	ver, err := m.versionByName(name)
	if err != nil {
		return err
	}

	t := m.begin("version_revert")
	for _, br := range m.branches {
		if i := indexOf(br.seq, ver.id); i >= 0 {
			seq := append(append([]VersionID(nil), br.seq[:i]...), br.seq[i+1:]...)
			t.setSeq(br, seq)
		}
	}
	if err := t.purgeVersion(ver); err != nil {
		return err
	}
	if err := t.commit(); err != nil {
		return err
	}
	log.Infof("reverted version %q", name)
	return nil
}

// VersionRebase folds every version after base on branch into base and
// removes them. base and the folded versions must belong to this branch
// alone, otherwise other branches would see the folded data.
func (m *Manager) VersionRebase(guard *Exclusive, branch, base string) error {
	if err := m.checkGuard(guard); err != nil {
		return err
	}
	if err := m.checkPoison(); err != nil {
		return err
	}

	br, err := m.branch(branch)
	if err != nil {
		return err
	}
	baseVer, err := m.versionByName(base)
	if err != nil {
		return err
	}
	i := indexOf(br.seq, baseVer.id)
	if i < 0 {
		return common.Errorf(common.ErrNotFound, "version %q on branch %q", base, br.name)
	}
	if i == len(br.seq)-1 {
		return nil
	}

	folded := make([]*version, 0, len(br.seq)-i-1)
	for _, id := range br.seq[i:] {
		ver, err := m.mustExist(id)
		if err != nil {
			return err
		}
		if ver.refs > 1 {
			return common.Errorf(common.ErrInvalidOperation,
				"rebase %q onto %q: version %q is shared with another branch", br.name, base, ver.name)
		}
		if ver != baseVer {
			folded = append(folded, ver)
		}
	}

	t := m.begin("version_rebase")
	// older versions below base may still hold values a tombstone hides
	if err := t.fold(baseVer, folded, i == 0); err != nil {
		return err
	}
	t.setSeq(br, append([]VersionID(nil), br.seq[:i+1]...))
	if err := t.commit(); err != nil {
		return err
	}
	log.Infof("rebased %d versions of %q onto %q", len(folded), br.name, base)
	return nil
}

// fold plans merging the change sets of versions (oldest first) into base.
// For every key the newest value wins. Tombstones that reach base are
// dropped when dropTombstones is set, the folded versions are purged.
func (t *txn) fold(base *version, versions []*version, dropTombstones bool) error {
	type entry struct {
		p   keys.Prefix
		key []byte
		win VersionID
	}
	winners := make(map[string]*entry)
	order := make([]string, 0)

	for i := len(versions) - 1; i >= 0; i-- {
		ver := versions[i]
		lower, upper := changeSetRange(ver.id)
		err := t.m.scan(lower, upper, func(k, _ []byte) error {
			_, p, key, err := decodeChangeSetKey(k)
			if err != nil {
				return t.m.poisonWith(common.Wrap(common.ErrInconsistent, err, "change set of %q", ver.name))
			}
			id := string(k[keys.PrefixSize+1+8:])
			if _, seen := winners[id]; !seen {
				winners[id] = &entry{p: p, key: append([]byte(nil), key...), win: ver.id}
				order = append(order, id)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	for _, id := range order {
		e := winners[id]
		value, found, err := t.m.engine.Get(dataKey(e.p, e.key, e.win))
		if err != nil {
			return common.EngineErr(err, "fold into %q", base.name)
		}
		if !found {
			log.Warningf("change set of version %d lists key %x of collection %d without data", e.win, e.key, e.p)
		}
		if len(value) == 0 && dropTombstones {
			t.b.Remove(dataKey(e.p, e.key, base.id))
			t.b.Remove(changeSetKey(base.id, e.p, e.key))
			continue
		}
		t.b.Insert(dataKey(e.p, e.key, base.id), value)
		t.b.Insert(changeSetKey(base.id, e.p, e.key), nil)
	}

	for _, ver := range versions {
		if err := t.purgeVersion(ver); err != nil {
			return err
		}
	}
	t.then(func() {
		if err := t.m.refreshChanged(base); err != nil {
			log.Errorf("refresh change-set flag of %q: %v", base.name, err)
		}
	})
	return nil
}

// VersionCleanUpGlobally deletes every orphaned version (data, change set
// and names) and the sequences left behind by removed branches.
func (m *Manager) VersionCleanUpGlobally() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPoison(); err != nil {
		return err
	}
	return m.cleanUp()
}

// cleanUp is VersionCleanUpGlobally with the lock held
func (m *Manager) cleanUp() error {
	t := m.begin("version_cleanup")
	orphans := 0
	for _, ver := range m.versions {
		if ver.refs == 0 {
			if err := t.purgeVersion(ver); err != nil {
				return err
			}
			orphans++
		}
	}
	for id, n := range m.dangling {
		for pos := 0; pos < n; pos++ {
			t.b.Remove(seqKey(id, pos))
		}
	}
	if orphans == 0 && len(m.dangling) == 0 {
		return nil
	}
	dangling := len(m.dangling)
	t.then(func() {
		m.dangling = make(map[BranchID]int)
	})
	if err := t.commit(); err != nil {
		return err
	}
	log.Infof("cleaned up %d orphaned versions and %d removed branches", orphans, dangling)
	return nil
}
