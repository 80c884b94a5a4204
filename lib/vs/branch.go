package vs

import (
	"github.com/ValentinKolb/vsdb/lib/common"
)

// BranchCreate creates branch name. An empty base creates an empty branch,
// otherwise the new branch starts with a copy of base's sequence. With
// force an existing branch of the same name is removed first.
func (m *Manager) BranchCreate(name, base string, force bool) error {
	return m.branchCreate(name, base, "", force)
}

// BranchCreateAt creates branch name from base's sequence up to and
// including version.
func (m *Manager) BranchCreateAt(name, base, version string, force bool) error {
	if version == "" {
		return common.Errorf(common.ErrInvalidOperation, "branch %q: empty version", name)
	}
	return m.branchCreate(name, base, version, force)
}

func (m *Manager) branchCreate(name, base, at string, force bool) error {
	if err := validName("branch", name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPoison(); err != nil {
		return err
	}

	existing, exists := m.branches[name]
	if exists && !force {
		return common.Errorf(common.ErrAlreadyExists, "branch %q", name)
	}
	if exists && name == m.defaultBranch {
		return common.Errorf(common.ErrInvalidOperation, "branch %q is the default branch and can not be replaced", name)
	}

	var (
		baseBr *branch
		seq    []VersionID
	)
	if base != "" {
		if base == name {
			return common.Errorf(common.ErrInvalidOperation, "branch %q can not be created from itself", name)
		}
		var err error
		if baseBr, err = m.branch(base); err != nil {
			return err
		}
		seq = baseBr.seq
		if at != "" {
			ver, err := m.versionByName(at)
			if err != nil {
				return err
			}
			i := indexOf(seq, ver.id)
			if i < 0 {
				return common.Errorf(common.ErrNotFound, "version %q on branch %q", at, base)
			}
			seq = seq[:i+1]
		}
	} else if at != "" {
		return common.Errorf(common.ErrInvalidOperation, "branch %q: a version needs a base branch", name)
	}

	t := m.begin("branch_create")
	if exists {
		t.removeBranch(existing)
	}
	br, err := t.newBranch(name, seq)
	if err != nil {
		return err
	}

	// neither side may write into the version they now share
	if len(seq) > 0 {
		if err := t.appendAuto(br); err != nil {
			return err
		}
		if baseBr.seq[len(baseBr.seq)-1] == seq[len(seq)-1] {
			if err := t.appendAuto(baseBr); err != nil {
				return err
			}
		}
	}

	if err := t.commit(); err != nil {
		return err
	}
	log.Infof("created branch %q (base=%q, versions=%d)", name, base, len(seq))
	return nil
}

// BranchRemove removes a branch. Versions it referenced alone become
// orphans, their data stays until VersionCleanUpGlobally or Prune.
func (m *Manager) BranchRemove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPoison(); err != nil {
		return err
	}

	br, ok := m.branches[name]
	if !ok {
		return common.Errorf(common.ErrNotFound, "branch %q", name)
	}
	if name == m.defaultBranch {
		return common.Errorf(common.ErrInvalidOperation, "branch %q is the default branch", name)
	}

	t := m.begin("branch_remove")
	t.removeBranch(br)
	if err := t.commit(); err != nil {
		return err
	}
	log.Infof("removed branch %q", name)
	return nil
}

// BranchTruncate drops every version from the branch.
func (m *Manager) BranchTruncate(name string) error {
	return m.truncate(name, func(seq []VersionID) ([]VersionID, error) {
		return nil, nil
	})
}

// BranchTruncateTo drops every version after version from the branch.
func (m *Manager) BranchTruncateTo(name, version string) error {
	return m.truncate(name, func(seq []VersionID) ([]VersionID, error) {
		ver, err := m.versionByName(version)
		if err != nil {
			return nil, err
		}
		i := indexOf(seq, ver.id)
		if i < 0 {
			return nil, common.Errorf(common.ErrNotFound, "version %q on branch %q", version, name)
		}
		return seq[:i+1], nil
	})
}

// BranchPopVersion drops the newest version of the branch. Popping an
// empty branch is a no-op.
func (m *Manager) BranchPopVersion(name string) error {
	return m.truncate(name, func(seq []VersionID) ([]VersionID, error) {
		if len(seq) == 0 {
			return seq, nil
		}
		return seq[:len(seq)-1], nil
	})
}

func (m *Manager) truncate(name string, cut func([]VersionID) ([]VersionID, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPoison(); err != nil {
		return err
	}

	br, err := m.branch(name)
	if err != nil {
		return err
	}
	seq, err := cut(br.seq)
	if err != nil {
		return err
	}
	if len(seq) == len(br.seq) {
		return nil
	}

	t := m.begin("branch_truncate")
	t.setSeq(br, append([]VersionID(nil), seq...))
	return t.commit()
}

// BranchKeepOnly removes every branch not named and cleans up the
// versions that became orphans.
func (m *Manager) BranchKeepOnly(names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPoison(); err != nil {
		return err
	}

	keep := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := m.branches[name]; !ok {
			return common.Errorf(common.ErrNotFound, "branch %q", name)
		}
		keep[name] = true
	}
	if !keep[m.defaultBranch] {
		return common.Errorf(common.ErrInvalidOperation, "the default branch %q must be kept", m.defaultBranch)
	}

	t := m.begin("branch_keep_only")
	for name, br := range m.branches {
		if !keep[name] {
			t.removeBranch(br)
		}
	}
	if err := t.commit(); err != nil {
		return err
	}
	return m.cleanUp()
}

// BranchSwap exchanges the sequences behind two branch names in one batch.
func (m *Manager) BranchSwap(guard *Exclusive, a, b string) error {
	if err := m.checkGuard(guard); err != nil {
		return err
	}
	if err := m.checkPoison(); err != nil {
		return err
	}

	brA, err := m.branch(a)
	if err != nil {
		return err
	}
	brB, err := m.branch(b)
	if err != nil {
		return err
	}
	if brA == brB {
		return nil
	}

	t := m.begin("branch_swap")
	t.b.Insert(branchNameKey(a), u64(uint64(brB.id)))
	t.b.Insert(branchNameKey(b), u64(uint64(brA.id)))
	t.renames[brA] = b
	t.renames[brB] = a
	if err := t.commit(); err != nil {
		return err
	}
	log.Infof("swapped branches %q and %q", a, b)
	return nil
}

// BranchSetDefault sets the branch used by handles that are not pinned to a branch.
func (m *Manager) BranchSetDefault(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPoison(); err != nil {
		return err
	}
	if _, ok := m.branches[name]; !ok {
		return common.Errorf(common.ErrNotFound, "branch %q", name)
	}
	if name == m.defaultBranch {
		return nil
	}
	t := m.begin("branch_set_default")
	t.setDefault(name)
	return t.commit()
}

// BranchGetDefault returns the default branch.
func (m *Manager) BranchGetDefault() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultBranch
}

// BranchMergeTo appends src's versions that dst lacks to dst. Without
// force the merge fails with ErrDiverged when dst has versions after the
// common point that src does not have. src is never modified.
//
// Forking appends an automatic version to the base when the two would
// otherwise share their tail, so merging a fork back into its base reports
// ErrDiverged even if the base was not written since. Pop that version
// with BranchPopVersion or merge with force.
func (m *Manager) BranchMergeTo(src, dst string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPoison(); err != nil {
		return err
	}

	srcBr, err := m.branch(src)
	if err != nil {
		return err
	}
	dstBr, err := m.branch(dst)
	if err != nil {
		return err
	}
	if srcBr == dstBr {
		return nil
	}

	cp := commonPrefix(srcBr.seq, dstBr.seq)
	inSrc := make(map[VersionID]bool, len(srcBr.seq))
	for _, v := range srcBr.seq {
		inSrc[v] = true
	}
	for _, v := range dstBr.seq[cp:] {
		if !inSrc[v] && !force {
			ver, _ := m.mustExist(v)
			return diverged(src, dst, ver)
		}
	}

	inDst := make(map[VersionID]bool, len(dstBr.seq))
	for _, v := range dstBr.seq {
		inDst[v] = true
	}
	merged := append([]VersionID(nil), dstBr.seq...)
	for _, v := range srcBr.seq[cp:] {
		if !inDst[v] {
			merged = append(merged, v)
		}
	}
	added := len(merged) - len(dstBr.seq)
	if added == 0 {
		return nil
	}

	t := m.begin("branch_merge")
	t.setSeq(dstBr, merged)
	if err := t.commit(); err != nil {
		return err
	}
	log.Infof("merged %d versions of %q into %q (force=%t)", added, src, dst, force)
	return nil
}

func diverged(src, dst string, ver *version) error {
	name := "?"
	if ver != nil {
		name = ver.name
	}
	return common.Errorf(common.ErrDiverged, "merge %q into %q: %q has version %q after the common point", src, dst, dst, name)
}

// commonPrefix returns the length of the longest common prefix of a and b
func commonPrefix(a, b []VersionID) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
