package vs

// DefaultReserved is the number of newest common versions Prune keeps
const DefaultReserved = 10

// PruneOptions configures Prune
type PruneOptions struct {
	// Reserved is the number of newest common versions that are kept unfolded
	Reserved int
}

// DefaultPruneOptions returns the options used by the CLI and the store
func DefaultPruneOptions() PruneOptions {
	return PruneOptions{Reserved: DefaultReserved}
}

// Prune compacts the history shared by all non-empty branches.
//
// Orphans are cleaned up first. Then the longest common prefix of the
// sequences of every non-empty branch (a branch with at least one version
// with a non-empty change set) is computed. Its newest opts.Reserved
// versions are kept, the others except the first one (the base) are folded
// into the base and deleted everywhere. Lookups on every non-empty branch
// return the same values before and after. Empty branches lose the base
// and the folded versions, so they never gain data.
func (m *Manager) Prune(opts PruneOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPoison(); err != nil {
		return err
	}
	if err := m.cleanUp(); err != nil {
		return err
	}

	var nonEmpty, empty []*branch
	for _, br := range m.branches {
		if m.isEmpty(br) {
			empty = append(empty, br)
		} else {
			nonEmpty = append(nonEmpty, br)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}

	lcp := nonEmpty[0].seq
	for _, br := range nonEmpty[1:] {
		lcp = lcp[:commonPrefix(lcp, br.seq)]
	}
	reserved := opts.Reserved
	if reserved < 0 {
		reserved = 0
	}
	cut := len(lcp) - reserved
	if cut < 2 {
		log.Debugf("prune: nothing to fold (common=%d, reserved=%d)", len(lcp), reserved)
		return nil
	}

	base, err := m.mustExist(lcp[0])
	if err != nil {
		return err
	}
	drop := make(map[VersionID]bool, cut)
	folded := make([]*version, 0, cut-1)
	for _, id := range lcp[1:cut] {
		ver, err := m.mustExist(id)
		if err != nil {
			return err
		}
		folded = append(folded, ver)
		drop[id] = true
	}

	t := m.begin("prune")
	if err := t.fold(base, folded, true); err != nil {
		return err
	}
	for _, br := range nonEmpty {
		t.setSeq(br, without(br.seq, drop, 0))
	}
	for _, br := range empty {
		if seq := without(without(br.seq, drop, 0), nil, base.id); len(seq) != len(br.seq) {
			t.setSeq(br, seq)
		}
	}
	if err := t.commit(); err != nil {
		return err
	}
	log.Infof("pruned %d versions into %q (common=%d, reserved=%d, branches=%d)",
		len(folded), base.name, len(lcp), reserved, len(nonEmpty))
	return nil
}

// isEmpty reports whether no version of br has a change set (caller holds the lock)
func (m *Manager) isEmpty(br *branch) bool {
	for _, id := range br.seq {
		if ver, ok := m.versions[id]; ok && ver.changed.Load() {
			return false
		}
	}
	return true
}

// without returns a copy of seq without the versions in drop and without extra (if non-zero)
func without(seq []VersionID, drop map[VersionID]bool, extra VersionID) []VersionID {
	res := make([]VersionID, 0, len(seq))
	for _, id := range seq {
		if drop[id] || (extra != 0 && id == extra) {
			continue
		}
		res = append(res, id)
	}
	return res
}
