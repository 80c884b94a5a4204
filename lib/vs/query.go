package vs

import (
	"encoding/binary"
	"sort"

	"github.com/ValentinKolb/vsdb/lib/common"
	"github.com/cespare/xxhash/v2"
)

// Queries return snapshots. Under concurrent mutation a result may be
// stale by the time it is used.

// BranchList returns all branch names, sorted.
func (m *Manager) BranchList() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.branches))
	for name := range m.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BranchExists reports whether the branch exists.
func (m *Manager) BranchExists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.branches[name]
	return ok
}

// BranchIsEmpty reports whether no version on the branch has a change set.
func (m *Manager) BranchIsEmpty(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	br, err := m.branch(name)
	if err != nil {
		return false, err
	}
	return m.isEmpty(br), nil
}

// BranchHasVersions reports whether the branch has at least one version.
func (m *Manager) BranchHasVersions(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	br, err := m.branch(name)
	if err != nil {
		return false, err
	}
	return len(br.seq) > 0, nil
}

// VersionList returns the versions of branch, oldest first.
func (m *Manager) VersionList(branch string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	br, err := m.branch(branch)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(br.seq))
	for _, id := range br.seq {
		names = append(names, m.versions[id].name)
	}
	return names, nil
}

// VersionListGlobally returns every known version (orphans included) in creation order.
func (m *Manager) VersionListGlobally() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vers := make([]*version, 0, len(m.versions))
	for _, ver := range m.versions {
		vers = append(vers, ver)
	}
	sort.Slice(vers, func(i, j int) bool { return vers[i].id < vers[j].id })
	names := make([]string, len(vers))
	for i, ver := range vers {
		names[i] = ver.name
	}
	return names
}

// VersionOrphans returns the versions referenced by no branch.
func (m *Manager) VersionOrphans() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for _, ver := range m.versions {
		if ver.refs == 0 {
			names = append(names, ver.name)
		}
	}
	sort.Strings(names)
	return names
}

// VersionExistsGlobally reports whether the name is used by any version.
func (m *Manager) VersionExistsGlobally(name string) bool {
	_, ok := m.names.Load(name)
	return ok
}

// VersionExistsOnBranch reports whether the version is part of the branch.
func (m *Manager) VersionExistsOnBranch(name, branch string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	br, err := m.branch(branch)
	if err != nil {
		return false, err
	}
	ver, ok := m.names.Load(name)
	if !ok {
		return false, nil
	}
	return contains(br.seq, ver.id), nil
}

// VersionHasChangeSet reports whether anything was written in the version.
func (m *Manager) VersionHasChangeSet(name string) (bool, error) {
	ver, err := m.versionByName(name)
	if err != nil {
		return false, err
	}
	return ver.changed.Load(), nil
}

// VersionChangeSetDigest returns a digest over the sorted change set of a
// version on branch (collection, key and value of every entry). Equal
// change sets have equal digests.
func (m *Manager) VersionChangeSetDigest(branch, version string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	br, err := m.branch(branch)
	if err != nil {
		return 0, err
	}
	ver, err := m.versionByName(version)
	if err != nil {
		return 0, err
	}
	if !contains(br.seq, ver.id) {
		return 0, common.Errorf(common.ErrNotFound, "version %q on branch %q", version, br.name)
	}

	h := xxhash.New()
	var lenBuf [8]byte
	writeField := func(b []byte) {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write(b)
	}

	lower, upper := changeSetRange(ver.id)
	err = m.scan(lower, upper, func(k, _ []byte) error {
		_, p, key, err := decodeChangeSetKey(k)
		if err != nil {
			return common.Wrap(common.ErrInconsistent, err, "change set of %q", version)
		}
		value, _, err := m.engine.Get(dataKey(p, key, ver.id))
		if err != nil {
			return common.EngineErr(err, "digest of %q", version)
		}
		writeField(k[len(lower):])
		writeField(value)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// Stats summarizes the manager state
type Stats struct {
	Branches      int    `json:"branches"`
	Versions      int    `json:"versions"`
	Orphans       int    `json:"orphans"`
	Dangling      int    `json:"dangling_sequences"`
	DefaultBranch string `json:"default_branch"`
	OpenReaders   int64  `json:"open_readers"`
}

// Stats returns a summary of the manager state.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{
		Branches:      len(m.branches),
		Versions:      len(m.versions),
		Dangling:      len(m.dangling),
		DefaultBranch: m.defaultBranch,
		OpenReaders:   m.readers.Load(),
	}
	for _, ver := range m.versions {
		if ver.refs == 0 {
			s.Orphans++
		}
	}
	return s
}
