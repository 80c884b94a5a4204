package vs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

var pruneKeys = []string{"a", "b", "c", "t"}

// snapshotReads records every key at every version of branch
func (f *fixture) snapshotReads(branch string) map[string]string {
	res := make(map[string]string)
	for _, k := range pruneKeys {
		res["head/"+k] = f.get(branch, k)
	}
	for _, v := range f.versions(branch) {
		for _, k := range pruneKeys {
			res[v+"/"+k] = f.getAt(branch, v, k)
		}
	}
	return res
}

func TestPruneKeepsLookups(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	f.put("main", "a", "1")
	f.put("main", "t", "x")
	require.NoError(t, f.m.VersionCreate("main", "v2"))
	f.put("main", "a", "2")
	f.put("main", "b", "2")
	require.NoError(t, f.m.VersionCreate("main", "v3"))
	f.del("main", "t")
	require.NoError(t, f.m.VersionCreate("main", "v4"))
	f.put("main", "c", "4")
	for i := 5; i <= 15; i++ {
		require.NoError(t, f.m.VersionCreate("main", fmt.Sprintf("v%d", i)))
		f.put("main", "a", fmt.Sprintf("%d", i))
	}

	before := f.snapshotReads("main")
	require.NoError(t, f.m.Prune(DefaultPruneOptions()))

	expected := []string{"v1"}
	for i := 6; i <= 15; i++ {
		expected = append(expected, fmt.Sprintf("v%d", i))
	}
	require.Equal(t, expected, f.versions("main"))
	for i := 2; i <= 5; i++ {
		require.False(t, f.m.VersionExistsGlobally(fmt.Sprintf("v%d", i)))
	}

	after := f.snapshotReads("main")
	for k, v := range after {
		if k[:3] == "v1/" {
			// the base now holds the folded state
			continue
		}
		require.Equal(t, before[k], v, k)
	}
	require.Equal(t, "5", f.getAt("main", "v1", "a"))
	require.Equal(t, "2", f.getAt("main", "v1", "b"))

	// the tombstone reached the base and is gone together with the value it hid
	require.Equal(t, 0, f.entries("t"))

	// nothing left to fold
	require.NoError(t, f.m.Prune(DefaultPruneOptions()))
	require.Equal(t, expected, f.versions("main"))
}

func TestPruneAcrossBranches(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 4; i++ {
		require.NoError(t, f.m.VersionCreate("main", fmt.Sprintf("v%d", i)))
		f.put("main", "a", fmt.Sprintf("%d", i))
		f.put("main", fmt.Sprintf("only-%d", i), "x")
	}
	require.NoError(t, f.m.BranchCreate("fork", "main", false))
	f.put("fork", "a", "fork")
	f.put("main", "b", "main")

	mainBefore := f.get("main", "a")
	forkBefore := f.get("fork", "a")

	require.NoError(t, f.m.Prune(PruneOptions{Reserved: 0}))

	mainVers, forkVers := f.versions("main"), f.versions("fork")
	require.Len(t, mainVers, 2)
	require.Len(t, forkVers, 2)
	require.Equal(t, "v1", mainVers[0])
	require.Equal(t, "v1", forkVers[0])

	require.Equal(t, mainBefore, f.get("main", "a"))
	require.Equal(t, forkBefore, f.get("fork", "a"))
	require.Equal(t, "main", f.get("main", "b"))
	require.Equal(t, "<absent>", f.get("fork", "b"))
	for i := 1; i <= 4; i++ {
		require.Equal(t, "x", f.get("fork", fmt.Sprintf("only-%d", i)))
	}
}

func TestPruneKeepsEmptyBranchesEmpty(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v0"))
	require.NoError(t, f.m.BranchCreateAt("blank", "main", "v0", false))
	for i := 1; i <= 15; i++ {
		require.NoError(t, f.m.VersionCreate("main", fmt.Sprintf("v%d", i)))
		f.put("main", "a", fmt.Sprintf("%d", i))
	}

	empty, err := f.m.BranchIsEmpty("blank")
	require.NoError(t, err)
	require.True(t, empty)

	require.NoError(t, f.m.Prune(DefaultPruneOptions()))

	require.Equal(t, "15", f.get("main", "a"))
	require.Equal(t, "<absent>", f.get("blank", "a"))
	blank := f.versions("blank")
	require.Len(t, blank, 1)
	require.True(t, isAuto(blank[0]))
	require.Equal(t, "v0", f.versions("main")[0])
}

func TestPruneCleansOrphans(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	require.NoError(t, f.m.BranchCreate("tmp", "main", false))
	f.put("tmp", "k", "v")
	require.NoError(t, f.m.BranchRemove("tmp"))
	require.NotEmpty(t, f.m.VersionOrphans())

	require.NoError(t, f.m.Prune(DefaultPruneOptions()))
	require.Empty(t, f.m.VersionOrphans())
	require.Equal(t, 0, f.entries("k"))
	require.Equal(t, 0, f.m.Stats().Dangling)
}
