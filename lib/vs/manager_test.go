package vs

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/vsdb/lib/alloc"
	"github.com/ValentinKolb/vsdb/lib/db/engines/memory"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestFreshStoreHasDefaultBranch(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, []string{DefaultBranch}, f.m.BranchList())
	require.Equal(t, DefaultBranch, f.m.BranchGetDefault())

	has, err := f.m.BranchHasVersions(DefaultBranch)
	require.NoError(t, err)
	require.False(t, has)

	// writes need a version
	require.ErrorIs(t, f.write(DefaultBranch, "k", "v"), ErrNotFound)
}

func TestVersionCreate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	require.NoError(t, f.m.BranchCreate("dev", "", false))

	// global uniqueness
	require.ErrorIs(t, f.m.VersionCreate("dev", "v1"), ErrAlreadyExists)
	require.ErrorIs(t, f.m.VersionCreate("main", "v1"), ErrAlreadyExists)
	require.ErrorIs(t, f.m.VersionCreate("main", ""), ErrInvalidOperation)
	require.ErrorIs(t, f.m.VersionCreate("nope", "v2"), ErrNotFound)

	require.True(t, f.m.VersionExistsGlobally("v1"))
	on, err := f.m.VersionExistsOnBranch("v1", "main")
	require.NoError(t, err)
	require.True(t, on)
	on, err = f.m.VersionExistsOnBranch("v1", "dev")
	require.NoError(t, err)
	require.False(t, on)

	changed, err := f.m.VersionHasChangeSet("v1")
	require.NoError(t, err)
	require.False(t, changed)
	f.put("main", "k", "v")
	changed, err = f.m.VersionHasChangeSet("v1")
	require.NoError(t, err)
	require.True(t, changed)
}

func TestVersionVisibility(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	f.put("main", "k1", "x")
	require.NoError(t, f.m.VersionCreate("main", "v2"))
	f.put("main", "k1", "y")

	require.Equal(t, "y", f.get("main", "k1"))
	require.Equal(t, "y", f.getAt("main", "v2", "k1"))
	require.Equal(t, "x", f.getAt("main", "v1", "k1"))

	_, _, err := f.lookup("main", "v3", "k1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTombstone(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	f.put("main", "a", "1")
	f.put("main", "b", "2")
	require.NoError(t, f.m.VersionCreate("main", "v2"))
	f.put("main", "a", "")
	f.del("main", "b")

	require.Equal(t, "<absent>", f.get("main", "a"))
	require.Equal(t, "<absent>", f.get("main", "b"))
	require.Equal(t, "1", f.getAt("main", "v1", "a"))
}

func TestForkIsolation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "genesis"))
	f.put("main", "acct1", "100")

	require.NoError(t, f.m.BranchCreate("fork", "main", false))

	// both sides got a fresh version on top of the shared history
	mainVers, forkVers := f.versions("main"), f.versions("fork")
	require.Len(t, mainVers, 2)
	require.Len(t, forkVers, 2)
	require.Equal(t, "genesis", mainVers[0])
	require.Equal(t, "genesis", forkVers[0])
	require.True(t, isAuto(mainVers[1]))
	require.True(t, isAuto(forkVers[1]))
	require.NotEqual(t, mainVers[1], forkVers[1])

	f.put("main", "acct1", "v1")
	f.put("fork", "acct1", "v2")
	require.Equal(t, "v1", f.get("main", "acct1"))
	require.Equal(t, "v2", f.get("fork", "acct1"))
}

func TestBranchCreateErrors(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	require.NoError(t, f.m.BranchCreate("dev", "main", false))

	require.ErrorIs(t, f.m.BranchCreate("dev", "main", false), ErrAlreadyExists)
	require.ErrorIs(t, f.m.BranchCreate("x", "missing", false), ErrNotFound)
	require.ErrorIs(t, f.m.BranchCreate("", "main", false), ErrInvalidOperation)
	require.ErrorIs(t, f.m.BranchCreate("dev", "dev", true), ErrInvalidOperation)
	require.ErrorIs(t, f.m.BranchCreate("main", "dev", true), ErrInvalidOperation)

	// force replaces the branch
	f.put("dev", "k", "old")
	require.NoError(t, f.m.BranchCreate("dev", "", true))
	has, err := f.m.BranchHasVersions("dev")
	require.NoError(t, err)
	require.False(t, has)
	require.NotEmpty(t, f.m.VersionOrphans())
}

func TestBranchCreateAt(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 3; i++ {
		require.NoError(t, f.m.VersionCreate("main", fmt.Sprintf("v%d", i)))
		f.put("main", "k", fmt.Sprintf("%d", i))
	}

	require.NoError(t, f.m.BranchCreateAt("old", "main", "v2", false))
	vers := f.versions("old")
	require.Len(t, vers, 3)
	require.Equal(t, []string{"v1", "v2"}, vers[:2])
	// main's tail was not shared, so it did not get a new version
	require.Equal(t, []string{"v1", "v2", "v3"}, f.versions("main"))

	require.Equal(t, "2", f.get("old", "k"))
	f.put("old", "k", "old")
	require.Equal(t, "3", f.get("main", "k"))
	require.Equal(t, "old", f.get("old", "k"))

	require.ErrorIs(t, f.m.BranchCreateAt("x", "main", "nope", false), ErrNotFound)
	require.NoError(t, f.m.VersionCreate("old", "only-old"))
	require.ErrorIs(t, f.m.BranchCreateAt("x", "main", "only-old", false), ErrNotFound)
}

// the end-to-end scenario
func TestEndToEndMerge(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "genesis"))
	f.put("main", "acct1", "100")
	require.NoError(t, f.m.VersionCreate("main", "tx1"))
	f.put("main", "acct1", "90")
	require.NoError(t, f.m.BranchCreate("fork", "main", false))
	f.put("fork", "acct1", "80")

	require.Equal(t, "90", f.get("main", "acct1"))
	require.Equal(t, "80", f.get("fork", "acct1"))

	before := f.versions("main")
	require.ErrorIs(t, f.m.BranchMergeTo("fork", "main", false), ErrDiverged)
	require.Equal(t, before, f.versions("main"))

	require.NoError(t, f.m.BranchMergeTo("fork", "main", true))
	forkVers := f.versions("fork")
	require.Equal(t, append(before, forkVers[len(forkVers)-1]), f.versions("main"))

	// last writer by append position wins
	require.Equal(t, "80", f.get("main", "acct1"))
	// the source is untouched
	require.Equal(t, forkVers, f.versions("fork"))
}

func TestMergeFastForward(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	require.NoError(t, f.m.BranchCreate("feature", "main", false))
	// main's auto version is empty, drop it so main is an ancestor of feature
	require.NoError(t, f.m.BranchPopVersion("main"))
	require.NoError(t, f.m.VersionCreate("feature", "f1"))
	f.put("feature", "k", "f")

	require.NoError(t, f.m.BranchMergeTo("feature", "main", false))
	require.Equal(t, f.versions("feature"), f.versions("main"))
	require.Equal(t, "f", f.get("main", "k"))

	// merging again and merging into itself are no-ops
	require.NoError(t, f.m.BranchMergeTo("feature", "main", false))
	require.NoError(t, f.m.BranchMergeTo("main", "main", false))

	// main and feature now share their tail, a write opens a fresh version
	f.put("main", "k", "m")
	require.Equal(t, "m", f.get("main", "k"))
	require.Equal(t, "f", f.get("feature", "k"))
	require.Len(t, f.versions("main"), len(f.versions("feature"))+1)
}

func TestMergeBackUntouchedFork(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	f.put("main", "k", "base")
	require.NoError(t, f.m.BranchCreate("feature", "main", false))
	f.put("feature", "k", "f")

	// the fork gave main an automatic version of its own
	mainVers := f.versions("main")
	require.True(t, isAuto(mainVers[len(mainVers)-1]))
	err := f.m.BranchMergeTo("feature", "main", false)
	require.ErrorIs(t, err, ErrDiverged)
	require.Equal(t, mainVers, f.versions("main"))

	require.NoError(t, f.m.BranchMergeTo("feature", "main", true))
	require.Equal(t, "f", f.get("main", "k"))
	require.Len(t, f.versions("main"), len(mainVers)+1)
}

func TestMergeDivergedTargetWithExtraVersion(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	require.NoError(t, f.m.BranchCreate("a", "main", false))
	require.NoError(t, f.m.BranchCreate("b", "main", false))
	require.NoError(t, f.m.VersionCreate("b", "b-extra"))
	require.NoError(t, f.m.VersionCreate("a", "a-extra"))

	require.ErrorIs(t, f.m.BranchMergeTo("a", "b", false), ErrDiverged)
	require.NoError(t, f.m.BranchMergeTo("a", "b", true))

	bVers := f.versions("b")
	aVers := f.versions("a")
	// a's unique versions are appended after b's existing sequence
	require.Equal(t, aVers[1:], bVers[len(bVers)-len(aVers)+1:])
	require.Equal(t, "a-extra", bVers[len(bVers)-1])
}

func TestBranchRemoveAndCleanUp(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	f.put("main", "shared", "1")
	require.NoError(t, f.m.BranchCreate("tmp", "main", false))
	require.NoError(t, f.m.VersionCreate("tmp", "tmp1"))
	f.put("tmp", "only-tmp", "x")

	require.ErrorIs(t, f.m.BranchRemove("main"), ErrInvalidOperation)
	require.ErrorIs(t, f.m.BranchRemove("nope"), ErrNotFound)
	require.NoError(t, f.m.BranchRemove("tmp"))
	require.False(t, f.m.BranchExists("tmp"))

	orphans := f.m.VersionOrphans()
	require.Contains(t, orphans, "tmp1")
	require.NotContains(t, orphans, "v1")
	// orphans keep their name and data until clean-up
	require.ErrorIs(t, f.m.VersionCreate("main", "tmp1"), ErrAlreadyExists)
	require.Equal(t, 1, f.entries("only-tmp"))
	require.Equal(t, 1, f.m.Stats().Dangling)

	require.NoError(t, f.m.VersionCleanUpGlobally())
	require.Empty(t, f.m.VersionOrphans())
	require.False(t, f.m.VersionExistsGlobally("tmp1"))
	require.Equal(t, 0, f.entries("only-tmp"))
	require.Equal(t, 0, f.m.Stats().Dangling)
	require.Equal(t, "1", f.get("main", "shared"))

	// the name is free again
	require.NoError(t, f.m.VersionCreate("main", "tmp1"))
}

func TestTruncateAndPop(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 4; i++ {
		require.NoError(t, f.m.VersionCreate("main", fmt.Sprintf("v%d", i)))
		f.put("main", "k", fmt.Sprintf("%d", i))
	}

	require.NoError(t, f.m.VersionPop("main"))
	require.Equal(t, "3", f.get("main", "k"))
	require.NoError(t, f.m.BranchTruncateTo("main", "v1"))
	require.Equal(t, []string{"v1"}, f.versions("main"))
	require.Equal(t, "1", f.get("main", "k"))
	require.ErrorIs(t, f.m.BranchTruncateTo("main", "v3"), ErrNotFound)

	require.NoError(t, f.m.BranchTruncate("main"))
	require.Empty(t, f.versions("main"))
	require.NoError(t, f.m.BranchPopVersion("main"))
	require.Len(t, f.m.VersionOrphans(), 4)
}

func TestBranchKeepOnly(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, f.m.BranchCreate(name, "main", false))
		f.put(name, "k", name)
	}

	require.ErrorIs(t, f.m.BranchKeepOnly("a"), ErrInvalidOperation)
	require.ErrorIs(t, f.m.BranchKeepOnly("main", "zzz"), ErrNotFound)
	require.NoError(t, f.m.BranchKeepOnly("main", "b"))
	require.Equal(t, []string{"b", "main"}, f.m.BranchList())
	require.Empty(t, f.m.VersionOrphans())
	require.Equal(t, "b", f.get("b", "k"))
}

func TestDefaultBranch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.BranchCreate("dev", "", false))
	require.NoError(t, f.m.VersionCreate("dev", "d1"))
	require.ErrorIs(t, f.m.BranchSetDefault("nope"), ErrNotFound)
	require.NoError(t, f.m.BranchSetDefault("dev"))
	require.Equal(t, "dev", f.m.BranchGetDefault())

	// the empty branch name resolves to the default
	f.put("", "k", "v")
	require.Equal(t, "v", f.get("dev", "k"))
	require.NoError(t, f.m.BranchRemove("main"))
	require.ErrorIs(t, f.m.BranchRemove("dev"), ErrInvalidOperation)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	f.put("main", "k", "1")
	require.NoError(t, f.m.BranchCreate("dev", "main", false))
	f.put("dev", "k", "2")
	require.NoError(t, f.m.BranchCreate("gone", "dev", false))
	require.NoError(t, f.m.BranchRemove("gone"))
	require.NoError(t, f.m.BranchSetDefault("dev"))

	branches := f.m.BranchList()
	mainVers, devVers := f.versions("main"), f.versions("dev")
	global := f.m.VersionListGlobally()
	orphans := f.m.VersionOrphans()

	f.reopen()
	require.Equal(t, branches, f.m.BranchList())
	require.Equal(t, mainVers, f.versions("main"))
	require.Equal(t, devVers, f.versions("dev"))
	require.Equal(t, global, f.m.VersionListGlobally())
	require.Equal(t, orphans, f.m.VersionOrphans())
	require.Equal(t, "dev", f.m.BranchGetDefault())
	require.Equal(t, 1, f.m.Stats().Dangling)
	require.Equal(t, "1", f.get("main", "k"))
	require.Equal(t, "2", f.get("dev", "k"))

	changed, err := f.m.VersionHasChangeSet("v1")
	require.NoError(t, err)
	require.True(t, changed)

	// new ids never collide with ids from before the restart
	require.NoError(t, f.m.VersionCreate("main", "after-restart"))
	f.put("main", "k", "3")
	require.Equal(t, "2", f.get("dev", "k"))
}

func TestEngineFailureHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))

	f.engine.failBatch.Store(true)
	require.ErrorIs(t, f.m.VersionCreate("main", "v2"), ErrEngine)
	require.ErrorIs(t, f.m.BranchCreate("dev", "main", false), ErrEngine)
	require.ErrorIs(t, f.write("main", "k", "v"), ErrEngine)
	f.engine.failBatch.Store(false)

	require.Equal(t, []string{"v1"}, f.versions("main"))
	require.False(t, f.m.BranchExists("dev"))
	require.False(t, f.m.VersionExistsGlobally("v2"))

	f.reopen()
	require.Equal(t, []string{"v1"}, f.versions("main"))
	require.NoError(t, f.m.VersionCreate("main", "v2"))
}

func TestCorruptMetadataPoisons(t *testing.T) {
	e := memory.NewMemoryEngine()
	a, err := alloc.New(e, alloc.Options{})
	require.NoError(t, err)
	m, err := Open(e, a)
	require.NoError(t, err)
	require.NoError(t, m.VersionCreate("main", "v1"))

	// a sequence entry pointing to a version that does not exist
	main := m.branches["main"]
	require.NoError(t, e.Insert(seqKey(main.id, 1), u64(999999)))

	_, err = Open(e, a)
	require.ErrorIs(t, err, ErrInconsistent)
}

func TestChangeSetDigest(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	f.put("main", "a", "1")
	f.put("main", "b", "2")
	require.NoError(t, f.m.VersionCreate("main", "v2"))
	f.put("main", "b", "2")
	f.put("main", "a", "1")
	require.NoError(t, f.m.VersionCreate("main", "v3"))
	f.put("main", "a", "other")

	d1, err := f.m.VersionChangeSetDigest("main", "v1")
	require.NoError(t, err)
	d2, err := f.m.VersionChangeSetDigest("main", "v2")
	require.NoError(t, err)
	d3, err := f.m.VersionChangeSetDigest("main", "v3")
	require.NoError(t, err)
	require.Equal(t, d1, d2)
	require.NotEqual(t, d1, d3)

	require.NoError(t, f.m.BranchCreate("dev", "", false))
	_, err = f.m.VersionChangeSetDigest("dev", "v1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDropCollection(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v1"))
	f.put("main", "a", "1")
	f.put("main", "b", "2")

	require.NoError(t, f.m.DropCollection(testPrefix))
	require.Equal(t, 0, f.entries("a"))
	require.Equal(t, "<absent>", f.get("main", "b"))
	changed, err := f.m.VersionHasChangeSet("v1")
	require.NoError(t, err)
	require.False(t, changed)
}

func TestConcurrentWritesAndForks(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.VersionCreate("main", "v0"))

	var g errgroup.Group
	for w := 0; w < 4; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				if err := f.write("main", fmt.Sprintf("w%d-%d", w, i), "x"); err != nil {
					return err
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := 0; i < 10; i++ {
			if err := f.m.BranchCreate(fmt.Sprintf("fork-%d", i), "main", false); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())

	// every write landed on main, no fork received writes made after it was created
	for w := 0; w < 4; w++ {
		for i := 0; i < 50; i++ {
			require.Equal(t, "x", f.get("main", fmt.Sprintf("w%d-%d", w, i)))
		}
	}
	for i := 0; i < 10; i++ {
		vers := f.versions(fmt.Sprintf("fork-%d", i))
		tail := vers[len(vers)-1]
		changed, err := f.m.VersionHasChangeSet(tail)
		require.NoError(t, err)
		require.False(t, changed)
	}
}
