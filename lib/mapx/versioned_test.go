package mapx

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/vsdb/lib/codec"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/vs"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestEndToEndScenario(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e *env) {
		m := e.versioned()
		fork := m.OnBranch("fork")

		require.NoError(t, m.VersionCreate("genesis"))
		require.NoError(t, m.Insert([]byte("acct1"), []byte("100")))
		require.NoError(t, m.VersionCreate("tx1"))
		require.NoError(t, m.Insert([]byte("acct1"), []byte("90")))
		require.NoError(t, m.BranchCreate("fork", false))
		require.NoError(t, fork.Insert([]byte("acct1"), []byte("80")))

		require.Equal(t, "90", get(t, m, "acct1"))
		require.Equal(t, "80", get(t, fork, "acct1"))

		v, found, err := m.GetByBranchVersion([]byte("acct1"), vs.DefaultBranch, "genesis")
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "100", string(v))

		require.ErrorIs(t, fork.BranchMergeTo(vs.DefaultBranch, false), vs.ErrDiverged)
		require.Equal(t, "90", get(t, m, "acct1"))
		require.NoError(t, fork.BranchMergeTo(vs.DefaultBranch, true))
		require.Equal(t, "80", get(t, m, "acct1"))
		require.Equal(t, "80", get(t, fork, "acct1"))
	})
}

func TestTombstoneEquivalence(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e *env) {
		removed, emptied := e.versioned(), e.versioned()
		require.NoError(t, e.mgr.VersionCreate("", "v1"))
		for _, m := range []*Versioned{removed, emptied} {
			require.NoError(t, m.Insert([]byte("a"), []byte("1")))
			require.NoError(t, m.Insert([]byte("b"), []byte("2")))
		}
		require.NoError(t, e.mgr.VersionCreate("", "v2"))
		require.NoError(t, removed.Remove([]byte("a")))
		require.NoError(t, emptied.Insert([]byte("a"), nil))

		for _, m := range []*Versioned{removed, emptied} {
			require.Equal(t, "<absent>", get(t, m, "a"))
			ok, err := m.ContainsKey([]byte("a"))
			require.NoError(t, err)
			require.False(t, ok)
			require.Equal(t, []string{"b=2"}, e.dump(m.Iter()))
			n, err := m.Len()
			require.NoError(t, err)
			require.Equal(t, 1, n)

			// the older version still sees the value
			ok, err = m.ContainsKeyByBranchVersion([]byte("a"), "", "v1")
			require.NoError(t, err)
			require.True(t, ok)
		}

		// a key that was never written and a removed key look the same
		require.NoError(t, removed.Remove([]byte("never")))
		require.Equal(t, []string{"b=2"}, e.dump(removed.Iter()))
	})
}

func TestVersionedIteration(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e *env) {
		m := e.versioned()
		require.NoError(t, m.VersionCreate("v1"))
		// keys sharing bytes and containing the escape byte
		for _, k := range []string{"a", "a\x00", "a\x00b", "ab", "b"} {
			require.NoError(t, m.Insert([]byte(k), []byte("1")))
		}
		require.NoError(t, m.VersionCreate("v2"))
		require.NoError(t, m.Insert([]byte("ab"), []byte("2")))
		require.NoError(t, m.Remove([]byte("a\x00")))
		require.NoError(t, m.Insert([]byte("c"), []byte("2")))

		require.Equal(t, []string{"a=1", "a\x00b=1", "ab=2", "b=1", "c=2"}, e.dump(m.Iter()))
		require.Equal(t, []string{"c=2", "b=1", "ab=2", "a\x00b=1", "a=1"},
			e.dump(m.Range(db.IterOptions{Reverse: true})))
		require.Equal(t, []string{"a=1", "a\x00=1", "a\x00b=1", "ab=1", "b=1"},
			e.dump(m.IterByBranchVersion("", "v1")))

		// [a\x00, b) on the head
		require.Equal(t, []string{"a\x00b=1", "ab=2"},
			e.dump(m.Range(db.IterOptions{Lower: []byte("a\x00"), Upper: []byte("b")})))
		require.Equal(t, []string{"ab=2", "a\x00b=1"},
			e.dump(m.Range(db.IterOptions{Lower: []byte("a\x00"), Upper: []byte("b"), Reverse: true})))

		n, err := m.LenByBranchVersion("", "v1")
		require.NoError(t, err)
		require.Equal(t, 5, n)
	})
}

func TestGetGEAndLE(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e *env) {
		m := e.versioned()
		require.NoError(t, m.VersionCreate("v1"))
		for _, k := range []string{"b", "d", "f"} {
			require.NoError(t, m.Insert([]byte(k), []byte(k+k)))
		}
		require.NoError(t, m.Remove([]byte("d")))

		k, v, found, err := m.GetGE([]byte("c"))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "f", string(k))
		require.Equal(t, "ff", string(v))

		k, _, found, err = m.GetGE([]byte("b"))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "b", string(k))

		k, _, found, err = m.GetLE([]byte("e"))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "b", string(k))

		k, _, found, err = m.GetLE([]byte("f"))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "f", string(k))

		_, _, found, err = m.GetGE([]byte("g"))
		require.NoError(t, err)
		require.False(t, found)
		_, _, found, err = m.GetLE([]byte("a"))
		require.NoError(t, err)
		require.False(t, found)
	})
}

func TestBranchIsolation(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e *env) {
		m := e.versioned()
		require.NoError(t, m.VersionCreate("v1"))
		require.NoError(t, m.Insert([]byte("shared"), []byte("s")))
		require.NoError(t, m.BranchCreate("dev", false))

		dev := m.OnBranch("dev")
		require.NoError(t, dev.Insert([]byte("dev-only"), []byte("d")))
		require.NoError(t, dev.Insert([]byte("shared"), []byte("changed")))
		require.NoError(t, m.Insert([]byte("main-only"), []byte("m")))

		require.Equal(t, []string{"main-only=m", "shared=s"}, e.dump(m.Iter()))
		require.Equal(t, []string{"dev-only=d", "shared=changed"}, e.dump(dev.Iter()))
		require.Equal(t, []string{"dev-only=d", "shared=changed"}, e.dump(m.IterByBranch("dev")))

		_, _, err := m.GetByBranch([]byte("k"), "nope")
		require.ErrorIs(t, err, vs.ErrNotFound)
		_, err = m.IterByBranch("nope")
		require.ErrorIs(t, err, vs.ErrNotFound)
	})
}

func TestIteratorBlocksExclusive(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e *env) {
		m := e.versioned()
		require.NoError(t, m.VersionCreate("v1"))
		require.NoError(t, m.Insert([]byte("k"), []byte("v")))

		it, err := m.Iter()
		require.NoError(t, err)
		_, err = e.mgr.Exclusive()
		require.ErrorIs(t, err, vs.ErrBusy)

		require.NoError(t, it.Close())
		require.NoError(t, it.Close())
		g, err := e.mgr.Exclusive()
		require.NoError(t, err)
		g.Release()
	})
}

func TestVersionedWriteBatch(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e *env) {
		m := e.versioned()
		require.ErrorIs(t, m.WriteBatch([]db.Op{db.InsertOp([]byte("a"), []byte("1"))}), vs.ErrNotFound)

		require.NoError(t, m.VersionCreate("v1"))
		require.NoError(t, m.WriteBatch([]db.Op{
			db.InsertOp([]byte("a"), []byte("1")),
			db.InsertOp([]byte("b"), []byte("2")),
			db.RemoveOp([]byte("c")),
		}))
		require.Equal(t, []string{"a=1", "b=2"}, e.dump(m.Iter()))

		changed, err := e.mgr.VersionHasChangeSet("v1")
		require.NoError(t, err)
		require.True(t, changed)
	})
}

func TestDestroyAndPrune(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e *env) {
		m, other := e.versioned(), e.versioned()
		for i := 0; i < 15; i++ {
			require.NoError(t, m.VersionCreate(fmt.Sprintf("v%d", i)))
			require.NoError(t, m.Insert([]byte("k"), []byte(fmt.Sprintf("%d", i))))
			require.NoError(t, other.Insert([]byte(fmt.Sprintf("k%02d", i)), []byte("x")))
		}

		require.NoError(t, e.mgr.Prune(vs.DefaultPruneOptions()))
		require.Equal(t, "14", get(t, m, "k"))
		n, err := other.Len()
		require.NoError(t, err)
		require.Equal(t, 15, n)

		require.NoError(t, other.Destroy())
		empty, err := other.IsEmpty()
		require.NoError(t, err)
		require.True(t, empty)
		require.Equal(t, "14", get(t, m, "k"))
	})
}

func TestConcurrentVersionedWrites(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e *env) {
		m := e.versioned()
		require.NoError(t, m.VersionCreate("v1"))

		var g errgroup.Group
		for w := 0; w < 8; w++ {
			w := w
			g.Go(func() error {
				for i := 0; i < 25; i++ {
					if err := m.Insert([]byte(fmt.Sprintf("%d-%02d", w, i)), []byte("v")); err != nil {
						return err
					}
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		n, err := m.Len()
		require.NoError(t, err)
		require.Equal(t, 200, n)
	})
}

func TestLookupDepthRecorded(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e *env) {
		m := e.versioned()
		for i := 0; i < 3; i++ {
			require.NoError(t, m.VersionCreate(fmt.Sprintf("v%d", i)))
			require.NoError(t, m.Insert([]byte("k"), []byte("v")))
		}
		before := LookupDepth().Count()
		_, _, err := m.Get([]byte("k"))
		require.NoError(t, err)
		require.Equal(t, before+1, LookupDepth().Count())
		require.GreaterOrEqual(t, LookupDepth().Max(), int64(3))
	})
}

type account struct {
	Owner   string `json:"owner"`
	Balance int64  `json:"balance"`
}

func TestTypedMap(t *testing.T) {
	forEachEngine(t, func(t *testing.T, e *env) {
		v := e.versioned()
		require.NoError(t, v.VersionCreate("v1"))
		for _, c := range []codec.Codec{codec.JSON(), codec.Msgpack(), codec.Gob()} {
			raw := e.raw()
			for _, inner := range []RawMap{raw, v} {
				m := NewMap[uint64, account](inner, codec.Uint64Key{}, c)
				require.NoError(t, m.Insert(300, account{"carol", 3}))
				require.NoError(t, m.Insert(2, account{"bob", 2}))
				require.NoError(t, m.Insert(1, account{"alice", 1}))

				got, found, err := m.Get(2)
				require.NoError(t, err)
				require.True(t, found)
				require.Equal(t, account{"bob", 2}, got)

				var order []uint64
				require.NoError(t, m.ForEach(func(k uint64, _ account) error {
					order = append(order, k)
					return nil
				}))
				require.Equal(t, []uint64{1, 2, 300}, order, c.Name())

				lower, upper := uint64(2), uint64(300)
				order = order[:0]
				require.NoError(t, m.RangeFunc(&lower, &upper, false, func(k uint64, _ account) error {
					order = append(order, k)
					return nil
				}))
				require.Equal(t, []uint64{2}, order)

				require.NoError(t, m.Remove(2))
				ok, err := m.ContainsKey(2)
				require.NoError(t, err)
				require.False(t, ok)
				n, err := m.Len()
				require.NoError(t, err)
				require.Equal(t, 2, n)
				require.NoError(t, m.Insert(2, account{"bob", 2}))
			}
		}
	})
}
