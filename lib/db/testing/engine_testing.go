package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/stretchr/testify/require"
)

// EngineFactory is a function that creates a new, empty engine instance
type EngineFactory func() db.Engine

// ReopenFactory opens the engine stored at a fixed location.
// Calling it twice (with a Close in between) must return the same data.
type ReopenFactory func() db.Engine

// RunEngineTests runs the conformance suite for an Engine implementation.
func RunEngineTests(t *testing.T, name string, factory EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Get", func(t *testing.T) {
			testInsertGet(t, factory())
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory())
		})

		t.Run("EmptyValue", func(t *testing.T) {
			testEmptyValue(t, factory())
		})

		t.Run("OrderedIteration", func(t *testing.T) {
			testOrderedIteration(t, factory())
		})

		t.Run("ReverseIteration", func(t *testing.T) {
			testReverseIteration(t, factory())
		})

		t.Run("IterationBounds", func(t *testing.T) {
			testIterationBounds(t, factory())
		})

		t.Run("LargeScan", func(t *testing.T) {
			testLargeScan(t, factory())
		})

		t.Run("WriteBatch", func(t *testing.T) {
			testWriteBatch(t, factory())
		})

		t.Run("PersistLoadMeta", func(t *testing.T) {
			testPersistLoadMeta(t, factory())
		})

		t.Run("ConcurrentWrites", func(t *testing.T) {
			testConcurrentWrites(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, factory())
		})
	})
}

// RunEngineRestartTests checks that data and metadata survive a close/reopen cycle.
func RunEngineRestartTests(t *testing.T, name string, reopen ReopenFactory) {
	t.Run(name+"/Restart", func(t *testing.T) {
		engine := reopen()
		require.True(t, engine.SupportsFeature(db.FeatureDurable))

		require.NoError(t, engine.Insert([]byte("k1"), []byte("v1")))
		require.NoError(t, engine.WriteBatch([]db.Op{
			db.InsertOp([]byte("k2"), []byte("v2")),
			db.RemoveOp([]byte("k1")),
		}))
		require.NoError(t, engine.Persist([]byte("meta"), []byte("ceiling")))
		require.NoError(t, engine.Flush())
		require.NoError(t, engine.Close())

		engine = reopen()
		defer engine.Close()

		_, found, err := engine.Get([]byte("k1"))
		require.NoError(t, err)
		require.False(t, found)

		value, found, err := engine.Get([]byte("k2"))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte("v2"), value)

		meta, found, err := engine.LoadMeta([]byte("meta"))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte("ceiling"), meta)
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the engine supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, engine db.Engine, feature db.Feature) {
	if !engine.SupportsFeature(feature) {
		t.Skipf("feature %s not supported", feature)
	}
}

// collect drains an iterator into a list of keys and a list of values
func collect(t testing.TB, engine db.Engine, opts db.IterOptions) ([]string, []string) {
	iter, err := engine.NewIterator(opts)
	require.NoError(t, err)

	var keys, values []string
	for ; iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()))
		values = append(values, string(iter.Value()))
	}
	require.NoError(t, iter.Close())
	return keys, values
}

func fill(t testing.TB, engine db.Engine, keys ...string) {
	for _, k := range keys {
		require.NoError(t, engine.Insert([]byte(k), []byte("v-"+k)))
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertGet(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureInsert|db.FeatureGet)

	key := []byte("test-key")
	require.NoError(t, engine.Insert(key, []byte("value-1")))

	value, found, err := engine.Get(key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("value-1"), value)

	require.NoError(t, engine.Insert(key, []byte("value-2")))
	value, found, err = engine.Get(key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("value-2"), value)

	_, found, err = engine.Get([]byte("nonexistent-key"))
	require.NoError(t, err)
	require.False(t, found)

	// Get must return a copy
	value[0] = 'X'
	again, _, err := engine.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("value-2"), again)

	// the engine must not retain the caller's buffers
	buf := []byte("reused-key")
	val := []byte("reused-value")
	require.NoError(t, engine.Insert(buf, val))
	copy(buf, "XXXXXXXXXX")
	copy(val, "YYYYYYYYYYYY")
	value, found, err = engine.Get([]byte("reused-key"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("reused-value"), value)
}

func testRemove(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureInsert|db.FeatureRemove|db.FeatureGet)

	key := []byte("to-remove")
	require.NoError(t, engine.Insert(key, []byte("x")))
	require.NoError(t, engine.Remove(key))

	_, found, err := engine.Get(key)
	require.NoError(t, err)
	require.False(t, found)

	// removing a missing key is fine
	require.NoError(t, engine.Remove([]byte("never-existed")))
}

func testEmptyValue(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureInsert|db.FeatureGet)

	// the engine stores empty values as present, the tombstone semantics
	// live one layer above
	require.NoError(t, engine.Insert([]byte("empty"), []byte{}))
	value, found, err := engine.Get([]byte("empty"))
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, value, 0)
}

func testOrderedIteration(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureIterate)

	fill(t, engine, "b", "a", "c", "ab", "a\x00", "\x00", "\xff")
	keys, values := collect(t, engine, db.IterOptions{})
	require.Equal(t, []string{"\x00", "a", "a\x00", "ab", "b", "c", "\xff"}, keys)
	require.Equal(t, "v-a", values[1])
}

func testReverseIteration(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureReverseIter)

	fill(t, engine, "b", "a", "c", "ab")
	keys, _ := collect(t, engine, db.IterOptions{Reverse: true})
	require.Equal(t, []string{"c", "b", "ab", "a"}, keys)

	keys, _ = collect(t, engine, db.IterOptions{Lower: []byte("ab"), Upper: []byte("c"), Reverse: true})
	require.Equal(t, []string{"b", "ab"}, keys)
}

func testIterationBounds(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureIterate)

	fill(t, engine, "p1/a", "p1/b", "p2/a", "p2/b", "p3/a")

	keys, _ := collect(t, engine, db.IterOptions{Lower: []byte("p2/"), Upper: []byte("p20")})
	require.Equal(t, []string{"p2/a", "p2/b"}, keys)

	// lower is inclusive, upper is exclusive
	keys, _ = collect(t, engine, db.IterOptions{Lower: []byte("p1/b"), Upper: []byte("p2/b")})
	require.Equal(t, []string{"p1/b", "p2/a"}, keys)

	// empty range
	keys, _ = collect(t, engine, db.IterOptions{Lower: []byte("x"), Upper: []byte("y")})
	require.Empty(t, keys)

	// open lower bound
	keys, _ = collect(t, engine, db.IterOptions{Upper: []byte("p2")})
	require.Equal(t, []string{"p1/a", "p1/b"}, keys)

	// open upper bound
	keys, _ = collect(t, engine, db.IterOptions{Lower: []byte("p3")})
	require.Equal(t, []string{"p3/a"}, keys)
}

func testLargeScan(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureIterate|db.FeatureBatch)

	const n = 1000
	ops := make([]db.Op, 0, n)
	for i := 0; i < n; i++ {
		ops = append(ops, db.InsertOp([]byte(fmt.Sprintf("key-%05d", i)), []byte(fmt.Sprintf("%d", i))))
	}
	require.NoError(t, engine.WriteBatch(ops))

	keys, _ := collect(t, engine, db.IterOptions{})
	require.Len(t, keys, n)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}

	// iteration stays stable while writers modify the range
	iter, err := engine.NewIterator(db.IterOptions{Lower: []byte("key-00500")})
	require.NoError(t, err)
	seen := 0
	for ; iter.Valid(); iter.Next() {
		if seen == 0 {
			require.NoError(t, engine.Insert([]byte("key-00999x"), []byte("late")))
		}
		seen++
	}
	require.NoError(t, iter.Close())
	require.GreaterOrEqual(t, seen, 500)
}

func testWriteBatch(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureBatch|db.FeatureGet)

	fill(t, engine, "old")

	var batch db.Batch
	batch.Insert([]byte("a"), []byte("1"))
	batch.Insert([]byte("b"), []byte("2"))
	batch.Remove([]byte("old"))
	batch.Insert([]byte("a"), []byte("3")) // later ops win
	require.Equal(t, 4, batch.Len())
	require.NoError(t, engine.WriteBatch(batch.Ops))

	value, found, err := engine.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("3"), value)

	_, found, err = engine.Get([]byte("old"))
	require.NoError(t, err)
	require.False(t, found)

	// empty batches are fine
	require.NoError(t, engine.WriteBatch(nil))

	// batches are visible as a whole to concurrent readers
	var wg sync.WaitGroup
	stop := make(chan struct{})
	torn := make(chan string, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			// y is read first, so a later read of x must be at least as new
			y, _, _ := engine.Get([]byte("pair-y"))
			x, _, _ := engine.Get([]byte("pair-x"))
			if len(x) > 0 && len(y) > 0 && bytes.Compare(y, x) > 0 {
				select {
				case torn <- fmt.Sprintf("x=%s y=%s", x, y):
				default:
				}
			}
		}
	}()
	for i := 0; i < 200; i++ {
		v := []byte(fmt.Sprintf("%05d", i))
		require.NoError(t, engine.WriteBatch([]db.Op{db.InsertOp([]byte("pair-x"), v), db.InsertOp([]byte("pair-y"), v)}))
	}
	close(stop)
	wg.Wait()
	select {
	case msg := <-torn:
		t.Fatalf("reader observed a torn batch: %s", msg)
	default:
	}
}

func testPersistLoadMeta(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeaturePersist)

	_, found, err := engine.LoadMeta([]byte("ceiling"))
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, engine.Persist([]byte("ceiling"), []byte{0, 0, 0, 0, 0, 0, 0x10, 0}))
	value, found, err := engine.LoadMeta([]byte("ceiling"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0x10, 0}, value)
}

func testConcurrentWrites(t *testing.T, engine db.Engine) {
	defer engine.Close()

	requireFeature(t, engine, db.FeatureInsert|db.FeatureGet)

	const workers, perWorker = 8, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := []byte(fmt.Sprintf("w%d-%d", w, i))
				if err := engine.Insert(key, key); err != nil {
					t.Errorf("insert failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	keys, _ := collect(t, engine, db.IterOptions{})
	require.Len(t, keys, workers*perWorker)
}

func testInfo(t *testing.T, engine db.Engine) {
	defer engine.Close()

	fill(t, engine, "a", "b")
	info := engine.GetInfo()
	require.NotEmpty(t, info.DbType)
	require.NotEmpty(t, info.SupportedFeatures)
	for _, f := range info.SupportedFeatures {
		require.True(t, engine.SupportsFeature(f), "feature %s", f)
	}
}

func testClosed(t *testing.T, engine db.Engine) {
	require.NoError(t, engine.Close())
	// a second close is a no-op
	require.NoError(t, engine.Close())

	require.ErrorIs(t, engine.Insert([]byte("a"), []byte("b")), db.ErrClosed)
	_, _, err := engine.Get([]byte("a"))
	require.ErrorIs(t, err, db.ErrClosed)
	_, err = engine.NewIterator(db.IterOptions{})
	require.ErrorIs(t, err, db.ErrClosed)
}
