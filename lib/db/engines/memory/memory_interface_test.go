package memory

import (
	"testing"

	"github.com/ValentinKolb/vsdb/lib/db"
	dbtesting "github.com/ValentinKolb/vsdb/lib/db/testing"
	"github.com/stretchr/testify/require"
)

func Test(t *testing.T) {
	dbtesting.RunEngineTests(t, "MemoryEngine", func() db.Engine {
		return NewMemoryEngine()
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunEngineBenchmarks(b, "MemoryEngine", func() db.Engine {
		return NewMemoryEngine()
	})
}

func TestNotDurable(t *testing.T) {
	e := NewMemoryEngine()
	defer e.Close()
	require.False(t, e.SupportsFeature(db.FeatureDurable))
}

func TestIteratorSnapshot(t *testing.T) {
	e := NewMemoryEngine()
	defer e.Close()

	for i := 0; i < 3*iterChunk; i++ {
		require.NoError(t, e.Insert([]byte{byte(i >> 8), byte(i)}, []byte{1}))
	}

	iter, err := e.NewIterator(db.IterOptions{})
	require.NoError(t, err)

	// writes after the iterator was created are not visible to it
	require.NoError(t, e.Insert([]byte{0xff, 0xff}, []byte{1}))
	require.NoError(t, e.Remove([]byte{0, 0}))

	n := 0
	for ; iter.Valid(); iter.Next() {
		if n == 0 {
			require.Equal(t, []byte{0, 0}, iter.Key())
		}
		n++
	}
	require.NoError(t, iter.Close())
	require.Equal(t, 3*iterChunk, n)
}

func TestReverseChunks(t *testing.T) {
	e := NewMemoryEngine()
	defer e.Close()

	const n = 2*iterChunk + 7
	for i := 0; i < n; i++ {
		require.NoError(t, e.Insert([]byte{byte(i >> 8), byte(i)}, nil))
	}

	iter, err := e.NewIterator(db.IterOptions{Upper: []byte{0x01, 0x00}, Reverse: true})
	require.NoError(t, err)
	defer iter.Close()

	var prev []byte
	count := 0
	for ; iter.Valid(); iter.Next() {
		if prev != nil {
			require.Equal(t, -1, compare(iter.Key(), prev))
		}
		prev = append(prev[:0], iter.Key()...)
		count++
	}
	// keys 0x0000 .. 0x00ff
	require.Equal(t, 256, count)
}

func TestInfoTracksValueSizes(t *testing.T) {
	e := NewMemoryEngine()
	defer e.Close()

	require.NoError(t, e.Insert([]byte("a"), make([]byte, 10)))
	require.NoError(t, e.Insert([]byte("b"), make([]byte, 30)))
	require.NoError(t, e.Insert([]byte("a"), make([]byte, 20)))
	require.NoError(t, e.Remove([]byte("b")))

	info := e.GetInfo()
	require.Equal(t, db.ImplMemory, info.DbType)
	require.Equal(t, 20, info.SizeBytes)
}

func compare(a, b []byte) int {
	switch {
	case string(a) < string(b):
		return -1
	case string(a) > string(b):
		return 1
	}
	return 0
}
