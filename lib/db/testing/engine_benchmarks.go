package testing

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/vsdb/lib/db"
)

// RunEngineBenchmarks runs all benchmarks for an Engine implementation
func RunEngineBenchmarks(b *testing.B, name string, factory EngineFactory) {
	b.Run(name, func(b *testing.B) {

		b.Run("Insert", func(b *testing.B) {
			benchmarkInsert(b, factory())
		})

		b.Run("InsertExisting", func(b *testing.B) {
			benchmarkInsertExisting(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("WriteBatch", func(b *testing.B) {
			benchmarkWriteBatch(b, factory())
		})

		b.Run("Scan", func(b *testing.B) {
			benchmarkScan(b, factory())
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchKey(i int64) []byte {
	return []byte(fmt.Sprintf("bench-key-%012d", i))
}

// preload inserts n keys in batches of 1000
func preload(b *testing.B, engine db.Engine, n int) {
	var batch db.Batch
	for i := 0; i < n; i++ {
		batch.Insert(benchKey(int64(i)), []byte("value"))
		if batch.Len() == 1000 {
			if err := engine.WriteBatch(batch.Ops); err != nil {
				b.Fatal(err)
			}
			batch.Reset()
		}
	}
	if err := engine.WriteBatch(batch.Ops); err != nil {
		b.Fatal(err)
	}
}

func benchmarkInsert(b *testing.B, engine db.Engine) {
	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureInsert)

	var counter atomic.Int64
	value := []byte("value")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := engine.Insert(benchKey(counter.Add(1)), value); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func benchmarkInsertExisting(b *testing.B, engine db.Engine) {
	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureInsert)

	const keys = 1000
	preload(b, engine, keys)
	value := []byte("updated")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			if err := engine.Insert(benchKey(r.Int63n(keys)), value); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func benchmarkGet(b *testing.B, engine db.Engine) {
	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureGet)

	const keys = 10000
	preload(b, engine, keys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			if _, _, err := engine.Get(benchKey(r.Int63n(keys))); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func benchmarkWriteBatch(b *testing.B, engine db.Engine) {
	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureBatch)

	var batch db.Batch
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		batch.Reset()
		for j := 0; j < 16; j++ {
			batch.Insert(benchKey(int64(i*16+j)), []byte("value"))
		}
		if err := engine.WriteBatch(batch.Ops); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkScan(b *testing.B, engine db.Engine) {
	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureIterate)

	const keys = 10000
	preload(b, engine, keys)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		start := rand.Int63n(keys - 100)
		iter, err := engine.NewIterator(db.IterOptions{Lower: benchKey(start), Upper: benchKey(start + 100)})
		if err != nil {
			b.Fatal(err)
		}
		n := 0
		for ; iter.Valid(); iter.Next() {
			n++
		}
		if err := iter.Close(); err != nil {
			b.Fatal(err)
		}
		if n != 100 {
			b.Fatalf("expected 100 entries, got %d", n)
		}
	}
}

// 80% reads, 15% writes, 5% removes
func benchmarkMixedUsage(b *testing.B, engine db.Engine) {
	b.Cleanup(func() {
		engine.Close()
	})

	requireFeature(b, engine, db.FeatureGet|db.FeatureInsert|db.FeatureRemove)

	const keys = 10000
	preload(b, engine, keys)
	value := []byte("value")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := benchKey(r.Int63n(keys))
			var err error
			switch op := r.Intn(100); {
			case op < 80:
				_, _, err = engine.Get(key)
			case op < 95:
				err = engine.Insert(key, value)
			default:
				err = engine.Remove(key)
			}
			if err != nil {
				b.Error(err)
				return
			}
		}
	})
}
