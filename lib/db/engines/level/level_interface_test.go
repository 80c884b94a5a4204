package level

import (
	"testing"

	"github.com/ValentinKolb/vsdb/lib/db"
	dbtesting "github.com/ValentinKolb/vsdb/lib/db/testing"
	"github.com/stretchr/testify/require"
)

func inMemory(t testing.TB) func() db.Engine {
	return func() db.Engine {
		e, err := NewLevelEngine(Config{InMemory: true})
		require.NoError(t, err)
		return e
	}
}

func Test(t *testing.T) {
	dbtesting.RunEngineTests(t, "LevelEngine", inMemory(t))
}

func TestRestart(t *testing.T) {
	dir := t.TempDir()
	dbtesting.RunEngineRestartTests(t, "LevelEngine", func() db.Engine {
		e, err := NewLevelEngine(Config{Dir: dir})
		require.NoError(t, err)
		return e
	})
}

func TestFlushNotAdvertised(t *testing.T) {
	e, err := NewLevelEngine(Config{InMemory: true})
	require.NoError(t, err)
	defer e.Close()

	require.False(t, e.SupportsFeature(db.FeatureFlush))
	require.NoError(t, e.Flush())
}

func Benchmark(b *testing.B) {
	dbtesting.RunEngineBenchmarks(b, "LevelEngine", inMemory(b))
}
