package mapx

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/vsdb/lib/alloc"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/db/engines/level"
	"github.com/ValentinKolb/vsdb/lib/db/engines/memory"
	"github.com/ValentinKolb/vsdb/lib/db/engines/pebble"
	"github.com/ValentinKolb/vsdb/lib/vs"
	"github.com/stretchr/testify/require"
)

// engines every collection test runs against
var engines = []struct {
	name string
	open func() (db.Engine, error)
}{
	{"memory", func() (db.Engine, error) { return memory.NewMemoryEngine(), nil }},
	{"pebble", func() (db.Engine, error) { return pebble.NewPebbleEngine(pebble.Config{InMemory: true}) }},
	{"level", func() (db.Engine, error) { return level.NewLevelEngine(level.Config{InMemory: true}) }},
}

type env struct {
	t      *testing.T
	engine db.Engine
	alloc  *alloc.Allocator
	mgr    *vs.Manager
}

// forEachEngine runs fn as a subtest on a fresh store of every engine
func forEachEngine(t *testing.T, fn func(t *testing.T, e *env)) {
	for _, eng := range engines {
		t.Run(eng.name, func(t *testing.T) {
			engine, err := eng.open()
			require.NoError(t, err)
			t.Cleanup(func() { _ = engine.Close() })

			a, err := alloc.New(engine, alloc.Options{BatchSize: 64})
			require.NoError(t, err)
			mgr, err := vs.Open(engine, a)
			require.NoError(t, err)
			fn(t, &env{t: t, engine: engine, alloc: a, mgr: mgr})
		})
	}
}

func (e *env) raw() *Raw {
	p, err := e.alloc.Alloc()
	require.NoError(e.t, err)
	return NewRaw(e.engine, p, e.alloc)
}

func (e *env) versioned() *Versioned {
	p, err := e.alloc.Alloc()
	require.NoError(e.t, err)
	return NewVersioned(e.engine, e.mgr, p, e.alloc)
}

// dump drains it into "key=value" strings and closes it
func (e *env) dump(it db.Iterator, err error) []string {
	t := e.t
	require.NoError(t, err)
	var res []string
	for ; it.Valid(); it.Next() {
		res = append(res, fmt.Sprintf("%s=%s", it.Key(), it.Value()))
	}
	require.NoError(t, it.Close())
	return res
}

func get(t *testing.T, m interface {
	Get(key []byte) ([]byte, bool, error)
}, key string) string {
	v, found, err := m.Get([]byte(key))
	require.NoError(t, err)
	if !found {
		return "<absent>"
	}
	return string(v)
}
