package vs

import (
	"bytes"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/vsdb/lib/alloc"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/db/engines/memory"
	"github.com/ValentinKolb/vsdb/lib/keys"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

const testPrefix = keys.Prefix(5000)

// flakyEngine fails WriteBatch while failBatch is set
type flakyEngine struct {
	db.Engine
	failBatch atomic.Bool
}

func (f *flakyEngine) WriteBatch(ops []db.Op) error {
	if f.failBatch.Load() {
		return errors.New("injected batch failure")
	}
	return f.Engine.WriteBatch(ops)
}

type fixture struct {
	t      *testing.T
	engine *flakyEngine
	m      *Manager
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{t: t, engine: &flakyEngine{Engine: memory.NewMemoryEngine()}}
	f.reopen()
	return f
}

// reopen builds a fresh allocator and manager over the same engine
func (f *fixture) reopen() {
	a, err := alloc.New(f.engine, alloc.Options{BatchSize: 16})
	require.NoError(f.t, err)
	f.m, err = Open(f.engine, a)
	require.NoError(f.t, err)
}

func (f *fixture) write(branch, key, value string) error {
	return f.m.Write(branch, func(v VersionID, b *db.Batch) error {
		b.Insert(dataKey(testPrefix, []byte(key), v), []byte(value))
		RecordWrite(b, v, testPrefix, []byte(key))
		return nil
	})
}

func (f *fixture) put(branch, key, value string) {
	require.NoError(f.t, f.write(branch, key, value))
}

func (f *fixture) del(branch, key string) {
	f.put(branch, key, "")
}

// lookup resolves key the way the versioned map does
func (f *fixture) lookup(branch, version, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := f.m.Read(branch, version, func(l *Lineage) error {
		lower, upper := keys.VersionedKeyRange(testPrefix, []byte(key))
		iter, err := f.engine.NewIterator(db.IterOptions{Lower: lower, Upper: upper})
		if err != nil {
			return err
		}
		defer iter.Close()
		best := -1
		for ; iter.Valid(); iter.Next() {
			_, _, v, err := keys.DecodeVersionedKey(iter.Key())
			if err != nil {
				return err
			}
			if pos, ok := l.Position(VersionID(v)); ok && pos > best {
				best = pos
				value = string(iter.Value())
			}
		}
		found = best >= 0 && value != ""
		return nil
	})
	return value, found, err
}

func (f *fixture) get(branch, key string) string {
	v, found, err := f.lookup(branch, "", key)
	require.NoError(f.t, err)
	if !found {
		return "<absent>"
	}
	return v
}

func (f *fixture) getAt(branch, version, key string) string {
	v, found, err := f.lookup(branch, version, key)
	require.NoError(f.t, err)
	if !found {
		return "<absent>"
	}
	return v
}

func (f *fixture) versions(branch string) []string {
	vs, err := f.m.VersionList(branch)
	require.NoError(f.t, err)
	return vs
}

// entries counts the raw versioned entries of key in the engine
func (f *fixture) entries(key string) int {
	lower, upper := keys.VersionedKeyRange(testPrefix, []byte(key))
	iter, err := f.engine.NewIterator(db.IterOptions{Lower: lower, Upper: upper})
	require.NoError(f.t, err)
	defer iter.Close()
	n := 0
	for ; iter.Valid(); iter.Next() {
		n++
	}
	return n
}

func isAuto(name string) bool {
	return bytes.HasPrefix([]byte(name), []byte("auto-"))
}
