package mapx

import (
	"bytes"

	"github.com/ValentinKolb/vsdb/lib/common"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/keys"
	"github.com/ValentinKolb/vsdb/lib/vs"
)

// versionedIter merges the stored versions of each key into the entry
// visible in one lineage. All versions of a key are adjacent in the
// engine, so each step consumes one group of engine entries.
type versionedIter struct {
	it      db.Iterator
	lineage *vs.Lineage
	prefix  keys.Prefix
	release func()

	group  []byte
	key    []byte
	value  []byte
	valid  bool
	err    error
	closed bool
}

func (m *Versioned) newIter(l *vs.Lineage, lower, upper []byte, reverse bool) (*versionedIter, error) {
	it, err := m.engine.NewIterator(db.IterOptions{Lower: lower, Upper: upper, Reverse: reverse})
	if err != nil {
		return nil, common.EngineErr(err, "iterate collection %d", m.prefix)
	}
	vi := &versionedIter{it: it, lineage: l, prefix: m.prefix}
	vi.advance()
	return vi, nil
}

// advance moves to the next group with a visible, non-tombstone entry
func (vi *versionedIter) advance() {
	vi.valid = false
	for vi.err == nil && vi.it.Valid() {
		enc, err := keys.EncodedKeyFromVersioned(vi.it.Key())
		if err != nil {
			vi.err = common.Wrap(common.ErrInconsistent, err, "collection %d", vi.prefix)
			return
		}
		vi.group = append(vi.group[:0], enc...)

		best := -1
		var value []byte
		for ; vi.it.Valid(); vi.it.Next() {
			k := vi.it.Key()
			enc, err := keys.EncodedKeyFromVersioned(k)
			if err != nil {
				vi.err = common.Wrap(common.ErrInconsistent, err, "collection %d", vi.prefix)
				return
			}
			if !bytes.Equal(enc, vi.group) {
				break
			}
			id, _, _ := keys.DecodeUint64(k[len(k)-8:])
			if pos, ok := vi.lineage.Position(vs.VersionID(id)); ok && pos > best {
				best = pos
				value = bytes.Clone(vi.it.Value())
			}
		}

		if best >= 0 && len(value) > 0 {
			_, key, err := keys.DecodeBytesAscending(vi.group, nil)
			if err != nil {
				vi.err = common.Wrap(common.ErrInconsistent, err, "collection %d", vi.prefix)
				return
			}
			vi.key, vi.value, vi.valid = key, value, true
			return
		}
	}
	if vi.err == nil {
		vi.err = common.EngineErr(vi.it.Error(), "iterate collection %d", vi.prefix)
	}
}

func (vi *versionedIter) Valid() bool {
	return vi.valid
}

func (vi *versionedIter) Next() {
	if vi.valid {
		vi.advance()
	}
}

func (vi *versionedIter) Key() []byte {
	return vi.key
}

func (vi *versionedIter) Value() []byte {
	return vi.value
}

func (vi *versionedIter) Error() error {
	return vi.err
}

func (vi *versionedIter) Close() error {
	if vi.closed {
		return nil
	}
	vi.closed = true
	vi.valid = false
	err := vi.it.Close()
	if vi.release != nil {
		vi.release()
		vi.release = nil
	}
	if vi.err != nil {
		return vi.err
	}
	return common.EngineErr(err, "close iterator of collection %d", vi.prefix)
}
