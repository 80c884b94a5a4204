package mapx

import (
	"github.com/ValentinKolb/vsdb/lib/codec"
	"github.com/ValentinKolb/vsdb/lib/db"
)

// RawMap is the byte level interface shared by Raw and Versioned
type RawMap interface {
	Insert(key, value []byte) error
	Remove(key []byte) error
	Get(key []byte) ([]byte, bool, error)
	ContainsKey(key []byte) (bool, error)
	Range(opts db.IterOptions) (db.Iterator, error)
	Len() (int, error)
}

var (
	_ RawMap = (*Raw)(nil)
	_ RawMap = (*Versioned)(nil)
)

// Map is a typed view of a RawMap. Values that encode to zero bytes are
// stored as removals, so use a codec that never produces them (every codec
// but Raw does).
type Map[K, V any] struct {
	raw    RawMap
	keys   codec.KeyCodec[K]
	values codec.Codec
}

// NewMap wraps raw with a key and a value codec.
func NewMap[K, V any](raw RawMap, keys codec.KeyCodec[K], values codec.Codec) *Map[K, V] {
	return &Map[K, V]{raw: raw, keys: keys, values: values}
}

// Raw returns the wrapped map.
func (m *Map[K, V]) Raw() RawMap {
	return m.raw
}

// Insert encodes and stores v under k.
func (m *Map[K, V]) Insert(k K, v V) error {
	b, err := m.values.Encode(v)
	if err != nil {
		return err
	}
	return m.raw.Insert(m.keys.EncodeKey(k), b)
}

// Remove deletes k.
func (m *Map[K, V]) Remove(k K) error {
	return m.raw.Remove(m.keys.EncodeKey(k))
}

// Get returns the decoded value of k.
func (m *Map[K, V]) Get(k K) (V, bool, error) {
	var v V
	b, found, err := m.raw.Get(m.keys.EncodeKey(k))
	if err != nil || !found {
		return v, false, err
	}
	if err := m.values.Decode(b, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

// ContainsKey reports whether k is set.
func (m *Map[K, V]) ContainsKey(k K) (bool, error) {
	return m.raw.ContainsKey(m.keys.EncodeKey(k))
}

// Len counts the entries.
func (m *Map[K, V]) Len() (int, error) {
	return m.raw.Len()
}

// ForEach calls fn for every entry in key order until fn returns an error.
func (m *Map[K, V]) ForEach(fn func(k K, v V) error) error {
	return m.RangeFunc(nil, nil, false, fn)
}

// RangeFunc calls fn for the entries with lower <= key < upper. A nil
// bound is open on that side.
func (m *Map[K, V]) RangeFunc(lower, upper *K, reverse bool, fn func(k K, v V) error) error {
	opts := db.IterOptions{Reverse: reverse}
	if lower != nil {
		opts.Lower = m.keys.EncodeKey(*lower)
	}
	if upper != nil {
		opts.Upper = m.keys.EncodeKey(*upper)
	}
	it, err := m.raw.Range(opts)
	if err != nil {
		return err
	}

	for ; it.Valid(); it.Next() {
		if err := m.visit(it, fn); err != nil {
			_ = it.Close()
			return err
		}
	}
	return it.Close()
}

func (m *Map[K, V]) visit(it db.Iterator, fn func(k K, v V) error) error {
	k, err := m.keys.DecodeKey(it.Key())
	if err != nil {
		return err
	}
	var v V
	if err := m.values.Decode(it.Value(), &v); err != nil {
		return err
	}
	return fn(k, v)
}
