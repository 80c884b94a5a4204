package mapx

import (
	"github.com/ValentinKolb/vsdb/lib/common"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/keys"
)

// KeyHint receives the length of every written caller key.
// *alloc.Allocator implements it.
type KeyHint interface {
	ObserveKeyLen(n int) error
}

// Raw is a non-versioned ordered map
type Raw struct {
	engine db.Engine
	prefix keys.Prefix
	hint   KeyHint
}

// NewRaw returns the basic map stored under prefix p. hint may be nil.
func NewRaw(engine db.Engine, p keys.Prefix, hint KeyHint) *Raw {
	return &Raw{engine: engine, prefix: p, hint: hint}
}

// Prefix returns the collection's prefix.
func (r *Raw) Prefix() keys.Prefix {
	return r.prefix
}

func (r *Raw) observe(key []byte) error {
	if r.hint == nil {
		return nil
	}
	return r.hint.ObserveKeyLen(len(key))
}

// Insert sets key to value. An empty value removes the key.
func (r *Raw) Insert(key, value []byte) error {
	if len(value) == 0 {
		return r.Remove(key)
	}
	if err := r.observe(key); err != nil {
		return err
	}
	pk := keys.MakeTaggedKey(r.prefix, keys.TagBasic, key)
	return common.EngineErr(r.engine.Insert(pk.Bytes(), value), "insert into collection %d", r.prefix)
}

// Remove deletes key. Removing a missing key is not an error.
func (r *Raw) Remove(key []byte) error {
	pk := keys.MakeTaggedKey(r.prefix, keys.TagBasic, key)
	return common.EngineErr(r.engine.Remove(pk.Bytes()), "remove from collection %d", r.prefix)
}

// Get returns the value of key.
func (r *Raw) Get(key []byte) ([]byte, bool, error) {
	pk := keys.MakeTaggedKey(r.prefix, keys.TagBasic, key)
	value, found, err := r.engine.Get(pk.Bytes())
	if err != nil {
		return nil, false, common.EngineErr(err, "get from collection %d", r.prefix)
	}
	return value, found, nil
}

// ContainsKey reports whether key is set.
func (r *Raw) ContainsKey(key []byte) (bool, error) {
	_, found, err := r.Get(key)
	return found, err
}

// WriteBatch applies all ops atomically. Keys and values are caller keys,
// an insert with an empty value is a removal.
func (r *Raw) WriteBatch(ops []db.Op) error {
	phys := make([]db.Op, 0, len(ops))
	for _, op := range ops {
		key := keys.MakeTagged(r.prefix, keys.TagBasic, op.Key)
		if op.Kind == db.OpInsert && len(op.Value) > 0 {
			if err := r.observe(op.Key); err != nil {
				return err
			}
			phys = append(phys, db.InsertOp(key, op.Value))
		} else {
			phys = append(phys, db.RemoveOp(key))
		}
	}
	if len(phys) == 0 {
		return nil
	}
	return common.EngineErr(r.engine.WriteBatch(phys), "batch of %d ops on collection %d", len(phys), r.prefix)
}

// Iter returns an iterator over all entries in key order.
func (r *Raw) Iter() (db.Iterator, error) {
	return r.Range(db.IterOptions{})
}

// Range returns an iterator over the caller keys in [opts.Lower, opts.Upper).
func (r *Raw) Range(opts db.IterOptions) (db.Iterator, error) {
	lower, upper := keys.BasicRange(r.prefix)
	if opts.Lower != nil {
		lower = keys.MakeTagged(r.prefix, keys.TagBasic, opts.Lower)
	}
	if opts.Upper != nil {
		upper = keys.MakeTagged(r.prefix, keys.TagBasic, opts.Upper)
	}
	it, err := r.engine.NewIterator(db.IterOptions{Lower: lower, Upper: upper, Reverse: opts.Reverse})
	if err != nil {
		return nil, common.EngineErr(err, "iterate collection %d", r.prefix)
	}
	return &rawIter{Iterator: it, skip: keys.PrefixSize + 1}, nil
}

// Len counts the entries.
func (r *Raw) Len() (int, error) {
	it, err := r.Iter()
	if err != nil {
		return 0, err
	}
	return count(it)
}

// IsEmpty reports whether the map has no entries.
func (r *Raw) IsEmpty() (bool, error) {
	it, err := r.Iter()
	if err != nil {
		return false, err
	}
	empty := !it.Valid()
	return empty, it.Close()
}

// Clear removes every entry in one batch.
func (r *Raw) Clear() error {
	lower, upper := keys.BasicRange(r.prefix)
	return clearRange(r.engine, lower, upper, r.prefix)
}

// rawIter strips the physical prefix from the engine's keys
type rawIter struct {
	db.Iterator
	skip int
}

func (it *rawIter) Key() []byte {
	return it.Iterator.Key()[it.skip:]
}

func count(it db.Iterator) (int, error) {
	n := 0
	for ; it.Valid(); it.Next() {
		n++
	}
	return n, it.Close()
}

// clearRange removes every engine key in [lower, upper) in one batch
func clearRange(engine db.Engine, lower, upper []byte, p keys.Prefix) error {
	it, err := engine.NewIterator(db.IterOptions{Lower: lower, Upper: upper})
	if err != nil {
		return common.EngineErr(err, "clear collection %d", p)
	}
	var b db.Batch
	for ; it.Valid(); it.Next() {
		b.Remove(append([]byte(nil), it.Key()...))
	}
	if err := it.Close(); err != nil {
		return common.EngineErr(err, "clear collection %d", p)
	}
	if b.Len() == 0 {
		return nil
	}
	return common.EngineErr(engine.WriteBatch(b.Ops), "clear collection %d", p)
}
