package keys

import "bytes"

// InlineCap is the largest physical key kept without a heap allocation
const InlineCap = 64

// PhysicalKey is a prefix plus caller key, ready to be handed to the engine.
// Keys up to InlineCap bytes live in the struct itself. Both forms have the
// same bytes and the same ordering.
type PhysicalKey struct {
	buf  [InlineCap]byte
	n    int
	heap []byte
}

// MakeFullKey builds prefix | key.
func MakeFullKey(p Prefix, key []byte) PhysicalKey {
	var k PhysicalKey
	k.build(p, nil, key)
	return k
}

// MakeTaggedKey builds prefix | tag | key.
func MakeTaggedKey(p Prefix, tag byte, key []byte) PhysicalKey {
	var k PhysicalKey
	k.build(p, []byte{tag}, key)
	return k
}

// MakeVersionedKeyPrefix builds prefix | 'v' | esc(key), the bytes shared
// by every version of key.
func MakeVersionedKeyPrefix(p Prefix, key []byte) PhysicalKey {
	var k PhysicalKey
	total := PrefixSize + 1 + EncodedLen(key)
	dst := k.buf[:0]
	if total > InlineCap {
		dst = make([]byte, 0, total)
	}
	dst = AppendPrefix(dst, p)
	dst = append(dst, TagVersioned)
	dst = EncodeBytesAscending(dst, key)
	if total > InlineCap {
		k.heap = dst
	} else {
		k.n = len(dst)
	}
	return k
}

func (k *PhysicalKey) build(p Prefix, tag, key []byte) {
	total := PrefixSize + len(tag) + len(key)
	if total <= InlineCap {
		b := AppendPrefix(k.buf[:0], p)
		b = append(b, tag...)
		b = append(b, key...)
		k.n = len(b)
		return
	}
	k.heap = make([]byte, 0, total)
	k.heap = AppendPrefix(k.heap, p)
	k.heap = append(k.heap, tag...)
	k.heap = append(k.heap, key...)
}

// Bytes returns the physical key. For inline keys the slice points into k.
func (k *PhysicalKey) Bytes() []byte {
	if k.heap != nil {
		return k.heap
	}
	return k.buf[:k.n]
}

// Len returns the length of the physical key.
func (k *PhysicalKey) Len() int {
	if k.heap != nil {
		return len(k.heap)
	}
	return k.n
}

// IsInline reports whether the key lives in the inline buffer.
func (k *PhysicalKey) IsInline() bool {
	return k.heap == nil
}

// Prefix returns the collection prefix of the key.
func (k *PhysicalKey) Prefix() Prefix {
	p, _, _ := SplitPrefix(k.Bytes())
	return p
}

// Key returns the caller key.
func (k *PhysicalKey) Key() []byte {
	return k.Bytes()[PrefixSize:]
}

// Compare orders physical keys bytewise, which equals (prefix, key) order.
func (k *PhysicalKey) Compare(o *PhysicalKey) int {
	return bytes.Compare(k.Bytes(), o.Bytes())
}

// End returns the smallest key larger than every key starting with k, in
// the same representation as k. ok is false if no such key exists.
func (k *PhysicalKey) End() (end PhysicalKey, ok bool) {
	var b []byte
	if k.heap != nil {
		end.heap = bytes.Clone(k.heap)
		b = end.heap
	} else {
		end.buf = k.buf
		end.n = k.n
		b = end.buf[:end.n]
	}
	for i := len(b) - 1; i >= 0; i-- {
		b[i]++
		if b[i] != 0 {
			if end.heap != nil {
				end.heap = end.heap[:i+1]
			} else {
				end.n = i + 1
			}
			return end, true
		}
	}
	return PhysicalKey{}, false
}
