package keys

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// Prefix identifies one logical collection inside the flat keyspace.
type Prefix uint64

const (
	// PrefixSize is the encoded width of a Prefix
	PrefixSize = 8

	// MetaPrefix holds out-of-band metadata (allocator ceiling, key length hint)
	MetaPrefix Prefix = 0
	// ManagerPrefix holds the branch/version manager's namespace
	ManagerPrefix Prefix = 1
	// ReservedPrefixes is the first prefix handed out to collections
	ReservedPrefixes Prefix = 4096
)

// Region tags of a collection
const (
	TagBasic     byte = 'b' // prefix | 'b' | key -> value
	TagVersioned byte = 'v' // prefix | 'v' | esc(key) | version -> value
)

// Meta keys, all below MetaPrefix
var (
	MetaCeilingKey   = MakeTagged(MetaPrefix, 'c')
	MetaMaxKeyLenKey = MakeTagged(MetaPrefix, 'k')
)

// ErrMalformedKey is returned when a physical key cannot be decoded
var ErrMalformedKey = errors.New("malformed key")

// AppendPrefix appends the big-endian encoding of p to dst.
func AppendPrefix(dst []byte, p Prefix) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(p))
}

// MakeTagged returns prefix | tag | parts...
func MakeTagged(p Prefix, tag byte, parts ...[]byte) []byte {
	n := PrefixSize + 1
	for _, part := range parts {
		n += len(part)
	}
	b := make([]byte, 0, n)
	b = AppendPrefix(b, p)
	b = append(b, tag)
	for _, part := range parts {
		b = append(b, part...)
	}
	return b
}

// SplitPrefix is the inverse of MakeFullKey. The returned key aliases full.
func SplitPrefix(full []byte) (Prefix, []byte, error) {
	if len(full) < PrefixSize {
		return 0, nil, errors.Wrapf(ErrMalformedKey, "key of %d bytes has no prefix", len(full))
	}
	return Prefix(binary.BigEndian.Uint64(full)), full[PrefixSize:], nil
}

// PrefixRange returns the scan bounds [lower, upper) covering every key
// that starts with p followed by the concatenation of sub.
func PrefixRange(p Prefix, sub ...[]byte) (lower, upper []byte) {
	lower = AppendPrefix(nil, p)
	for _, s := range sub {
		lower = append(lower, s...)
	}
	return lower, PrefixEnd(lower)
}

// PrefixEnd returns the smallest key that is larger than every key
// starting with b. It returns nil (unbounded) if no such key exists.
func PrefixEnd(b []byte) []byte {
	end := bytes.Clone(b)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Fixed width integers
// --------------------------------------------------------------------------

// AppendUint64 appends v big-endian.
func AppendUint64(dst []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, v)
}

// DecodeUint64 reads a big-endian uint64 and returns the remaining bytes.
func DecodeUint64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, errors.Wrapf(ErrMalformedKey, "need 8 bytes for an integer, have %d", len(b))
	}
	return binary.BigEndian.Uint64(b), b[8:], nil
}

// --------------------------------------------------------------------------
// Order preserving byte escape
// --------------------------------------------------------------------------

const (
	escape      byte = 0x00
	escapedTerm byte = 0x01
	escaped00   byte = 0xff
)

// EncodeBytesAscending appends an escaped, terminated encoding of data to
// b. 0x00 is written as 0x00 0xff and the value ends with 0x00 0x01, so
// encodings sort like the raw values and no encoding is a prefix of another.
func EncodeBytesAscending(b []byte, data []byte) []byte {
	for {
		i := bytes.IndexByte(data, escape)
		if i == -1 {
			break
		}
		b = append(b, data[:i]...)
		b = append(b, escape, escaped00)
		data = data[i+1:]
	}
	b = append(b, data...)
	return append(b, escape, escapedTerm)
}

// DecodeBytesAscending decodes a value written by EncodeBytesAscending,
// appending it to r. It returns the remaining input and the decoded value.
func DecodeBytesAscending(b []byte, r []byte) ([]byte, []byte, error) {
	if r == nil {
		r = []byte{}
	}
	for {
		i := bytes.IndexByte(b, escape)
		if i == -1 {
			return nil, nil, errors.Wrapf(ErrMalformedKey, "no terminator in %x", b)
		}
		if i+1 >= len(b) {
			return nil, nil, errors.Wrapf(ErrMalformedKey, "truncated escape in %x", b)
		}
		switch b[i+1] {
		case escapedTerm:
			return b[i+2:], append(r, b[:i]...), nil
		case escaped00:
			r = append(r, b[:i]...)
			r = append(r, 0x00)
		default:
			return nil, nil, errors.Wrapf(ErrMalformedKey, "unknown escape %#x", b[i+1])
		}
		b = b[i+2:]
	}
}

// EncodedLen is the length of EncodeBytesAscending(nil, data).
func EncodedLen(data []byte) int {
	return len(data) + bytes.Count(data, []byte{escape}) + 2
}
