package keys

import "github.com/cockroachdb/errors"

// AppendVersionedKey appends prefix | 'v' | esc(key) | version to dst.
// All versions of one key are adjacent and ordered by version id.
func AppendVersionedKey(dst []byte, p Prefix, key []byte, version uint64) []byte {
	dst = AppendPrefix(dst, p)
	dst = append(dst, TagVersioned)
	dst = EncodeBytesAscending(dst, key)
	return AppendUint64(dst, version)
}

// VersionedKeyRange returns the bounds covering every version of key.
func VersionedKeyRange(p Prefix, key []byte) (lower, upper []byte) {
	lower = make([]byte, 0, PrefixSize+1+EncodedLen(key))
	lower = AppendPrefix(lower, p)
	lower = append(lower, TagVersioned)
	lower = EncodeBytesAscending(lower, key)
	return lower, PrefixEnd(lower)
}

// VersionedRange returns the bounds covering the whole versioned region of p.
func VersionedRange(p Prefix) (lower, upper []byte) {
	return PrefixRange(p, []byte{TagVersioned})
}

// BasicRange returns the bounds covering the whole basic region of p.
func BasicRange(p Prefix) (lower, upper []byte) {
	return PrefixRange(p, []byte{TagBasic})
}

// DecodeVersionedKey splits a key written by AppendVersionedKey.
// The returned caller key is a fresh slice.
func DecodeVersionedKey(full []byte) (p Prefix, key []byte, version uint64, err error) {
	p, rest, err := SplitPrefix(full)
	if err != nil {
		return 0, nil, 0, err
	}
	if len(rest) == 0 || rest[0] != TagVersioned {
		return 0, nil, 0, errors.Wrapf(ErrMalformedKey, "not a versioned key: %x", full)
	}
	rest, key, err = DecodeBytesAscending(rest[1:], nil)
	if err != nil {
		return 0, nil, 0, err
	}
	version, rest, err = DecodeUint64(rest)
	if err != nil {
		return 0, nil, 0, err
	}
	if len(rest) != 0 {
		return 0, nil, 0, errors.Wrapf(ErrMalformedKey, "%d trailing bytes after version", len(rest))
	}
	return p, key, version, nil
}

// EncodedKeyFromVersioned returns the escaped caller key part of a
// versioned key without decoding it. Two versioned keys belong to the same
// caller key exactly when these slices are equal.
func EncodedKeyFromVersioned(full []byte) ([]byte, error) {
	if len(full) < PrefixSize+1+2+8 {
		return nil, errors.Wrapf(ErrMalformedKey, "versioned key too short: %x", full)
	}
	return full[PrefixSize+1 : len(full)-8], nil
}
