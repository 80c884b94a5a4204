package codec

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// KeyCodec encodes typed keys so that bytewise order matches key order.
type KeyCodec[K any] interface {
	EncodeKey(k K) []byte
	DecodeKey(b []byte) (K, error)
}

// Uint64Key encodes uint64 keys big-endian
type Uint64Key struct{}

func (Uint64Key) EncodeKey(k uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, k)
}

func (Uint64Key) DecodeKey(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, errors.Wrapf(ErrCodec, "uint64 key has %d bytes", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// Int64Key encodes int64 keys big-endian with the sign bit flipped,
// so negative keys sort before positive ones
type Int64Key struct{}

func (Int64Key) EncodeKey(k int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(k)^(1<<63))
}

func (Int64Key) DecodeKey(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, errors.Wrapf(ErrCodec, "int64 key has %d bytes", len(b))
	}
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63)), nil
}

// StringKey stores string keys as their bytes
type StringKey struct{}

func (StringKey) EncodeKey(k string) []byte {
	return []byte(k)
}

func (StringKey) DecodeKey(b []byte) (string, error) {
	return string(b), nil
}

// BytesKey stores byte keys unchanged
type BytesKey struct{}

func (BytesKey) EncodeKey(k []byte) []byte {
	return k
}

func (BytesKey) DecodeKey(b []byte) ([]byte, error) {
	return append([]byte(nil), b...), nil
}
