// Package codec provides the encode/decode contract used by the typed
// collections in mapx.
//
// A Codec turns values into bytes and back. The versioned store only needs
// a codec to round-trip exactly, it never looks inside encoded values.
// Implementations:
//
//   - JSON: encoding/json. Human readable, handy for debugging and for the
//     CLI.
//   - Gob: encoding/gob. Go-only, self describing. Every value carries its
//     type description, so payloads are large.
//   - Msgpack: github.com/hashicorp/go-msgpack. Compact binary format and
//     the default for typed maps.
//   - Raw: passes []byte through unchanged.
//
// A KeyCodec turns typed keys into bytes whose bytewise order equals the
// natural order of the keys, so ordered iteration over a typed map returns
// keys in order.
//
// All codecs are stateless and safe for concurrent use.
package codec
