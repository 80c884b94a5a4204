// Package keys maps (collection prefix, caller key) pairs onto the flat,
// bytewise ordered keyspace of a db.Engine and back.
//
// Every physical key starts with the 8 byte big-endian collection prefix,
// followed by a one byte tag naming the region inside the collection and a
// tag specific payload:
//
//	prefix(8) | tag(1) | payload
//
// Big-endian prefixes sort numerically, so a range scan over one prefix
// returns keys in caller-key order and never leaks into a neighbouring
// collection. Variable length keys that are followed by further fields use
// the escape encoding of EncodeBytesAscending so that a scan over one key
// never matches a longer key sharing its bytes.
//
// PhysicalKey keeps short keys in an inline buffer and only falls back to a
// heap slice when prefix and key together exceed InlineCap bytes.
package keys
