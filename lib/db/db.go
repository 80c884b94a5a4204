package db

import "errors"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplPebble Implementation = "pebble"
	ImplLevel  Implementation = "level"
	ImplMemory Implementation = "memory"
)

// Feature represents engine features as bit flags
type Feature uint64

const (
	FeatureGet          Feature = 1 << iota // Support for Get operations
	FeatureInsert                           // Support for Insert operations
	FeatureRemove                           // Support for Remove operations
	FeatureIterate                          // Support for ordered iteration (forward)
	FeatureReverseIter                      // Support for ordered iteration (reverse)
	FeatureBatch                            // Support for atomic batch writes
	FeaturePersist                          // Support for synced metadata writes
	FeatureDurable                          // Data survives a process restart
	FeatureFlush                            // Support for Flush operations
	FeatureSizeEstimate                     // GetInfo reports a size estimate
)

func (f Feature) String() string {
	switch f {
	case FeatureGet:
		return "Get"
	case FeatureInsert:
		return "Insert"
	case FeatureRemove:
		return "Remove"
	case FeatureIterate:
		return "Iterate"
	case FeatureReverseIter:
		return "ReverseIter"
	case FeatureBatch:
		return "Batch"
	case FeaturePersist:
		return "Persist"
	case FeatureDurable:
		return "Durable"
	case FeatureFlush:
		return "Flush"
	case FeatureSizeEstimate:
		return "SizeEstimate"
	default:
		return "Unknown"
	}
}

// AllFeatures lists every single-bit feature, in declaration order.
var AllFeatures = []Feature{
	FeatureGet, FeatureInsert, FeatureRemove, FeatureIterate, FeatureReverseIter,
	FeatureBatch, FeaturePersist, FeatureDurable, FeatureFlush, FeatureSizeEstimate,
}

// FeatureList expands a feature mask into its single-bit features.
func FeatureList(mask Feature) []Feature {
	var res []Feature
	for _, f := range AllFeatures {
		if mask&f == f {
			res = append(res, f)
		}
	}
	return res
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// ErrClosed is returned by every operation on an engine after Close.
var ErrClosed = errors.New("engine is closed")

// --------------------------------------------------------------------------
// Batch Operations
// --------------------------------------------------------------------------

type OpKind uint8

const (
	OpInsert OpKind = iota
	OpRemove
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "Insert"
	case OpRemove:
		return "Remove"
	default:
		return "Unknown"
	}
}

// Op is one write inside an atomic batch.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte
}

// InsertOp builds an insert operation.
func InsertOp(key, value []byte) Op {
	return Op{Kind: OpInsert, Key: key, Value: value}
}

// RemoveOp builds a remove operation.
func RemoveOp(key []byte) Op {
	return Op{Kind: OpRemove, Key: key}
}

// Batch collects operations for a single atomic WriteBatch call.
type Batch struct {
	Ops []Op
}

// Insert appends an insert operation to the batch.
func (b *Batch) Insert(key, value []byte) {
	b.Ops = append(b.Ops, InsertOp(key, value))
}

// Remove appends a remove operation to the batch.
func (b *Batch) Remove(key []byte) {
	b.Ops = append(b.Ops, RemoveOp(key))
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	return len(b.Ops)
}

// Reset drops all queued operations but keeps the allocated capacity.
func (b *Batch) Reset() {
	b.Ops = b.Ops[:0]
}

// --------------------------------------------------------------------------
// Iteration
// --------------------------------------------------------------------------

// IterOptions bounds an ordered scan. Lower is inclusive, Upper is exclusive.
// A nil bound means unbounded on that side.
type IterOptions struct {
	Lower   []byte
	Upper   []byte
	Reverse bool
}

// Iterator walks a key range in order. It starts positioned on the first
// entry (last entry for reverse scans). Key and Value are only valid until
// the next call to Next and must be copied if retained.
type Iterator interface {
	// Valid reports whether the iterator is positioned on an entry.
	Valid() bool
	// Next advances to the next entry in scan direction.
	Next()
	// Key returns the current key.
	Key() []byte
	// Value returns the current value.
	Value() []byte
	// Error returns the first error encountered during the scan.
	Error() error
	// Close releases the iterator. It returns the scan error, if any.
	Close() error
}

// --------------------------------------------------------------------------
// Engine Interface
// --------------------------------------------------------------------------

// Engine defines the flat, byte-oriented, ordered key-value backend.
// Implementations must order keys bytewise, apply WriteBatch atomically and
// make Persist durable before returning. Values handed to the engine may be
// retained by it, values returned by the engine are owned by the caller.
type Engine interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Insert inserts or overwrites a key.
	Insert(key, value []byte) (err error)

	// Remove deletes a key. Removing a missing key is not an error.
	Remove(key []byte) (err error)

	// WriteBatch applies all operations atomically: either every op becomes
	// visible or none does.
	WriteBatch(ops []Op) (err error)

	// Persist writes a small metadata value and syncs it to stable storage
	// before returning.
	Persist(metaKey, value []byte) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether the key was found.
	Get(key []byte) (value []byte, found bool, err error)

	// LoadMeta reads a value written by Persist.
	LoadMeta(metaKey []byte) (value []byte, found bool, err error)

	// NewIterator returns an ordered iterator over the given bounds.
	NewIterator(opts IterOptions) (iter Iterator, err error)

	// --------------------------------------------------------------------------
	// Maintenance & Feature Support
	// --------------------------------------------------------------------------

	// Flush forces buffered writes to stable storage.
	Flush() (err error)

	// SupportsFeature checks if the engine supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the engine.
	GetInfo() (info DatabaseInfo)

	// Close closes the engine.
	Close() (err error)
}
