package util

import (
	"math/bits"
	"sync/atomic"
)

// numBuckets covers sizes up to 4^15 bytes (1 GiB), larger values share the last bucket
const numBuckets = 16

// SizeHistogram tracks the size distribution of the values held by an
// engine. Bucket i counts sizes in (4^(i-1), 4^i], so the memory used is
// constant no matter how many values are tracked. Samples can be removed
// again, which keeps the histogram in sync with overwrites and deletes.
//
// All methods are safe for concurrent use.
type SizeHistogram struct {
	buckets [numBuckets]atomic.Int64
	sum     atomic.Int64
}

// HistogramSnapshot is a point-in-time summary of a SizeHistogram, encoded
// into db.DatabaseInfo.Metadata.
type HistogramSnapshot struct {
	Count  int64 `json:"count"`
	Sum    int64 `json:"sum"`
	Mean   int64 `json:"mean"`
	Median int64 `json:"median"`
	P99    int64 `json:"p99"`
}

// NewSizeHistogram returns an empty histogram.
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{}
}

// bucketFor maps a size to its power-of-four bucket
func bucketFor(size int) int {
	if size <= 1 {
		return 0
	}
	idx := (bits.Len(uint(size-1)) + 1) / 2
	return min(idx, numBuckets-1)
}

// upperBound is the largest size counted by bucket i
func upperBound(i int) int64 {
	return int64(1) << (2 * i)
}

// AddSample records a value of the given size.
func (h *SizeHistogram) AddSample(size int) {
	h.buckets[bucketFor(size)].Add(1)
	h.sum.Add(int64(size))
}

// RemoveSample forgets a value recorded with AddSample. Removing from an
// empty bucket is ignored.
func (h *SizeHistogram) RemoveSample(size int) {
	b := &h.buckets[bucketFor(size)]
	for {
		n := b.Load()
		if n == 0 {
			return
		}
		if b.CompareAndSwap(n, n-1) {
			break
		}
	}
	h.sum.Add(-int64(size))
}

// Snapshot summarizes the histogram. Percentiles are reported as the upper
// bound of the bucket they fall into.
func (h *SizeHistogram) Snapshot() HistogramSnapshot {
	var counts [numBuckets]int64
	var total int64
	for i := range h.buckets {
		counts[i] = h.buckets[i].Load()
		total += counts[i]
	}

	snap := HistogramSnapshot{Count: total, Sum: h.sum.Load()}
	if total == 0 {
		return snap
	}
	snap.Mean = snap.Sum / total
	snap.Median = percentile(counts, total, 50)
	snap.P99 = percentile(counts, total, 99)
	return snap
}

func percentile(counts [numBuckets]int64, total int64, p int64) int64 {
	target := (total*p + 99) / 100
	var seen int64
	for i, n := range counts {
		seen += n
		if seen >= target {
			return upperBound(i)
		}
	}
	return upperBound(numBuckets - 1)
}

// Reset clears all samples.
func (h *SizeHistogram) Reset() {
	for i := range h.buckets {
		h.buckets[i].Store(0)
	}
	h.sum.Store(0)
}
