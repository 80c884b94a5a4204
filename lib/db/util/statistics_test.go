package util

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBucketFor(t *testing.T) {
	require.Equal(t, 0, bucketFor(0))
	require.Equal(t, 0, bucketFor(1))
	require.Equal(t, 1, bucketFor(2))
	require.Equal(t, 1, bucketFor(4))
	require.Equal(t, 2, bucketFor(5))
	require.Equal(t, 2, bucketFor(16))
	require.Equal(t, 5, bucketFor(1024))
	require.Equal(t, numBuckets-1, bucketFor(1<<40))
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	require.Equal(t, HistogramSnapshot{}, h.Snapshot())

	for i := 0; i < 99; i++ {
		h.AddSample(10)
	}
	h.AddSample(1000)

	snap := h.Snapshot()
	require.Equal(t, int64(100), snap.Count)
	require.Equal(t, int64(99*10+1000), snap.Sum)
	require.Equal(t, int64(19), snap.Mean)
	require.Equal(t, int64(16), snap.Median)
	require.Equal(t, int64(16), snap.P99)

	h.AddSample(1000)
	require.Equal(t, int64(1024), h.Snapshot().P99)

	h.RemoveSample(1000)
	h.RemoveSample(1000)
	h.RemoveSample(1000) // bucket already empty
	snap = h.Snapshot()
	require.Equal(t, int64(99), snap.Count)
	require.Equal(t, int64(990), snap.Sum)

	h.Reset()
	require.Equal(t, HistogramSnapshot{}, h.Snapshot())
}

func TestSizeHistogramConcurrent(t *testing.T) {
	h := NewSizeHistogram()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				h.AddSample(i)
				h.RemoveSample(i)
				h.AddSample(64)
			}
		}()
	}
	wg.Wait()

	snap := h.Snapshot()
	require.Equal(t, int64(8000), snap.Count)
	require.Equal(t, int64(8000*64), snap.Sum)
}
