package mapx

import (
	gometrics "github.com/rcrowley/go-metrics"
)

// lookupDepth records how many stored versions a versioned Get inspected.
// A growing mean is the signal to prune.
var lookupDepth = gometrics.GetOrRegisterHistogram("vsdb.mapx.lookup_depth",
	gometrics.DefaultRegistry, gometrics.NewExpDecaySample(1028, 0.015))

// LookupDepth returns the lookup depth histogram.
func LookupDepth() gometrics.Histogram {
	return lookupDepth
}
