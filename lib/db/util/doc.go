// Package util provides utility components for backends that satisfy the
// db.Engine interface.
//
// The package contains:
//   - statistics: a SizeHistogram for tracking the size distribution of
//     stored values without scanning the data
//   - metrics: shared VictoriaMetrics counters every backend reports its
//     operations to
package util
