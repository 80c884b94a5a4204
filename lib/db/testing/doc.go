// Package testing provides standardised tests and benchmarks for
// backends that satisfy the db.Engine interface.
//
// The package contains:
//   - testing: a conformance suite for the Engine contract (ordering,
//     bounds, batch atomicity, metadata, restart durability)
//   - benchmark: performance tests for the operations the versioned store
//     issues most often
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.Engine {
//		return NewMyEngine()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunEngineTests(t, "MyEngine", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunEngineBenchmarks(b, "MyEngine", factory)
package testing
