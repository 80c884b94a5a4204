// Package cmd implements the command-line interface of vsdb. Every command
// opens the store described by the global flags, runs one operation and
// closes the store again.
//
// The package is organized into several subpackages:
//
//   - branch: Commands for branch operations (create, rm, ls, merge, swap, default)
//   - version: Commands for version operations (create, ls, revert, cleanup)
//   - kv: Commands for collection operations (new, put, get, del, ls)
//   - maint: Maintenance commands (prune, stats, bench)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Flags can also be set with VSDB_* environment variables or in a .env file.
// See vsdb -help for a list of all commands.
package cmd
