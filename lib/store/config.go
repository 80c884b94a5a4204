package store

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/vsdb/lib/alloc"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/dustin/go-humanize"
)

// Config selects and tunes the engine behind a store
type Config struct {
	// Engine is one of db.ImplPebble, db.ImplLevel, db.ImplMemory
	Engine db.Implementation
	// DataDir is the engine's directory, required unless InMemory is set
	DataDir string
	// InMemory keeps all data in memory (always true for the memory engine)
	InMemory bool
	// SyncWrites fsyncs every write, not only allocator and metadata persists
	SyncWrites bool
	// CacheMB is the engine's block cache size, 0 keeps the engine default
	CacheMB int
	// BatchSize is the number of prefixes an allocator arena reserves at once
	BatchSize uint64
	// LogLevel is applied to all vsdb loggers when not empty
	LogLevel string
}

// DefaultConfig returns an in-memory pebble configuration.
func DefaultConfig() Config {
	return Config{
		Engine:    db.ImplPebble,
		InMemory:  true,
		BatchSize: alloc.DefaultBatchSize,
		LogLevel:  "info",
	}
}

// String returns a formatted string representation of the configuration
func (c Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Engine")
	addField("Type", string(c.Engine))
	if c.InMemory || c.Engine == db.ImplMemory {
		addField("Data Directory", "(in memory)")
	} else {
		addField("Data Directory", c.DataDir)
	}
	addField("Sync Writes", fmt.Sprintf("%t", c.SyncWrites))
	if c.CacheMB > 0 {
		addField("Block Cache", humanize.IBytes(uint64(c.CacheMB)<<20))
	} else {
		addField("Block Cache", "engine default")
	}

	addSection("Allocator")
	addField("Batch Size", humanize.Comma(int64(c.BatchSize)))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
