package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/keys"
	"github.com/ValentinKolb/vsdb/lib/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// Version of the vsdb tool
	Version = "0.3.0"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the flags describing the store to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "data-dir"
	cmd.PersistentFlags().String(key, "./vsdb-data", WrapString("The directory of the store"))

	key = "engine"
	cmd.PersistentFlags().String(key, string(db.ImplPebble), WrapString("The storage engine (pebble, level, memory)"))

	key = "in-memory"
	cmd.PersistentFlags().Bool(key, false, WrapString("Keep all data in memory, nothing survives the command"))

	key = "sync-writes"
	cmd.PersistentFlags().Bool(key, false, WrapString("Fsync every write, not only metadata updates"))

	key = "cache-mb"
	cmd.PersistentFlags().Int(key, 0, WrapString("Size of the engine's block cache in MB (0 keeps the engine default)"))

	key = "batch-size"
	cmd.PersistentFlags().Uint64(key, 8192, WrapString("Number of collection prefixes reserved per allocator batch"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level (debug, info, warn, error, off)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("vsdb")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetStoreConfig reads the store configuration from viper
func GetStoreConfig() store.Config {
	return store.Config{
		Engine:     db.Implementation(viper.GetString("engine")),
		DataDir:    viper.GetString("data-dir"),
		InMemory:   viper.GetBool("in-memory"),
		SyncWrites: viper.GetBool("sync-writes"),
		CacheMB:    viper.GetInt("cache-mb"),
		BatchSize:  viper.GetUint64("batch-size"),
		LogLevel:   viper.GetString("log-level"),
	}
}

// OpenStore binds the command's flags and opens the configured store
func OpenStore(cmd *cobra.Command) (*store.Store, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	return store.Open(GetStoreConfig())
}

// CloseStore closes s if it was opened
func CloseStore(s *store.Store) error {
	if s == nil {
		return nil
	}
	return s.Close()
}

// ParsePrefix parses a collection prefix given on the command line
func ParsePrefix(s string) (keys.Prefix, error) {
	p, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("prefix must be a number: %w", err)
	}
	return keys.Prefix(p), nil
}

// Exit prints err and exits with the error's return code
func Exit(err error) {
	code := store.Code(err)
	fmt.Fprintf(os.Stderr, "error (%s): %v\n", code, err)
	os.Exit(int(code))
}
