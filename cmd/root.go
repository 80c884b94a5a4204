package cmd

import (
	"fmt"

	"github.com/ValentinKolb/vsdb/cmd/branch"
	"github.com/ValentinKolb/vsdb/cmd/kv"
	"github.com/ValentinKolb/vsdb/cmd/maint"
	"github.com/ValentinKolb/vsdb/cmd/util"
	"github.com/ValentinKolb/vsdb/cmd/version"
	"github.com/spf13/cobra"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "vsdb",
		Short: "versioned key-value storage",
		Long: fmt.Sprintf(`vsdb (v%s)

A versioned storage substrate written in Go. Collections live in one ordered
key-value engine (pebble, leveldb or memory) and every write is recorded in a
version on a branch, so branches can be forked, merged, pruned and read at
any historical version.`, util.Version),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add store flags shared by all commands
	util.SetupStoreFlags(RootCmd)

	// Add Commands
	RootCmd.AddCommand(branch.BranchCommands)
	RootCmd.AddCommand(version.VersionCommands)
	RootCmd.AddCommand(kv.KeyValueCommands)
	for _, c := range maint.Commands {
		RootCmd.AddCommand(c)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		util.Exit(err)
	}
}
