package version

import (
	"fmt"

	"github.com/ValentinKolb/vsdb/cmd/util"
	"github.com/ValentinKolb/vsdb/lib/store"
	"github.com/spf13/cobra"
)

var (
	localStore *store.Store

	// VersionCommands represents the version command group. Called without a
	// subcommand it prints the version of the tool.
	VersionCommands = &cobra.Command{
		Use:   "version",
		Short: "Print the tool version or manage store versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vsdb v%s\n", util.Version)
		},
	}
)

func init() {
	VersionCommands.PersistentPreRunE = setupStore
	VersionCommands.PersistentPostRunE = closeStore

	// Add subcommands
	VersionCommands.AddCommand(createCmd)
	VersionCommands.AddCommand(lsCmd)
	VersionCommands.AddCommand(revertCmd)
	VersionCommands.AddCommand(cleanupCmd)
}

// setupStore opens the local store, printing the tool version needs none
func setupStore(cmd *cobra.Command, _ []string) (err error) {
	if cmd == VersionCommands {
		return nil
	}
	localStore, err = util.OpenStore(cmd)
	return err
}

// closeStore closes the local store
func closeStore(_ *cobra.Command, _ []string) error {
	return util.CloseStore(localStore)
}
