package kv

import (
	"github.com/ValentinKolb/vsdb/cmd/util"
	"github.com/ValentinKolb/vsdb/lib/store"
	"github.com/spf13/cobra"
)

var (
	localStore *store.Store

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform collection operations",
		PersistentPreRunE:  setupStore,
		PersistentPostRunE: closeStore,
	}
)

func init() {
	// Add common flags to the KV command
	KeyValueCommands.PersistentFlags().Bool("basic", false, util.WrapString("Address a basic (unversioned) collection"))
	KeyValueCommands.PersistentFlags().String("branch", "", util.WrapString("Branch to read or write (defaults to the default branch)"))

	// Add flags
	getCmd.Flags().String("at", "", util.WrapString("Read at this version of the branch"))
	lsCmd.Flags().String("at", "", util.WrapString("Read at this version of the branch"))
	lsCmd.Flags().Bool("reverse", false, util.WrapString("List in descending key order"))

	// Add subcommands
	KeyValueCommands.AddCommand(newCmd)
	KeyValueCommands.AddCommand(putCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(lsCmd)
	KeyValueCommands.AddCommand(destroyCmd)
}

// setupStore opens the local store
func setupStore(cmd *cobra.Command, _ []string) (err error) {
	localStore, err = util.OpenStore(cmd)
	return err
}

// closeStore closes the local store
func closeStore(_ *cobra.Command, _ []string) error {
	return util.CloseStore(localStore)
}
