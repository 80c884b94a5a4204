package branch

import (
	"github.com/ValentinKolb/vsdb/cmd/util"
	"github.com/ValentinKolb/vsdb/lib/store"
	"github.com/spf13/cobra"
)

var (
	localStore *store.Store

	// BranchCommands represents the branch command group
	BranchCommands = &cobra.Command{
		Use:                "branch",
		Short:              "Create, merge and inspect branches",
		PersistentPreRunE:  setupStore,
		PersistentPostRunE: closeStore,
	}
)

func init() {
	// Add flags
	createCmd.Flags().String("base", "", util.WrapString("Branch to fork from (defaults to the default branch)"))
	createCmd.Flags().String("at", "", util.WrapString("Fork at this version of the base branch instead of its tail"))
	createCmd.Flags().Bool("empty", false, util.WrapString("Create a branch without any versions"))
	createCmd.Flags().Bool("force", false, util.WrapString("Replace an existing branch with the same name"))
	mergeCmd.Flags().Bool("force", false, util.WrapString("Merge even if the target has diverged"))

	// Add subcommands
	BranchCommands.AddCommand(createCmd)
	BranchCommands.AddCommand(rmCmd)
	BranchCommands.AddCommand(lsCmd)
	BranchCommands.AddCommand(mergeCmd)
	BranchCommands.AddCommand(swapCmd)
	BranchCommands.AddCommand(defaultCmd)
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
