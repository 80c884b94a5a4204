package maint

import (
	"github.com/ValentinKolb/vsdb/cmd/util"
	"github.com/ValentinKolb/vsdb/lib/store"
	"github.com/spf13/cobra"
)

var (
	localStore *store.Store

	// Commands are the maintenance commands, added to the root command
	Commands = []*cobra.Command{
		pruneCmd,
		flushCmd,
		statsCmd,
		benchCmd,
	}
)

func init() {
	for _, c := range Commands {
		c.PersistentPreRunE = setupStore
		c.PersistentPostRunE = closeStore
	}
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
