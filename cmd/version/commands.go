package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	createCmd = &cobra.Command{
		Use:   "create [branch] [name]",
		Short: "Appends a new version to a branch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := localStore.Manager().VersionCreate(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("created version %s on %s\n", args[1], args[0])
			return nil
		},
	}
	lsCmd = &cobra.Command{
		Use:   "ls [branch]",
		Short: "Lists the versions of a branch, or all versions without a branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := localStore.Manager()
			if len(args) == 0 {
				orphans := make(map[string]bool)
				for _, name := range mgr.VersionOrphans() {
					orphans[name] = true
				}
				for _, name := range mgr.VersionListGlobally() {
					if orphans[name] {
						fmt.Printf("%s (orphan)\n", name)
					} else {
						fmt.Println(name)
					}
				}
				return nil
			}

			versions, err := mgr.VersionList(args[0])
			if err != nil {
				return err
			}
			for i, name := range versions {
				changed, err := mgr.VersionHasChangeSet(name)
				if err != nil {
					return err
				}
				fmt.Printf("%4d %s changed=%v\n", i, name, changed)
			}
			return nil
		},
	}
	revertCmd = &cobra.Command{
		Use:   "revert [name]",
		Short: "Removes a version and its writes from every branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guard, err := localStore.Exclusive()
			if err != nil {
				return err
			}
			defer guard.Release()
			if err := localStore.Manager().VersionRevertGlobally(guard, args[0]); err != nil {
				return err
			}
			fmt.Println("reverted successfully")
			return nil
		},
	}
	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Purges orphaned versions and dangling branch sequences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := localStore.Manager().VersionCleanUpGlobally(); err != nil {
				return err
			}
			fmt.Println("cleanup successfully")
			return nil
		},
	}
)
