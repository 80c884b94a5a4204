package branch

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	createCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Forks a new branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			mgr := localStore.Manager()

			base, _ := cmd.Flags().GetString("base")
			if empty, _ := cmd.Flags().GetBool("empty"); empty {
				base = ""
			} else if base == "" {
				base = mgr.BranchGetDefault()
			}
			at, _ := cmd.Flags().GetString("at")
			force, _ := cmd.Flags().GetBool("force")

			var err error
			if at != "" {
				err = mgr.BranchCreateAt(name, base, at, force)
			} else {
				err = mgr.BranchCreate(name, base, force)
			}
			if err != nil {
				return err
			}
			if base == "" {
				fmt.Printf("created empty branch %s\n", name)
			} else {
				fmt.Printf("created branch %s from %s\n", name, base)
			}
			return nil
		},
	}
	rmCmd = &cobra.Command{
		Use:   "rm [name]",
		Short: "Removes a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := localStore.Manager().BranchRemove(args[0]); err != nil {
				return err
			}
			fmt.Println("removed successfully")
			return nil
		},
	}
	lsCmd = &cobra.Command{
		Use:   "ls",
		Short: "Lists all branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := localStore.Manager()
			def := mgr.BranchGetDefault()
			for _, name := range mgr.BranchList() {
				versions, err := mgr.VersionList(name)
				if err != nil {
					return err
				}
				marker := " "
				if name == def {
					marker = "*"
				}
				fmt.Printf("%s %s (%d versions)\n", marker, name, len(versions))
			}
			return nil
		},
	}
	mergeCmd = &cobra.Command{
		Use:   "merge [src] [dst]",
		Short: "Merges the versions of src into dst",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if err := localStore.Manager().BranchMergeTo(args[0], args[1], force); err != nil {
				return err
			}
			fmt.Printf("merged %s into %s\n", args[0], args[1])
			return nil
		},
	}
	swapCmd = &cobra.Command{
		Use:   "swap [a] [b]",
		Short: "Exchanges the contents of two branches",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			guard, err := localStore.Exclusive()
			if err != nil {
				return err
			}
			defer guard.Release()
			if err := localStore.Manager().BranchSwap(guard, args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("swapped successfully")
			return nil
		},
	}
	defaultCmd = &cobra.Command{
		Use:   "default [name]",
		Short: "Prints or sets the default branch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := localStore.Manager()
			if len(args) == 1 {
				if err := mgr.BranchSetDefault(args[0]); err != nil {
					return err
				}
			}
			fmt.Println(mgr.BranchGetDefault())
			return nil
		},
	}
)
