package kv

import (
	"fmt"

	"github.com/ValentinKolb/vsdb/cmd/util"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/mapx"
	"github.com/spf13/cobra"
)

// collection is the part of a collection the kv commands need
type collection interface {
	Insert(key, value []byte) error
	Remove(key []byte) error
	Get(key []byte) ([]byte, bool, error)
	Range(opts db.IterOptions) (db.Iterator, error)
}

// openCollection opens the collection named by the prefix argument,
// honoring the --basic and --branch flags.
func openCollection(cmd *cobra.Command, prefix string) (collection, *mapx.Versioned, error) {
	p, err := util.ParsePrefix(prefix)
	if err != nil {
		return nil, nil, err
	}
	if basic, _ := cmd.Flags().GetBool("basic"); basic {
		raw, err := localStore.OpenMap(p)
		return raw, nil, err
	}
	m, err := localStore.OpenVersionedMap(p)
	if err != nil {
		return nil, nil, err
	}
	if branch, _ := cmd.Flags().GetString("branch"); branch != "" {
		m = m.OnBranch(branch)
	}
	return m, m, nil
}

var (
	newCmd = &cobra.Command{
		Use:   "new",
		Short: "Allocates a new collection and prints its prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if basic, _ := cmd.Flags().GetBool("basic"); basic {
				raw, err := localStore.NewMap()
				if err != nil {
					return err
				}
				fmt.Println(raw.Prefix())
				return nil
			}
			m, err := localStore.NewVersionedMap()
			if err != nil {
				return err
			}
			fmt.Println(m.Prefix())
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [prefix] [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := openCollection(cmd, args[0])
			if err != nil {
				return err
			}
			if err := c.Insert([]byte(args[1]), []byte(args[2])); err != nil {
				return err
			}
			fmt.Println("put successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [prefix] [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, m, err := openCollection(cmd, args[0])
			if err != nil {
				return err
			}
			key := []byte(args[1])

			var (
				value []byte
				found bool
			)
			if at, _ := cmd.Flags().GetString("at"); at != "" && m != nil {
				value, found, err = m.GetByBranchVersion(key, m.Branch(), at)
			} else {
				value, found, err = c.Get(key)
			}
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", key, found, value)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [prefix] [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := openCollection(cmd, args[0])
			if err != nil {
				return err
			}
			if err := c.Remove([]byte(args[1])); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	lsCmd = &cobra.Command{
		Use:   "ls [prefix]",
		Short: "Lists the entries of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, m, err := openCollection(cmd, args[0])
			if err != nil {
				return err
			}
			reverse, _ := cmd.Flags().GetBool("reverse")
			opts := db.IterOptions{Reverse: reverse}

			var it db.Iterator
			if at, _ := cmd.Flags().GetString("at"); at != "" && m != nil {
				it, err = m.RangeByBranchVersion(m.Branch(), at, opts)
			} else {
				it, err = c.Range(opts)
			}
			if err != nil {
				return err
			}
			n := 0
			for ; it.Valid(); it.Next() {
				fmt.Printf("%s=%s\n", it.Key(), it.Value())
				n++
			}
			if err := it.Close(); err != nil {
				return err
			}
			fmt.Printf("(%d entries)\n", n)
			return nil
		},
	}
	destroyCmd = &cobra.Command{
		Use:   "destroy [prefix]",
		Short: "Deletes a collection with all of its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := util.ParsePrefix(args[0])
			if err != nil {
				return err
			}
			if err := localStore.DestroyCollection(p); err != nil {
				return err
			}
			fmt.Println("destroyed successfully")
			return nil
		},
	}
)
