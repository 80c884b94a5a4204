package maint

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/vsdb/cmd/util"
	"github.com/ValentinKolb/vsdb/lib/mapx"
	"github.com/ValentinKolb/vsdb/lib/vs"
	"github.com/VictoriaMetrics/metrics"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	pruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Folds old shared versions into their base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reserved, _ := cmd.Flags().GetInt("reserved")
			before := localStore.Manager().Stats()
			if err := localStore.Prune(reserved); err != nil {
				return err
			}
			after := localStore.Manager().Stats()
			fmt.Printf("pruned successfully (%d -> %d versions)\n", before.Versions, after.Versions)
			return nil
		},
	}
	flushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Forces buffered engine writes to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := localStore.Flush(); err != nil {
				return err
			}
			fmt.Println("flush successfully")
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints store, version and metric statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := localStore.Info()

			fmt.Println(localStore.Config().String())
			fmt.Println()
			fmt.Println("Engine:")
			fmt.Printf("  - Type: %s\n", info.Engine.DbType)
			fmt.Printf("  - Size: %s\n", humanize.IBytes(uint64(info.Engine.SizeBytes)))
			fmt.Printf("  - Features: %v\n", info.Engine.SupportedFeatures)
			fmt.Println("Versions:")
			fmt.Printf("  - Default Branch: %s\n", info.Versions.DefaultBranch)
			fmt.Printf("  - Branches: %s\n", humanize.Comma(int64(info.Versions.Branches)))
			fmt.Printf("  - Versions: %s (%d orphaned)\n", humanize.Comma(int64(info.Versions.Versions)), info.Versions.Orphans)
			fmt.Printf("  - Dangling Sequences: %d\n", info.Versions.Dangling)
			fmt.Println("Allocator:")
			fmt.Printf("  - Prefix Ceiling: %s\n", humanize.Comma(int64(info.Ceiling)))
			fmt.Printf("  - Max Key Length: %s\n", humanize.Bytes(uint64(info.MaxKeyLen)))

			depth := mapx.LookupDepth().Snapshot()
			fmt.Println("Lookup Depth:")
			fmt.Printf("  - Count: %d\n", depth.Count())
			fmt.Printf("  - Mean: %.2f\n", depth.Mean())
			fmt.Printf("  - P99: %.0f\n", depth.Percentile(0.99))

			if prom, _ := cmd.Flags().GetBool("prometheus"); prom {
				fmt.Println()
				metrics.WritePrometheus(os.Stdout, false)
			}
			return nil
		},
	}
)

func init() {
	pruneCmd.Flags().Int("reserved", vs.DefaultReserved, util.WrapString("Number of most recent versions per branch that are never folded"))
	statsCmd.Flags().Bool("prometheus", false, util.WrapString("Also print the metrics of this process in Prometheus format"))
}
