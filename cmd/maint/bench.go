package maint

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/vsdb/cmd/util"
	"github.com/ValentinKolb/vsdb/lib/mapx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var (
	benchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Measures allocator and collection throughput of the store",
		RunE:    runBench,
		PreRunE: processBenchConfig,
	}
	benchKeyPrefix   = "__bench"
	benchValueSizeB  = 128
	benchNumThreads  = 10
	benchKeySpread   = 100
	benchAllocsPerGo = 10000
	benchSkip        = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	benchCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. alloc,fork)"))
	key = "threads"
	benchCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "value-size"
	benchCmd.Flags().Int(key, 128, util.WrapString("Size of the values written by the insert tests (in bytes)"))
	key = "keys"
	benchCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "allocs"
	benchCmd.Flags().Int(key, 10000, util.WrapString("Prefixes allocated per thread by the alloc test"))
	key = "csv"
	benchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	benchValueSizeB = viper.GetInt("value-size")
	benchKeySpread = max(viper.GetInt("keys"), 1)
	benchNumThreads = max(viper.GetInt("threads"), 1)
	benchAllocsPerGo = max(viper.GetInt("allocs"), 1)
	benchSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runBench(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for vsdb stores")

	// Print configuration
	fmt.Println()
	fmt.Println(localStore.Config().String())
	fmt.Printf("Threads: %d\n", benchNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	if !shouldSkip("alloc") {
		if err := runAllocBench(); err != nil {
			return err
		}
	}

	// collection and branch used by the collection tests, removed at the end
	mgr := localStore.Manager()
	branch := fmt.Sprintf("%s-%d", benchKeyPrefix, time.Now().UnixNano())
	if err := mgr.BranchCreate(branch, "", false); err != nil {
		return err
	}
	if err := mgr.VersionCreate(branch, branch+"-base"); err != nil {
		return err
	}
	collection, err := localStore.NewVersionedMap()
	if err != nil {
		return err
	}
	m := collection.OnBranch(branch)
	defer func() {
		if err := localStore.DestroyCollection(m.Prefix()); err != nil {
			log.Printf("error destroying bench collection: %v\n", err)
		}
		if err := mgr.BranchRemove(branch); err != nil {
			log.Printf("error removing bench branch: %v\n", err)
		}
		if err := mgr.VersionCleanUpGlobally(); err != nil {
			log.Printf("error cleaning up bench versions: %v\n", err)
		}
	}()
	value := make([]byte, max(benchValueSizeB, 1))
	getKey, iter := getKeys("kv")

	insertResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("insert") {
			return
		}

		b.SetParallelism(benchNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				if err := m.Insert(getKey(counter), value); err != nil {
					log.Printf("(insert) - error inserting key: %v\n", err)
				}
				counter++
			}
		})
	})

	results["insert"] = insertResult
	printResult("insert", insertResult)

	// make sure every key exists for the read tests
	iter(func(k []byte) {
		if err := m.Insert(k, value); err != nil {
			log.Printf("(get) - error inserting key: %v\n", err)
		}
	})
	pinned := branch + "-pinned"
	if err := m.VersionCreate(pinned); err != nil {
		return err
	}

	getResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("get") {
			return
		}

		b.SetParallelism(benchNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				if _, _, err := m.Get(getKey(counter)); err != nil {
					log.Printf("(get) - error getting key: %v\n", err)
				}
				counter++
			}
		})
	})

	results["get"] = getResult
	printResult("get", getResult)

	getAtResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("get-at") {
			return
		}

		b.SetParallelism(benchNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				if _, _, err := m.GetByBranchVersion(getKey(counter), branch, pinned); err != nil {
					log.Printf("(get-at) - error getting key: %v\n", err)
				}
				counter++
			}
		})
	})

	results["get-at"] = getAtResult
	printResult("get-at", getAtResult)

	scanResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("scan") {
			return
		}

		for i := 0; i < b.N; i++ {
			if _, err := m.Len(); err != nil {
				log.Printf("(scan) - error scanning collection: %v\n", err)
			}
		}
	})

	results["scan"] = scanResult
	printResult("scan", scanResult)

	forkResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("fork") {
			return
		}

		names := make([]string, 0, b.N)

		// cleanup
		b.Cleanup(func() {
			for _, name := range names {
				if err := mgr.BranchRemove(name); err != nil {
					log.Printf("(fork) - error removing branch: %v\n", err)
				}
			}
		})

		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			name := fmt.Sprintf("%s-fork-%d-%d", benchKeyPrefix, b.N, i)
			if err := mgr.BranchCreate(name, branch, true); err != nil {
				log.Printf("(fork) - error creating branch: %v\n", err)
				continue
			}
			names = append(names, name)
		}
	})

	results["fork"] = forkResult
	printResult("fork", forkResult)

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runAllocBench allocates prefixes from one arena per thread and
// checks that no prefix was handed out twice
func runAllocBench() error {
	seen := make([][]uint64, benchNumThreads)
	g, _ := errgroup.WithContext(context.Background())

	start := time.Now()
	for i := 0; i < benchNumThreads; i++ {
		i := i
		g.Go(func() error {
			arena := localStore.NewArena()
			got := make([]uint64, 0, benchAllocsPerGo)
			for j := 0; j < benchAllocsPerGo; j++ {
				p, err := arena.Alloc()
				if err != nil {
					return err
				}
				got = append(got, uint64(p))
			}
			seen[i] = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	unique := make(map[uint64]struct{}, benchNumThreads*benchAllocsPerGo)
	for _, got := range seen {
		for _, p := range got {
			if _, dup := unique[p]; dup {
				return fmt.Errorf("prefix %d was allocated twice", p)
			}
			unique[p] = struct{}{}
		}
	}

	nsPerOp := math.Max(float64(elapsed.Nanoseconds())/float64(len(unique)), 1)
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", "alloc", nsPerOp, time.Duration(nsPerOp), 1.0/(nsPerOp/1e9))
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range benchSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) []byte, func(func([]byte))) {
	keys := make([][]byte, benchKeySpread)
	for i := 0; i < benchKeySpread; i++ {
		keys[i] = []byte(fmt.Sprintf("%s-%s-%d", benchKeyPrefix, prefix, i))
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) []byte {
		return keys[i%benchKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func([]byte)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	cfg := localStore.Config()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Engine", "InMemory", "SyncWrites", "CacheMB", "BatchSize",
		"Threads", "ValueSizeB", "Keys Count", "Lookup Depth Mean",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	depth := mapx.LookupDepth().Snapshot().Mean()

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			string(cfg.Engine),
			strconv.FormatBool(cfg.InMemory),
			strconv.FormatBool(cfg.SyncWrites),
			strconv.Itoa(cfg.CacheMB),
			strconv.FormatUint(cfg.BatchSize, 10),
			strconv.Itoa(benchNumThreads),
			strconv.Itoa(benchValueSizeB),
			strconv.Itoa(benchKeySpread),
			fmt.Sprintf("%.2f", depth),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
