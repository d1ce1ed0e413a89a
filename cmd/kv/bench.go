package kv

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/kvs/cmd/util"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/lib/store/autosave"
	"github.com/ValentinKolb/kvs/lib/store/boltstore"
	"github.com/ValentinKolb/kvs/lib/store/sqlstore"
	vm "github.com/VictoriaMetrics/metrics"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Measures write and read throughput of the configured store",
		Long: `Measures write and read throughput of the configured store.

Writes are made in bursts without waiting for durability, the store
coalesces the commits (or saves) of a burst. The report shows how many
commits the writes needed.`,
		Args:    cobra.NoArgs,
		PreRunE: processBenchConfig,
		RunE:    runBench,
	}
	benchKeyPrefix = "__bench"
	benchOps       = 10_000
	benchKeySpread = 100
	benchValueSize = 64
	benchSkip      = make([]string, 0)
)

func init() {
	key := "ops"
	benchCmd.Flags().Int(key, 10_000, util.WrapString("Number of operations per benchmark"))
	key = "keys"
	benchCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the benchmarks"))
	key = "value-size"
	benchCmd.Flags().Int(key, 64, util.WrapString("Size of the values written by the set-bytes benchmark (in bytes)"))
	key = "skip"
	benchCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "csv"
	benchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "prom"
	benchCmd.Flags().Bool(key, false, util.WrapString("Print the flush counters in Prometheus text format after the run"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	benchOps = viper.GetInt("ops")
	benchKeySpread = viper.GetInt("keys")
	benchValueSize = viper.GetInt("value-size")
	benchSkip = strings.Split(viper.GetString("skip"), ",")

	if benchOps <= 0 || benchKeySpread <= 0 {
		return fmt.Errorf("ops and keys must be positive")
	}
	return nil
}

type benchResult struct {
	name    string
	timer   metrics.Timer
	commits uint64
	skipped bool
}

func runBench(_ *cobra.Command, _ []string) error {
	fmt.Println("Benchmark for kvs stores")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(storeCmdConfig.String())
	fmt.Printf("Operations: %d, Keys: %d\n", benchOps, benchKeySpread)
	fmt.Println()

	value := make([]byte, benchValueSize)
	getKey, iter := getKeys()

	benchmarks := []struct {
		name string
		op   func(i int) error
	}{
		{"set", func(i int) error { return kvStore.SetLong(getKey(i), int64(i)) }},
		{"set-bytes", func(i int) error { return kvStore.SetBytes(getKey(i), value) }},
		{"get", func(i int) error { _, _, err := kvStore.TryGetLong(getKey(i)); return err }},
		{"has", func(i int) error { _, err := kvStore.Has(getKey(i)); return err }},
		{"delete", func(i int) error { return kvStore.Delete(getKey(i)) }},
	}

	results := make([]benchResult, 0, len(benchmarks))
	for _, b := range benchmarks {
		result := benchResult{name: b.name, timer: metrics.NewTimer(), skipped: shouldSkip(b.name)}
		if !result.skipped {
			before := commitCount(kvStore.IStore)
			for i := 0; i < benchOps; i++ {
				var err error
				result.timer.Time(func() { err = b.op(i) })
				if err != nil {
					return fmt.Errorf("(%s) operation %d failed: %w", b.name, i, err)
				}
			}
			if err := kvStore.Flush(); err != nil {
				return err
			}
			result.commits = commitCount(kvStore.IStore) - before
		}
		results = append(results, result)
		printResult(result)
	}

	// cleanup
	iter(func(k string) {
		if err := kvStore.Delete(k); err != nil {
			Logger.Warningf("error deleting key %s: %v", k, err)
		}
	})

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return err
		}
	}

	if viper.GetBool("prom") {
		fmt.Println()
		vm.WritePrometheus(os.Stdout, false)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range benchSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// getKeys creates the benchmark keys and functions to work with them
func getKeys() (func(int) string, func(func(string))) {
	keys := make([]string, benchKeySpread)
	for i := 0; i < benchKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%d", benchKeyPrefix, i)
	}

	getKey := func(i int) string {
		return keys[i%benchKeySpread]
	}

	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// commitCount returns the number of commits (or saves) the store has made so far
func commitCount(s store.IStore) uint64 {
	switch s := s.(type) {
	case *sqlstore.Store:
		return s.Stats().Commits
	case *boltstore.Store:
		return s.Stats().Commits
	case *autosave.Store:
		return s.Stats().Flushes
	default:
		return 0
	}
}

// printResult prints the result of a benchmark in a formatted way
func printResult(r benchResult) {
	if r.skipped {
		fmt.Printf("%-12sskipped\n", r.name)
		return
	}
	fmt.Printf("%-12s%8.0f ns/op  p99 %-12s%10.0f ops/sec  %d commits\n",
		r.name,
		r.timer.Mean(),
		time.Duration(r.timer.Percentile(0.99)),
		opsPerSec(r.timer.Mean()),
		r.commits,
	)
}

func opsPerSec(nsPerOp float64) float64 {
	if nsPerOp <= 0 {
		return 0
	}
	return 1e9 / nsPerOp
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results []benchResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{
		"Test", "NsPerOp", "P99Ns", "OpsPerSec", "Commits", "Skipped",
		"Backend", "Path", "Operations", "Keys",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, r := range results {
		var mean, p99 float64
		if !r.skipped {
			mean, p99 = r.timer.Mean(), r.timer.Percentile(0.99)
		}
		row := []string{
			r.name,
			strconv.FormatFloat(mean, 'f', 0, 64),
			strconv.FormatFloat(p99, 'f', 0, 64),
			strconv.FormatFloat(opsPerSec(mean), 'f', 0, 64),
			strconv.FormatUint(r.commits, 10),
			strconv.FormatBool(r.skipped),
			string(storeCmdConfig.Backend),
			storeCmdConfig.Path,
			strconv.Itoa(benchOps),
			strconv.Itoa(benchKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
