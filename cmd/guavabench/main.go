// Loads the skip list index with generated keys and reports timings plus the
// per-level population, which should decay roughly geometrically with p.

package main

import (
	"cmp"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/avamsi/ergo/assert"
	"github.com/olekukonko/tablewriter"

	"github.com/guavadb/guava/pkg/storage"
	"github.com/guavadb/guava/pkg/utils"
)

var (
	keyCount      = flag.Int("n", 100_000, "Number of keys to insert per run.")
	promotionP    = flag.Float64("p", 0.5, "Skip list level promotion probability.")
	initialLevels = flag.Int("initial_levels", 4, "Starting level count of the skip list.")
	runs          = flag.Int("runs", 3, "How many times to repeat the benchmark.")
	seed          = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed for the key shuffle.")
	csvOut        = flag.String("out", "", "Optional path to write per-run timings as CSV.")
)

// runResult holds one benchmark run's measurements.
type runResult struct {
	insertTotal time.Duration
	lookupTotal time.Duration
	levels      int
}

// loadRun inserts a shuffled key range and then looks every key back up.
func loadRun(rng *rand.Rand) (runResult, error) {
	list, err := storage.NewSkipList[int, int](cmp.Compare, *initialLevels, *promotionP)
	if err != nil {
		return runResult{}, err
	}
	keys := rng.Perm(*keyCount)

	started := time.Now()
	for _, key := range keys {
		list.Insert(key, key)
	}
	insertTotal := time.Since(started)

	started = time.Now()
	for _, key := range keys {
		if _, found := list.Get(key); !found {
			return runResult{}, fmt.Errorf("inserted key %d was not found", key)
		}
	}
	lookupTotal := time.Since(started)

	return runResult{insertTotal: insertTotal, lookupTotal: lookupTotal, levels: list.Levels()}, nil
}

// levelCensus runs one more load and returns the per-level entry counts.
func levelCensus(rng *rand.Rand) ([]int, error) {
	list, err := storage.NewSkipList[int, int](cmp.Compare, *initialLevels, *promotionP)
	if err != nil {
		return nil, err
	}
	for _, key := range rng.Perm(*keyCount) {
		list.Insert(key, key)
	}
	return list.LevelCounts(), nil
}

func opsPerSecond(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

func main() {
	flag.Parse()
	utils.InitLogging()
	rng := rand.New(rand.NewPCG(*seed, 0))

	results := make([]runResult, 0, *runs)
	for run := 0; run < *runs; run++ {
		result, err := loadRun(rng)
		if err != nil {
			fmt.Fprintln(os.Stderr, "benchmark run failed:", err)
			os.Exit(1)
		}
		results = append(results, result)
	}

	rows := make([][]string, 0, len(results))
	for run, result := range results {
		rows = append(rows, []string{
			strconv.Itoa(run + 1),
			fmt.Sprintf("%.2f", float64(result.insertTotal.Microseconds())/1000),
			fmt.Sprintf("%.2f", float64(result.lookupTotal.Microseconds())/1000),
			fmt.Sprintf("%.0f", opsPerSecond(*keyCount, result.insertTotal)),
			fmt.Sprintf("%.0f", opsPerSecond(*keyCount, result.lookupTotal)),
			strconv.Itoa(result.levels),
		})
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Run", "Insert(ms)", "Lookup(ms)", "Insert Ops/s", "Lookup Ops/s", "Levels"})
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()

	counts, err := levelCensus(rng)
	if err != nil {
		fmt.Fprintln(os.Stderr, "level census failed:", err)
		os.Exit(1)
	}
	censusRows := make([][]string, 0, len(counts))
	for lvl, count := range counts {
		censusRows = append(censusRows, []string{strconv.Itoa(lvl), strconv.Itoa(count)})
	}
	censusTable := tablewriter.NewWriter(os.Stdout)
	censusTable.SetHeader([]string{"Level", "Entries"})
	censusTable.SetAlignment(tablewriter.ALIGN_CENTER)
	censusTable.SetAutoWrapText(false)
	censusTable.AppendBulk(censusRows)
	censusTable.Render()

	if *csvOut != "" {
		f := assert.Ok(os.Create(*csvOut))
		defer func() { assert.Nil(f.Close()) }()
		assert.Ok(fmt.Fprintln(f, "run,insert_ms,lookup_ms,levels"))
		for run, result := range results {
			assert.Ok(fmt.Fprintf(f, "%d,%.3f,%.3f,%d\n", run+1,
				result.insertTotal.Seconds()*1000, result.lookupTotal.Seconds()*1000, result.levels))
		}
	}
}
