// Command dirprofile-bench compares walktree's parallel traversal against
// the standard library's filepath.WalkDir over the same tree, reporting
// wall-clock time and entries/sec for each.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/arborfs/walktree/walktree"
)

func main() {
	dir := flag.String("dir", ".", "Directory to walk")
	workers := flag.Int("workers", 8, "Worker pool size for the walktree run")
	runs := flag.Int("runs", 3, "Number of runs per walker to average")
	quiet := flag.Bool("quiet", false, "Suppress the progress spinner")
	flag.Parse()

	fmt.Printf("dir=%s workers=%d runs=%d\n\n", *dir, *workers, *runs)

	stdResult, err := benchStdlib(*dir, *runs, *quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "filepath.WalkDir failed: %v\n", err)
		os.Exit(1)
	}
	printResult("filepath.WalkDir", stdResult)

	wtResult, err := benchWalktree(*dir, *workers, *runs, *quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "walktree.WalkDir failed: %v\n", err)
		os.Exit(1)
	}
	printResult(fmt.Sprintf("walktree.WalkDir(workers=%d)", *workers), wtResult)

	if stdResult.avg > 0 && wtResult.avg > 0 {
		speedup := float64(stdResult.avg) / float64(wtResult.avg)
		fmt.Printf("\nspeedup: %.2fx\n", speedup)
	}
}

type benchResult struct {
	entries int64
	avg     time.Duration
}

func printResult(label string, r benchResult) {
	fmt.Printf("%-32s entries=%d avg=%v", label, r.entries, r.avg)
	if r.avg.Seconds() > 0 {
		fmt.Printf(" throughput=%.0f entries/sec", float64(r.entries)/r.avg.Seconds())
	}
	fmt.Println()
}

func benchStdlib(dir string, runs int, quiet bool) (benchResult, error) {
	var total time.Duration
	var entries int64

	for i := 0; i < runs; i++ {
		bar := newSpinner(quiet, "filepath.WalkDir")
		var count int64
		start := time.Now()
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			count++
			bar.Add(1)
			return nil
		})
		total += time.Since(start)
		bar.Finish()
		if err != nil {
			return benchResult{}, err
		}
		entries = count
	}

	return benchResult{entries: entries, avg: total / time.Duration(runs)}, nil
}

func benchWalktree(dir string, workers, runs int, quiet bool) (benchResult, error) {
	var total time.Duration
	var entries int64

	for i := 0; i < runs; i++ {
		bar := newSpinner(quiet, "walktree.WalkDir")
		var count int64

		start := time.Now()
		it, err := walktree.WalkDir[struct{}, struct{}](dir).
			Parallelism(walktree.NewPool(workers)).
			TryIter()
		if err != nil {
			return benchResult{}, err
		}
		for {
			_, _, ok := it.Next()
			if !ok {
				break
			}
			atomic.AddInt64(&count, 1)
			bar.Add(1)
		}
		it.Close()
		total += time.Since(start)
		bar.Finish()

		entries = count
	}

	return benchResult{entries: entries, avg: total / time.Duration(runs)}, nil
}

func newSpinner(quiet bool, description string) *progressbar.ProgressBar {
	if quiet {
		return progressbar.DefaultSilent(-1)
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionThrottle(50*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionClearOnFinish(),
	)
}
