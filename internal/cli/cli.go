package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"peakload/internal/driver"
	"peakload/internal/report"
	"peakload/internal/search"
	"peakload/internal/session"
	"peakload/internal/stats"
	"peakload/internal/storage"
)

// Options carries the already-parsed configuration for a headless run.
type Options struct {
	BaseURL string
	Users   int
	RampUp  time.Duration
	Timeout time.Duration

	FindMax  bool
	Strategy search.Strategy
	SLA      search.SLA

	// OutPrefix enables file reports when non-empty.
	OutPrefix string

	// Persist enables the bbolt session store.
	Persist bool
}

func printHeader(opts Options) {
	fmt.Printf("Target      : %s\n", opts.BaseURL)
	if opts.FindMax {
		fmt.Printf("Mode        : find-max (%s)\n", opts.Strategy)
		fmt.Printf("SLA         : %.4f%% success, %.2fs latency ceiling\n",
			opts.SLA.TargetSuccessRate()*100, opts.SLA.ResponseTimeThreshold)
	} else {
		fmt.Printf("Mode        : single run\n")
		fmt.Printf("Users       : %d (ramp-up %s)\n", opts.Users, opts.RampUp)
	}
}

// Start runs either a single load test or the throughput search.
func Start(opts Options) error {
	printHeader(opts)

	client := session.NewClient(opts.BaseURL, opts.Timeout)
	updates := make(driver.SnapshotChan, 100)
	d := driver.New(client.Run, updates)

	ctx := context.Background()
	client.WarmCatalog(ctx)
	if names := client.Activities(); len(names) > 0 {
		fmt.Printf("Activities  : %d available\n", len(names))
	} else {
		fmt.Printf("Activities  : catalog unavailable, using %q\n", session.FallbackActivity)
	}

	var store *storage.Store
	if opts.Persist {
		var err error
		store, err = storage.OpenSession()
		if err != nil {
			// Persistence is best-effort; the run itself matters more.
			fmt.Fprintf(os.Stderr, "warning: session store unavailable: %v\n", err)
		} else {
			defer store.Close()
			fmt.Printf("Session db  : %s\n", store.Path())
		}
	}

	if opts.FindMax {
		return findMax(ctx, opts, d, updates, store)
	}
	return runSingle(ctx, opts, d, updates, store)
}

func runSingle(ctx context.Context, opts Options, d *driver.Driver, updates driver.SnapshotChan, store *storage.Store) error {
	stop := startProgress(updates)
	rs, err := d.Run(ctx, opts.Users, opts.RampUp)
	stop()
	if err != nil {
		return err
	}

	report.PrintRunSummary(os.Stdout, rs)

	if store != nil {
		trial := search.Trial{
			Concurrency:       rs.ConcurrentUsers,
			SuccessRate:       rs.OverallSuccessRate,
			ErrorRate:         1 - rs.OverallSuccessRate,
			RequestsPerSecond: rs.RequestsPerSecond,
			SLAMet:            opts.SLA.Met(rs),
		}
		if err := store.SaveTrial(trial, rs); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not persist run: %v\n", err)
		}
	}

	if opts.OutPrefix != "" {
		path := opts.OutPrefix + "_run.json"
		if err := report.WriteJSON(path, rs); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Printf("\nDetailed results saved to: %s\n", path)
	}
	return nil
}

func findMax(ctx context.Context, opts Options, d *driver.Driver, updates driver.SnapshotChan, store *storage.Store) error {
	cfg := search.DefaultConfig()
	cfg.SLA = opts.SLA
	cfg.Strategy = opts.Strategy

	finder, err := search.NewFinder(cfg, func(ctx context.Context, users int, rampUp time.Duration) (*stats.RunStats, error) {
		fmt.Printf("\nRunning %d users (ramp-up %s)\n", users, rampUp)
		stop := startProgress(updates)
		rs, err := d.Run(ctx, users, rampUp)
		stop()
		return rs, err
	})
	if err != nil {
		return err
	}

	finder.OnTrial = func(trial search.Trial, rs *stats.RunStats) {
		verdict := "pass"
		if !trial.SLAMet {
			verdict = "FAIL"
		}
		fmt.Printf("  -> %.4f%% success at %.2f rps [%s]\n",
			trial.SuccessRate*100, trial.RequestsPerSecond, verdict)

		if store != nil {
			if err := store.SaveTrial(trial, rs); err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not persist trial: %v\n", err)
			}
		}
	}

	result, err := finder.Find(ctx)
	if err != nil {
		return err
	}

	report.PrintSearchSummary(os.Stdout, result, opts.SLA)

	if store != nil {
		if _, err := store.SaveSearch(opts.SLA, result); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not persist search: %v\n", err)
		}
	}

	if opts.OutPrefix != "" {
		jsonPath := opts.OutPrefix + "_search.json"
		if err := report.WriteJSON(jsonPath, result); err != nil {
			return fmt.Errorf("writing %s: %w", jsonPath, err)
		}
		csvPath := opts.OutPrefix + "_trials.csv"
		if err := report.WriteTrialsCSV(csvPath, result.Trials); err != nil {
			return fmt.Errorf("writing %s: %w", csvPath, err)
		}
		fmt.Printf("\nReports saved to %s and %s\n", jsonPath, csvPath)
	}
	return nil
}

// startProgress consumes snapshots and redraws a single status line until the
// returned stop function is called.
func startProgress(updates driver.SnapshotChan) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		for {
			select {
			case <-done:
				// Drain whatever is left so the channel stays reusable
				for {
					select {
					case <-updates:
					default:
						return
					}
				}
			case s := <-updates:
				fmt.Printf("\r  Active: %3d | Reqs: %6d | OK: %6d | Err: %4d | p95: %7.1fms",
					s.Active, s.Requests, s.Success, s.Fail, s.P95Ms)
			}
		}
	}()

	return func() {
		close(done)
		<-finished
		fmt.Println()
	}
}
