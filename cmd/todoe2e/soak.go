package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	_ "net/http/pprof" // Enable pprof endpoints
	"runtime"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thesyncim/todomvc-e2e/pkg/scenario"
)

// soakResult summarizes repeated suite runs.
type soakResult struct {
	Iterations int
	Diverged   int // Iterations whose outcomes differ from the first
	Failed     int // Iterations with a failing scenario or environment
	PeakHeapMB float64
	Duration   time.Duration
	Status     string
}

type soakFlags struct {
	iterations int
	duration   time.Duration
	pprofAddr  string
}

func newSoakCommand(a *app) *cobra.Command {
	var f soakFlags
	cmd := &cobra.Command{
		Use:   "soak",
		Short: "Re-run the suite against a fresh server and check outcomes never change",
		Long: `Runs the suite repeatedly, starting a new server for every iteration, and fails when
any iteration fails or its per-scenario outcomes differ from the first iteration's. Stops after
--iterations runs or once --duration has elapsed, whichever comes first.

Exposes pprof for live profiling when --pprof is set:

	curl http://localhost:6060/debug/pprof/heap > heap.pprof`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.iterations <= 0 && f.duration <= 0 {
				return errors.New("soak needs --iterations or --duration")
			}
			if f.pprofAddr != "" {
				go func() {
					if err := http.ListenAndServe(f.pprofAddr, nil); err != nil {
						a.logger.Warn().Err(err).Str("addr", f.pprofAddr).Msg("pprof server failed")
					}
				}()
			}

			res, err := a.soak(cmd.Context(), cmd.OutOrStdout(), f)
			if err != nil {
				return err
			}
			printSoakSummary(cmd.OutOrStdout(), res)
			if res.Status != "PASS" {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&f.iterations, "iterations", "n", 5, "Number of suite runs (0 = bounded by --duration)")
	cmd.Flags().DurationVar(&f.duration, "duration", 0, "Stop starting new runs after this long (e.g. 30m)")
	cmd.Flags().StringVar(&f.pprofAddr, "pprof", "", "Serve pprof on this address, e.g. :6060")
	return cmd
}

// runOnce runs the whole suite with a freshly built server.
type runOnce func(ctx context.Context) (scenario.Report, error)

func (a *app) soak(ctx context.Context, w io.Writer, f soakFlags) (soakResult, error) {
	scenarios, err := loadScenarios(a.cfg.Run.Builtin, a.cfg.Run.ScenarioFiles)
	if err != nil {
		return soakResult{}, err
	}
	metrics := scenario.NewMetrics()
	once := func(ctx context.Context) (scenario.Report, error) {
		s, err := newSuite(a.cfg, a.logger, metrics)
		if err != nil {
			return scenario.Report{}, err
		}
		return s.Run(ctx, scenarios)
	}

	res := soakLoop(ctx, w, f, once)

	if a.cfg.Metrics.File != "" {
		if err := metrics.WriteTextfile(a.cfg.Metrics.File); err != nil {
			a.logger.Error().Err(err).Str("file", a.cfg.Metrics.File).Msg("failed to write metrics")
		}
	}
	return res, nil
}

func soakLoop(ctx context.Context, w io.Writer, f soakFlags, run runOnce) soakResult {
	res := soakResult{Status: "PASS"}
	start := time.Now()
	var (
		baseline map[string]scenario.State
		memStats runtime.MemStats
	)

	for i := 0; f.iterations <= 0 || i < f.iterations; i++ {
		if ctx.Err() != nil {
			break
		}
		if f.duration > 0 && time.Since(start) >= f.duration {
			break
		}

		report, _ := run(ctx)
		if ctx.Err() != nil {
			// Interrupted mid-run; the partial report says nothing about idempotence.
			break
		}
		res.Iterations++

		runtime.ReadMemStats(&memStats)
		if heapMB := float64(memStats.HeapAlloc) / 1024 / 1024; heapMB > res.PeakHeapMB {
			res.PeakHeapMB = heapMB
		}

		outcomes := report.Outcomes()
		status := color.GreenString("same")
		if baseline == nil {
			baseline = outcomes
			status = "baseline"
		} else if !maps.Equal(baseline, outcomes) {
			res.Diverged++
			res.Status = "FAIL"
			status = color.RedString("diverged: %s", describeDiff(baseline, outcomes))
		}
		if !report.OK() {
			res.Failed++
			res.Status = "FAIL"
		}

		fmt.Fprintf(w, "[%s] iteration %d: %d passed, %d failed, %s\n",
			formatDuration(time.Since(start)), i+1, report.Passed(), report.Failed(), status)
	}

	res.Duration = time.Since(start)
	if res.Iterations == 0 {
		res.Status = "FAIL"
	}
	return res
}

// describeDiff lists scenarios whose state differs between two runs.
func describeDiff(want, got map[string]scenario.State) string {
	var diffs []string
	for _, name := range slices.Sorted(maps.Keys(want)) {
		if g, ok := got[name]; !ok {
			diffs = append(diffs, fmt.Sprintf("%q missing", name))
		} else if g != want[name] {
			diffs = append(diffs, fmt.Sprintf("%q %s -> %s", name, want[name], g))
		}
	}
	for _, name := range slices.Sorted(maps.Keys(got)) {
		if _, ok := want[name]; !ok {
			diffs = append(diffs, fmt.Sprintf("%q new", name))
		}
	}
	return fmt.Sprint(diffs)
}

func printSoakSummary(w io.Writer, r soakResult) {
	fmt.Fprintf(w, "\nSoak Summary\n")
	fmt.Fprintf(w, "============\n")
	fmt.Fprintf(w, "Duration:    %s\n", formatDuration(r.Duration))
	fmt.Fprintf(w, "Iterations:  %d\n", r.Iterations)
	fmt.Fprintf(w, "Diverged:    %d\n", r.Diverged)
	fmt.Fprintf(w, "Failing:     %d\n", r.Failed)
	fmt.Fprintf(w, "Peak heap:   %.1f MB\n", r.PeakHeapMB)
	if r.Status == "PASS" {
		fmt.Fprintf(w, "Status:      %s\n", color.GreenString(r.Status))
	} else {
		fmt.Fprintf(w, "Status:      %s\n", color.RedString(r.Status))
	}
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
