package main

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/thesyncim/todomvc-e2e/pkg/config"
	"github.com/thesyncim/todomvc-e2e/pkg/scenario"
)

// runFlags override the matching config values when set on the command line.
type runFlags struct {
	driver      string
	headless    bool
	parallel    int
	files       []string
	noBuiltin   bool
	snapshotDir string
	display     bool
	metricsFile string
	noProgress  bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.driver, "driver", "d", "", "Browser driver: rod or chromedp")
	fs.BoolVar(&f.headless, "headless", true, "Run Chrome headless")
	fs.IntVarP(&f.parallel, "parallel", "p", 0, "Scenarios to run at once, each in its own browser")
	fs.StringSliceVarP(&f.files, "file", "f", nil, "YAML scenario file (repeatable)")
	fs.BoolVar(&f.noBuiltin, "no-builtin", false, "Skip the built-in TodoMVC scenarios")
	fs.StringVar(&f.snapshotDir, "snapshot-dir", "", "Write snapshots under this directory")
	fs.BoolVar(&f.display, "xvfb", false, "Start an Xvfb display for a headed browser")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	fs.BoolVar(&f.noProgress, "no-progress", false, "Disable the progress bar")
}

// apply copies every flag the user set onto cfg and validates the result.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	fs := cmd.Flags()
	if fs.Changed("driver") {
		cfg.Browser.Driver = f.driver
	}
	if fs.Changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if fs.Changed("parallel") {
		cfg.Run.Parallel = f.parallel
	}
	if fs.Changed("file") {
		cfg.Run.ScenarioFiles = append(cfg.Run.ScenarioFiles, f.files...)
	}
	if f.noBuiltin {
		cfg.Run.Builtin = false
	}
	if fs.Changed("snapshot-dir") {
		cfg.Snapshot.Dir = f.snapshotDir
	}
	if fs.Changed("xvfb") {
		cfg.Display.Enabled = f.display
	}
	if fs.Changed("metrics-file") {
		cfg.Metrics.File = f.metricsFile
	}
	return cfg.Validate()
}

func newRunCommand(a *app) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scenarios once",
		Long:  "Serve the application, run every scenario in a fresh browser session and exit non-zero if any scenario fails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.apply(cmd, a.cfg); err != nil {
				return err
			}
			return a.run(cmd, !flags.noProgress)
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) run(cmd *cobra.Command, showProgress bool) error {
	cfg := a.cfg
	scenarios, err := loadScenarios(cfg.Run.Builtin, cfg.Run.ScenarioFiles)
	if err != nil {
		return err
	}

	metrics := scenario.NewMetrics()
	var extra []scenario.Option
	if showProgress {
		p := newProgress(os.Stderr, len(scenarios), "Running scenarios")
		extra = append(extra, scenario.WithResultHook(p.observe))
	}

	s, err := newSuite(cfg, a.logger, metrics, extra...)
	if err != nil {
		return err
	}
	a.logger.Info().
		Str("driver", cfg.Browser.Driver).
		Str("url", cfg.BaseURL()).
		Int("scenarios", len(scenarios)).
		Int("parallel", cfg.Run.Parallel).
		Msg("starting suite")

	report, _ := s.Run(cmd.Context(), scenarios)
	printReport(cmd.OutOrStdout(), report)

	if cfg.Metrics.File != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.File); err != nil {
			a.logger.Error().Err(err).Str("file", cfg.Metrics.File).Msg("failed to write metrics")
		}
	}

	if code := report.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func newListCommand(a *app) *cobra.Command {
	var (
		files     []string
		noBuiltin bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scenarios without running them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			builtin := a.cfg.Run.Builtin && !noBuiltin
			scenarios, err := loadScenarios(builtin, slices.Concat(a.cfg.Run.ScenarioFiles, files))
			if err != nil {
				return err
			}
			printScenarios(cmd.OutOrStdout(), scenarios)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "YAML scenario file (repeatable)")
	cmd.Flags().BoolVar(&noBuiltin, "no-builtin", false, "Skip the built-in TodoMVC scenarios")
	return cmd
}

func printScenarios(w io.Writer, scenarios []scenario.Scenario) {
	for _, sc := range scenarios {
		fmt.Fprintf(w, "%-50s %d steps\n", sc.Name, len(sc.Steps))
	}
}
