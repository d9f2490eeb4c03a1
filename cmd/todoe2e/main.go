// TodoMVC end-to-end suite runner
//
// Serves the application under test, drives a real Chrome through the
// built-in TodoMVC scenarios (plus any YAML scenario files) and exits
// non-zero when a scenario or the environment fails:
//
//	go run ./cmd/todoe2e run
//	go run ./cmd/todoe2e run --driver chromedp --file extra.yaml
//	go run ./cmd/todoe2e soak --iterations 20
//	go run ./cmd/todoe2e serve
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/thesyncim/todomvc-e2e/pkg/config"
)

var version = "dev"

// exitError carries a process exit status without an error message.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// app is the state shared by every subcommand.
type app struct {
	configPath string
	envFile    string

	cfg    *config.Config
	logger *log.Logger
}

func (a *app) load(*cobra.Command, []string) error {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cfg.Log.Level)
	return nil
}

func newLogger(level string) *log.Logger {
	return &log.Logger{
		Level:  log.ParseLevel(level),
		Writer: &log.ConsoleWriter{Writer: os.Stderr, ColorOutput: true, EndWithMessage: true},
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "todoe2e",
		Short:             "End-to-end tests for TodoMVC in a real browser",
		Long:              `Runs scripted browser scenarios against a TodoMVC application served on a fixed local port and reports a pass/fail verdict per scenario.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "TOML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file with TODOMVC_* overrides (ignored when missing)")

	root.AddCommand(
		newRunCommand(a),
		newListCommand(a),
		newServeCommand(a),
		newSoakCommand(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
