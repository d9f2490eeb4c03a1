// Package suite owns the process-wide environment of a scenario run: the
// virtual display, the server for the application under test and the browser
// session factory. It brings them up in order, runs the scenarios and tears
// everything down on every path.
package suite

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/phuslu/log"

	"github.com/thesyncim/todomvc-e2e/pkg/contract"
	"github.com/thesyncim/todomvc-e2e/pkg/display"
	"github.com/thesyncim/todomvc-e2e/pkg/scenario"
)

// AppServer serves the application under test.
type AppServer interface {
	Start() (string, error)
	Shutdown(ctx context.Context) error
	// URL is the base URL browsers load once the server is started.
	URL() string
}

// FactoryBuilder builds the session factory once the display is up. env holds
// the variables browser processes need to reach the display.
type FactoryBuilder func(env []string) (scenario.SessionFactory, error)

// Suite runs scenarios against a freshly started environment.
type Suite struct {
	Display display.Display // nil runs without a display
	Server  AppServer
	Factory FactoryBuilder

	// Preflight lists selectors the served page must contain before any
	// browser starts. Empty skips the check.
	Preflight  []string
	HTTPClient *http.Client

	RunnerOptions   []scenario.Option
	Logger          *log.Logger
	ShutdownTimeout time.Duration // Default: 5s
}

// Run starts the display and the server, checks the page contract, runs the
// scenarios and stops everything again. Setup and teardown failures are
// returned as *scenario.EnvironmentError and stored in Report.Err, so the
// report's exit code is non-zero.
func (s *Suite) Run(ctx context.Context, scenarios []scenario.Scenario) (report scenario.Report, err error) {
	logger := s.Logger
	if logger == nil {
		logger = &log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}}
	}
	if s.Server == nil || s.Factory == nil {
		err = errors.New("suite needs a server and a session factory")
		return scenario.Report{Err: err}, err
	}

	disp := s.Display
	if disp == nil {
		disp = display.None{}
	}

	defer func() {
		if err != nil {
			report.Err = err
		}
	}()

	if err = disp.Start(ctx); err != nil {
		return report, asEnv("display", err)
	}
	logger.Debug().Strs("env", disp.Env()).Msg("display started")
	defer func() {
		if stopErr := disp.Stop(); stopErr != nil {
			logger.Error().Err(stopErr).Msg("failed to stop display")
			err = errors.Join(err, asEnv("display", stopErr))
		}
	}()

	addr, err := s.Server.Start()
	if err != nil {
		return report, asEnv("server", err)
	}
	logger.Info().Str("addr", addr).Str("url", s.Server.URL()).Msg("application server started")
	defer func() {
		timeout := s.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if stopErr := s.Server.Shutdown(shutdownCtx); stopErr != nil {
			logger.Error().Err(stopErr).Msg("failed to stop application server")
			err = errors.Join(err, asEnv("server", stopErr))
		}
	}()

	baseURL := s.Server.URL()
	if len(s.Preflight) > 0 {
		if err = contract.Check(ctx, s.HTTPClient, baseURL, s.Preflight); err != nil {
			return report, err
		}
		logger.Debug().Strs("selectors", s.Preflight).Msg("page contract satisfied")
	}

	factory, err := s.Factory(disp.Env())
	if err != nil {
		return report, asEnv("browser", err)
	}

	runner, err := scenario.NewRunner(factory, baseURL, append([]scenario.Option{scenario.WithLogger(logger)}, s.RunnerOptions...)...)
	if err != nil {
		return report, err
	}

	report = runner.RunAll(ctx, scenarios)
	logger.Info().Int("passed", report.Passed()).Int("failed", report.Failed()).Msg("suite finished")
	return report, nil
}

func asEnv(component string, err error) error {
	var ee *scenario.EnvironmentError
	if errors.As(err, &ee) {
		return err
	}
	return &scenario.EnvironmentError{Component: component, Err: err}
}
