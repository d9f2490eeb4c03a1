package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"github.com/thesyncim/todomvc-e2e/cmd/todoserve/server"
	"github.com/thesyncim/todomvc-e2e/pkg/browser"
	"github.com/thesyncim/todomvc-e2e/pkg/config"
	"github.com/thesyncim/todomvc-e2e/pkg/contract"
	"github.com/thesyncim/todomvc-e2e/pkg/display"
	"github.com/thesyncim/todomvc-e2e/pkg/scenario"
	"github.com/thesyncim/todomvc-e2e/pkg/snapshot"
	"github.com/thesyncim/todomvc-e2e/pkg/suite"
)

// newServer builds the static server for cfg. Each call returns a server that
// has never been started.
func newServer(cfg *config.Config, logger *log.Logger) (*server.Server, error) {
	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.ListenAddr()
	srvCfg.Root = cfg.Server.Root
	srvCfg.Logger = logger
	return server.NewServer(srvCfg)
}

func newDisplay(cfg *config.Config) display.Display {
	if !cfg.Display.Enabled {
		return display.None{}
	}
	return display.NewXvfb(cfg.Display.Num, cfg.Display.Screen)
}

func browserConfig(cfg *config.Config, env []string) browser.Config {
	bc := browser.DefaultConfig()
	bc.Driver = browser.Driver(cfg.Browser.Driver)
	bc.Headless = cfg.Browser.Headless
	bc.Bin = cfg.Browser.Bin
	bc.NoSandbox = cfg.Browser.NoSandbox
	bc.Env = env
	if cfg.Browser.Width > 0 && cfg.Browser.Height > 0 {
		bc.Viewport = browser.Viewport{Width: cfg.Browser.Width, Height: cfg.Browser.Height}
	}
	return bc
}

// snapshotter returns the snapshot sink configured in cfg, or nil when
// snapshots are disabled.
func snapshotter(cfg *config.Config) scenario.Snapshotter {
	var sinks snapshot.Multi
	if cfg.Snapshot.Dir != "" {
		sinks = append(sinks, &snapshot.DirStore{Dir: cfg.Snapshot.Dir})
	}
	if cfg.Snapshot.Endpoint != "" {
		sinks = append(sinks, &snapshot.HTTPUploader{Endpoint: cfg.Snapshot.Endpoint, Token: cfg.Snapshot.Token})
	}
	if len(sinks) == 0 {
		return nil
	}
	return snapshot.NewCollector(sinks)
}

func runnerOptions(cfg *config.Config, metrics *scenario.Metrics, extra ...scenario.Option) []scenario.Option {
	opts := []scenario.Option{
		scenario.WithStepTimeout(time.Duration(cfg.Run.StepTimeout)),
		scenario.WithScenarioTimeout(time.Duration(cfg.Run.ScenarioTimeout)),
		scenario.WithParallel(cfg.Run.Parallel),
		scenario.WithMetrics(metrics),
	}
	if s := snapshotter(cfg); s != nil {
		opts = append(opts, scenario.WithSnapshotter(s))
	}
	return append(opts, extra...)
}

// newSuite assembles a suite with a fresh server.
func newSuite(cfg *config.Config, logger *log.Logger, metrics *scenario.Metrics, extra ...scenario.Option) (*suite.Suite, error) {
	srv, err := newServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	s := &suite.Suite{
		Display: newDisplay(cfg),
		Server:  srv,
		Factory: func(env []string) (scenario.SessionFactory, error) {
			return browser.NewFactory(browserConfig(cfg, env))
		},
		RunnerOptions: runnerOptions(cfg, metrics, extra...),
		Logger:        logger,
	}
	if cfg.Run.Preflight {
		s.Preflight = contract.DefaultSelectors
	}
	return s, nil
}

// loadScenarios returns the built-in scenarios (when enabled) followed by
// those in files. Names must be unique across all sources.
func loadScenarios(builtin bool, files []string) ([]scenario.Scenario, error) {
	var all []scenario.Scenario
	if builtin {
		all = append(all, scenario.TodoMVC()...)
	}
	for _, path := range files {
		scs, err := scenario.LoadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, scs...)
	}

	seen := make(map[string]struct{}, len(all))
	for _, sc := range all {
		if _, dup := seen[sc.Name]; dup {
			return nil, fmt.Errorf("duplicate scenario name %q", sc.Name)
		}
		seen[sc.Name] = struct{}{}
	}
	if len(all) == 0 {
		return nil, errors.New("no scenarios to run")
	}
	return all, nil
}
