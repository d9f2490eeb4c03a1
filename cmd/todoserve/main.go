// TodoMVC static server
//
// Serves the application under test on a fixed port (default 8000,
// TODOMVC_PORT overrides) so browsers and e2e runs can reach it:
//
//	go run ./cmd/todoserve                 # bundled TodoMVC page
//	go run ./cmd/todoserve -root ./dist    # a built TodoMVC app
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"

	"github.com/thesyncim/todomvc-e2e/cmd/todoserve/server"
	"github.com/thesyncim/todomvc-e2e/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "TOML config file")
	root := flag.String("root", "", "Directory to serve (default: bundled TodoMVC page)")
	flag.Parse()

	logger := &log.Logger{
		Level:  log.InfoLevel,
		Writer: &log.ConsoleWriter{ColorOutput: true, EndWithMessage: true},
	}

	cfg, err := config.Load(*configPath, ".env")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger.SetLevel(log.ParseLevel(cfg.Log.Level))
	if *root != "" {
		cfg.Server.Root = *root
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.ListenAddr()
	srvCfg.Root = cfg.Server.Root
	srvCfg.Logger = logger

	srv, err := server.NewServer(srvCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create server")
	}

	if _, err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
	logger.Info().Str("url", srv.URL()).Msg("serving TodoMVC")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-srv.Done():
		if err != nil {
			logger.Error().Err(err).Msg("server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
		os.Exit(1)
	}
}
