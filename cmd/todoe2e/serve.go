package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the application under test until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("root") {
				a.cfg.Server.Root = root
			}
			srv, err := newServer(a.cfg, a.logger)
			if err != nil {
				return err
			}
			if _, err := srv.Start(); err != nil {
				return err
			}
			a.logger.Info().Str("url", srv.URL()).Msg("serving TodoMVC")

			var serveErr error
			select {
			case <-cmd.Context().Done():
				a.logger.Info().Msg("shutting down")
			case serveErr = <-srv.Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			return serveErr
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "Directory to serve (default: bundled TodoMVC page)")
	return cmd
}
