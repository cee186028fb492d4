// Package main runs the complaints API.
//
// Configuration comes from defaults, an optional file (--config or
// CONFIG_FILE) and the environment; see internal/config.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/civic-complaints/internal/config"
	"github.com/sakif/civic-complaints/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve the civic complaints API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = os.Getenv("CONFIG_FILE")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			logger := cfg.NewLogger(os.Stdout)

			// Lives as long as the process; Start handles signals itself.
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			srv, err := server.New(ctx, cfg, logger)
			if err != nil {
				logger.Error("failed to create server", "error", err)
				return err
			}
			if err := srv.Start(); err != nil {
				logger.Error("server error", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a config file (yaml, toml or json)")
	return cmd
}
