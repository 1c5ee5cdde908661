// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sigil-dev/sieve/internal/config"
	"github.com/sigil-dev/sieve/internal/server"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP query server",
		Long:  "Load configuration, publish the configured graph, and serve the query API until interrupted.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	cmd.Flags().String("graph", "", "graph document to serve (overrides graph.path)")
	cmd.Flags().String("branch", "", "branch to serve (overrides graph.branch)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger, func(addr net.Addr) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving sieve on %s\n", addr)
	})
}

// serve wires the app and runs the HTTP server until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, ready func(net.Addr)) error {
	app, err := WireApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	services, err := app.Services()
	if err != nil {
		return sieveerr.Errorf(sieveerr.CodeCLISetupFailure, "creating services: %w", err)
	}

	srv, err := server.New(server.Config{
		ListenAddr:   cfg.Server.Listen,
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
		},
	})
	if err != nil {
		return sieveerr.Errorf(sieveerr.CodeCLISetupFailure, "creating server: %w", err)
	}
	srv.RegisterServices(services)

	return srv.Start(ctx, ready)
}
