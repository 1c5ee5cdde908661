// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/sigil-dev/sieve/internal/server"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Check a running server's health and list the current snapshot of every branch.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "", "server address to check (default: server.listen)")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	if addr == "" {
		addr = viper.GetString("server.listen")
	}
	out := cmd.OutOrStdout()

	client := newAPIClient(addr)
	var health server.HealthBody
	if err := client.getJSON("/health", &health); err != nil {
		if sieveerr.HasCode(err, sieveerr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, err)
		return nil
	}
	_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, health.Status)

	var body struct {
		Snapshots []server.SnapshotSummary `json:"snapshots"`
	}
	if err := client.getJSON("/api/v1/snapshot", &body); err != nil {
		return err
	}
	if len(body.Snapshots) == 0 {
		_, _ = fmt.Fprintln(out, "No snapshots published")
		return nil
	}
	for _, s := range body.Snapshots {
		_, _ = fmt.Fprintf(out, "  %s@%d: %d entities, relation types: %s\n",
			s.Branch, s.Version, s.Entities, strings.Join(s.RelationTypes, ", "))
	}
	return nil
}
