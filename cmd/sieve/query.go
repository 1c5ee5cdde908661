// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sigil-dev/sieve/internal/engine"
	"github.com/sigil-dev/sieve/internal/query"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [file|-]",
		Short: "Execute a query",
		Long: `Execute a JSON query read from a file or stdin.

By default the query runs in-process against the configured graph (a graph
document or the latest version of a branch in the store). With --remote it is
sent to a running sieve server instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runQuery,
	}

	cmd.Flags().String("graph", "", "graph document to query (overrides graph.path)")
	cmd.Flags().String("branch", "", "branch to query (overrides graph.branch)")
	cmd.Flags().Bool("explain", false, "include per-stage explain output")
	cmd.Flags().Bool("no-cache", false, "bypass the result cache")
	cmd.Flags().Bool("strict", false, "reject relation types absent from the snapshot")
	cmd.Flags().Int("max-steps", 0, "node expansion budget (0 = configured default)")
	cmd.Flags().Duration("timeout", 0, "execution deadline (0 = configured default)")
	cmd.Flags().String("remote", "", "address of a running sieve server (host:port)")

	return cmd
}

type queryFlags struct {
	explain  bool
	noCache  bool
	strict   bool
	maxSteps int
	timeout  time.Duration
}

func readQueryFlags(cmd *cobra.Command) queryFlags {
	var f queryFlags
	f.explain, _ = cmd.Flags().GetBool("explain")
	f.noCache, _ = cmd.Flags().GetBool("no-cache")
	f.strict, _ = cmd.Flags().GetBool("strict")
	f.maxSteps, _ = cmd.Flags().GetInt("max-steps")
	f.timeout, _ = cmd.Flags().GetDuration("timeout")
	return f
}

func runQuery(cmd *cobra.Command, args []string) error {
	raw, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	flags := readQueryFlags(cmd)

	if addr, _ := cmd.Flags().GetString("remote"); addr != "" {
		return runRemoteQuery(cmd, addr, raw, flags)
	}

	q, err := query.Decode(raw)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := WireApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	snap, err := app.Snapshots.Current(cfg.Graph.Branch)
	if err != nil {
		return err
	}

	opts := []engine.ExecOption{engine.WithCache(!flags.noCache)}
	if flags.explain {
		opts = append(opts, engine.WithExplain())
	}
	if flags.strict {
		opts = append(opts, engine.WithStrict())
	}
	if flags.maxSteps > 0 || flags.timeout > 0 {
		b := engine.Budget{MaxSteps: flags.maxSteps}
		if flags.timeout > 0 {
			b.Deadline = time.Now().Add(flags.timeout)
		}
		opts = append(opts, engine.WithBudget(b))
	}

	res, err := app.Engine.Execute(cmd.Context(), q, snap, opts...)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func runRemoteQuery(cmd *cobra.Command, addr string, raw []byte, flags queryFlags) error {
	if !json.Valid(raw) {
		return sieveerr.New(sieveerr.CodeCLIInputInvalid, "query is not valid JSON")
	}
	body := map[string]any{
		"query":   json.RawMessage(raw),
		"branch":  viper.GetString("graph.branch"),
		"explain": flags.explain,
		"noCache": flags.noCache,
		"strict":  flags.strict,
	}
	if flags.maxSteps > 0 {
		body["maxSteps"] = flags.maxSteps
	}
	if flags.timeout > 0 {
		body["timeoutMs"] = flags.timeout.Milliseconds()
	}

	var resp struct {
		RequestID string          `json:"requestId"`
		Result    json.RawMessage `json:"result"`
	}
	if err := newAPIClient(addr).postJSON("/api/v1/query", body, &resp); err != nil {
		return err
	}
	res, err := engine.DecodeResult(resp.Result)
	if err != nil {
		return sieveerr.New(sieveerr.CodeCLIResponseInvalid, "decoding result: "+err.Error())
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
