// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"strconv"

	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/query"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [file|-]",
		Short: "Validate a query and print its canonical form",
		Long: `Decode and compile a JSON query without executing it. Prints the canonical
clause array and its fingerprint. With --against, field names, relation types
and operators are also checked against the schema inferred from a graph
document.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runValidate,
	}

	cmd.Flags().String("against", "", "graph document whose inferred schema the query must satisfy")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	raw, err := openInput(cmd, args)
	if err != nil {
		return err
	}

	var opts []query.Option
	if path, _ := cmd.Flags().GetString("against"); path != "" {
		m, err := graph.LoadFile(path)
		if err != nil {
			return err
		}
		opts = append(opts, query.WithSchema(query.InferSchema(m)))
	}

	q, err := query.Decode(raw, opts...)
	if err != nil {
		return err
	}
	plan, err := q.Compile()
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), struct {
		Canonical   json.RawMessage `json:"canonical"`
		Fingerprint string          `json:"fingerprint"`
		Clauses     int             `json:"clauses"`
	}{
		Canonical:   plan.Canonical,
		Fingerprint: strconv.FormatUint(plan.Fingerprint, 16),
		Clauses:     len(plan.Clauses),
	})
}
