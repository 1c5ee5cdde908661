// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"strconv"

	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/store"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a graph document into the store",
		Long: `Load a JSON or YAML graph document and save it to the configured store as
branch@version. Without --version the next version after the branch's latest
is used.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("branch", "", "branch to save under (overrides graph.branch)")
	cmd.Flags().Int64("version", 0, "version to save as (0 = next)")
	cmd.Flags().String("db", "", "database path (overrides storage.path)")
	cmd.Flags().String("backend", "", "storage backend (overrides storage.backend)")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	m, err := graph.LoadFile(args[0])
	if err != nil {
		return err
	}

	st, err := openStore(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ref := graph.Ref{Branch: cfg.Graph.Branch}
	ref.Version, _ = cmd.Flags().GetInt64("version")
	if ref.Version == 0 {
		infos, err := st.ListGraphs(cmd.Context(), ref.Branch)
		if err != nil {
			return err
		}
		ref.Version = 1
		if len(infos) > 0 {
			ref.Version = infos[len(infos)-1].Ref.Version + 1
		}
	}

	info, err := st.SaveGraph(cmd.Context(), ref, m.Document())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %d entities, %d relations\n",
		info.Ref, info.Entities, info.Relations)
	return err
}

func newGraphsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graphs",
		Short: "Manage stored graph versions",
	}

	list := &cobra.Command{
		Use:   "list [branch]",
		Short: "List stored graph versions",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGraphsList,
	}
	list.Flags().String("db", "", "database path (overrides storage.path)")
	list.Flags().String("backend", "", "storage backend (overrides storage.backend)")

	del := &cobra.Command{
		Use:   "delete <branch> <version>",
		Short: "Delete a stored graph version",
		Args:  cobra.ExactArgs(2),
		RunE:  runGraphsDelete,
	}
	del.Flags().String("db", "", "database path (overrides storage.path)")
	del.Flags().String("backend", "", "storage backend (overrides storage.backend)")

	cmd.AddCommand(list, del)
	return cmd
}

func runGraphsList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	var branch string
	if len(args) == 1 {
		branch = args[0]
	}
	infos, err := st.ListGraphs(cmd.Context(), branch)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		_, err = fmt.Fprintln(out, "No graphs stored")
		return err
	}
	for _, info := range infos {
		if _, err := fmt.Fprintf(out, "%s\t%d entities\t%d relations\t%s\n",
			info.Ref, info.Entities, info.Relations, info.SavedAt.Format("2006-01-02T15:04:05Z07:00")); err != nil {
			return err
		}
	}
	return nil
}

func runGraphsDelete(cmd *cobra.Command, args []string) error {
	version, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return sieveerr.Errorf(sieveerr.CodeCLIInputInvalid, "version must be an integer: %w", err)
	}
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ref := graph.Ref{Branch: args[0], Version: version}
	if err := st.DeleteGraph(cmd.Context(), ref); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", ref)
	return err
}

func openStore(backend, path string) (store.Store, error) {
	st, err := store.Open(store.Config{Backend: backend, Path: path})
	if err != nil {
		return nil, sieveerr.Wrapf(err, sieveerr.CodeCLISetupFailure, "opening %s store", backend)
	}
	return st, nil
}
