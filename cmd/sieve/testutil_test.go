// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const graphJSON = `{
  "entities": [
    {"id": "repo-1", "type": "repo", "attributes": {"name": "sieve", "default_branch": "main", "is_default": true}},
    {"id": "pr-1", "type": "pr", "attributes": {"state": "merged", "base_branch": "main", "additions": 10}},
    {"id": "pr-2", "type": "pr", "attributes": {"state": "open", "base_branch": "main", "additions": 3}},
    {"id": "pr-3", "type": "pr", "attributes": {"state": "merged", "base_branch": "release", "additions": 7}}
  ],
  "relations": [
    {"id": "r1", "from": "repo-1", "to": "pr-1", "type": "has_pull_request"},
    {"id": "r2", "from": "repo-1", "to": "pr-2", "type": "has_pull_request"},
    {"id": "r3", "from": "repo-1", "to": "pr-3", "type": "has_pull_request"}
  ]
}`

const mergedQuery = `[
  {"from": "repo"},
  {"traverse": {"relationType": "has_pull_request", "direction": "out"}},
  {"where": {"type": "AND", "args": [
    {"op": "eq", "field": "state", "value": "merged"},
    {"op": "eq", "field": "base_branch", "value": "$parent.default_branch"}
  ]}}
]`

type testEnv struct {
	dir    string
	graph  string
	db     string
	config string
}

// newTestEnv writes a graph document and a config pointing at it and at a
// sqlite database, all under a temp dir that also serves as HOME.
func newTestEnv(t *testing.T, extraYAML string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	env := &testEnv{
		dir:    dir,
		graph:  writeFile(t, dir, "graph.json", graphJSON),
		db:     filepath.Join(dir, "sieve.db"),
		config: filepath.Join(dir, "sieve.yaml"),
	}
	cfg := fmt.Sprintf("graph:\n  path: %q\nstorage:\n  backend: sqlite\n  path: %q\nlogging:\n  level: error\n%s",
		env.graph, env.db, extraYAML)
	require.NoError(t, os.WriteFile(env.config, []byte(cfg), 0o600))
	return env
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}
