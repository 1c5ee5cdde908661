// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"strings"
	"testing"

	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportAndQueryFromStore(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := run(t, "", "import", env.graph, "--config", env.config)
	require.NoError(t, err)
	assert.Equal(t, "Imported main@1: 4 entities, 3 relations\n", out)

	// Without --version the next version is chosen.
	out, err = run(t, "", "import", env.graph, "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "main@2")

	_, err = run(t, "", "import", env.graph, "--config", env.config, "--version", "2")
	require.Error(t, err)
	assert.True(t, sieveerr.IsConflict(err))

	out, err = run(t, "", "graphs", "list", "--config", env.config)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "main@1\t4 entities\t3 relations"))
	assert.True(t, strings.HasPrefix(lines[1], "main@2\t"))

	storeCfg := writeFile(t, env.dir, "store.yaml",
		"graph:\n  source: store\nstorage:\n  backend: sqlite\n  path: \""+env.db+"\"\nlogging:\n  level: error\n")
	out, err = run(t, mergedQuery, "query", "--config", storeCfg)
	require.NoError(t, err)
	res := decodeResult(t, out)
	assert.Equal(t, int64(2), res.Ref.Version, "store source serves the latest version")
	assert.Equal(t, []string{"pr-1"}, nodeIDs(res))

	out, err = run(t, "", "graphs", "delete", "main", "2", "--config", env.config)
	require.NoError(t, err)
	assert.Equal(t, "Deleted main@2\n", out)

	_, err = run(t, "", "graphs", "delete", "main", "2", "--config", env.config)
	require.Error(t, err)
	assert.True(t, sieveerr.IsNotFound(err))

	out, err = run(t, "", "graphs", "list", "other", "--config", env.config)
	require.NoError(t, err)
	assert.Equal(t, "No graphs stored\n", out)
}

func TestImport_BranchFlagAndBadInput(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := run(t, "", "import", env.graph, "--config", env.config, "--branch", "feature", "--version", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "feature@7")

	bad := writeFile(t, env.dir, "graph.txt", "nope")
	_, err = run(t, "", "import", bad, "--config", env.config)
	require.Error(t, err)
	assert.True(t, sieveerr.HasCode(err, sieveerr.CodeGraphDecodeInvalidFormat))

	_, err = run(t, "", "graphs", "delete", "main", "x", "--config", env.config)
	require.Error(t, err)
	assert.True(t, sieveerr.HasCode(err, sieveerr.CodeCLIInputInvalid))
}
