// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/sieve/internal/engine"
	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/query"
)

func evalSnapshot(t *testing.T) *graph.Snapshot {
	t.Helper()
	m := graph.NewMemory()
	require.NoError(t, m.AddEntity(graph.Entity{
		ID:   "e1",
		Type: "repo",
		Attributes: attrs{
			"name":   "sieve-core",
			"stars":  42,
			"topics": []string{"go", "graph"},
			"owner":  attrs{"login": "sigil"},
			"draft":  false,
			"none":   nil,
		},
		Metadata: &graph.Metadata{Flags: map[string]any{"archived": true, "tier": 2}},
	}))
	return graph.NewSnapshot(m, graph.Ref{Version: 1, Branch: "main"})
}

func TestEvaluate_Operators(t *testing.T) {
	snap := evalSnapshot(t)
	e := engine.New()

	tests := []struct {
		name string
		cond query.Condition
		want bool
	}{
		{"eq string", query.Eq("name", "sieve-core"), true},
		{"eq number across kinds", query.Eq("stars", 42.0), true},
		{"eq id", query.Eq("id", "e1"), true},
		{"eq type", query.Eq("type", "repo"), true},
		{"eq nested", query.Eq("owner.login", "sigil"), true},
		{"eq sequence", query.Eq("topics", []string{"go", "graph"}), true},
		{"eq missing field", query.Eq("missing", "x"), false},
		{"eq null", query.Eq("none", nil), true},
		{"neq", query.Neq("name", "other"), true},
		{"neq same", query.Neq("name", "sieve-core"), false},
		{"neq missing field", query.Neq("missing", "x"), false},
		{"gt number", query.Gt("stars", 41), true},
		{"lt number", query.Lt("stars", 41), false},
		{"gt string", query.Gt("name", "a"), true},
		{"gt incomparable", query.Gt("name", 1), false},
		{"in sequence", query.In("name", []string{"x", "sieve-core"}), true},
		{"in substring", query.In("name", "the sieve-core repository"), true},
		{"in with sequence field", query.In("topics", []string{"rust", "graph"}), true},
		{"in miss", query.In("stars", []int{1, 2}), false},
		{"contains element", query.Contains("topics", "go"), true},
		{"contains substring", query.Contains("name", "core"), true},
		{"contains miss", query.Contains("topics", "rust"), false},
		{"contains on number", query.Contains("stars", 4), false},
		{"matches", query.Matches("name", "^sieve-"), true},
		{"matches non-string", query.Matches("stars", "4"), false},
		{"exists false value", query.Exists("draft"), true},
		{"exists null value", query.Exists("none"), true},
		{"exists nested", query.Exists("owner.login"), true},
		{"exists missing", query.Exists("missing"), false},
		{"flag-is", query.FlagIs("archived", true), true},
		{"flag-is number", query.FlagIs("tier", 2), true},
		{"flag-is mismatch", query.FlagIs("archived", false), false},
		{"flag-exists", query.FlagExists("archived"), true},
		{"flag-notExists present", query.FlagNotExists("archived"), false},
		{"flag-notExists absent", query.FlagNotExists("pinned"), true},
		{"flags are not attributes", query.Exists("archived"), false},
		{"AND", query.And(query.Eq("name", "sieve-core"), query.Gt("stars", 10)), true},
		{"AND fails", query.And(query.Eq("name", "sieve-core"), query.Gt("stars", 100)), false},
		{"OR", query.Or(query.Eq("name", "x"), query.Gt("stars", 10)), true},
		{"NOT", query.Not(query.Eq("name", "x")), true},
		{"nested", query.Not(query.Or(query.Eq("draft", true), query.And(query.FlagIs("archived", true), query.Lt("stars", 10)))), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execute(t, e, query.New().Where(tt.cond), snap)
			assert.Equal(t, tt.want, len(res.Nodes) == 1)
		})
	}
}

func TestEvaluate_ShortCircuitSkipsLaterArguments(t *testing.T) {
	snap := evalSnapshot(t)
	e := engine.New()
	unresolved := query.Eq("name", "$parent.name")

	res := execute(t, e, query.New().Where(query.Or(query.Eq("name", "sieve-core"), unresolved)), snap)
	assert.Len(t, res.Nodes, 1)
	assert.Empty(t, res.Stats.Diagnostics, "OR stops at the first true argument")

	res = execute(t, e, query.New().Where(query.And(query.Eq("name", "nope"), unresolved)), snap)
	assert.Empty(t, res.Nodes)
	assert.Empty(t, res.Stats.Diagnostics, "AND stops at the first false argument")

	res = execute(t, e, query.New().Where(query.And(unresolved, query.Eq("name", "nope"))), snap)
	assert.Empty(t, res.Nodes)
	assert.Len(t, res.Stats.Diagnostics, 1)

	res = execute(t, e, query.New().Where(query.Not(unresolved)), snap)
	assert.Len(t, res.Nodes, 1, "an unresolved predicate is false, so its negation holds")
}
