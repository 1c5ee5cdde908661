// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package query_test

import (
	"testing"

	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/query"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaGraph(t *testing.T) *graph.Memory {
	t.Helper()
	m := graph.NewMemory()
	require.NoError(t, m.AddEntity(graph.Entity{ID: "e1", Type: "repo", Attributes: map[string]any{
		"name": "sieve", "stars": 12, "is_default": true, "topics": []string{"go"},
		"owner": map[string]any{"login": "sigil"},
	}}))
	require.NoError(t, m.AddEntity(graph.Entity{ID: "e2", Type: "pr", Attributes: map[string]any{
		"state": "merged", "number": 7, "labels": "mixed",
	}}))
	require.NoError(t, m.AddEntity(graph.Entity{ID: "e3", Type: "pr", Attributes: map[string]any{
		"state": "open", "number": 8, "labels": []any{"bug"},
	}}))
	require.NoError(t, m.AddRelation(graph.Relation{ID: "r1", From: "e1", To: "e2", Type: "has_pull_request"}))
	return m
}

func TestInferSchema(t *testing.T) {
	s := query.InferSchema(schemaGraph(t))

	assert.Equal(t, []string{"has_pull_request"}, s.RelationTypes)
	assert.Equal(t, map[string]query.FieldKind{
		"name": query.FieldString, "stars": query.FieldNumber, "is_default": query.FieldBool,
		"topics": query.FieldList, "owner": query.FieldMap,
	}, s.EntityTypes["repo"])
	assert.Equal(t, query.FieldAny, s.EntityTypes["pr"]["labels"], "conflicting kinds widen to any")
}

func TestSchema_ValidatesClauses(t *testing.T) {
	s := query.InferSchema(schemaGraph(t))
	q := func() *query.Query { return query.New(query.WithSchema(s)) }

	tests := []struct {
		name string
		q    *query.Query
		code sieveerr.Code
	}{
		{"ok", q().From("repo").Where(query.Gt("stars", 3)).Traverse("has_pull_request", graph.DirectionOut).Select("state").OrderBy("number", query.Asc), ""},
		{"nested map field", q().Where(query.Eq("owner.login", "sigil")), ""},
		{"flag predicates skip the schema", q().Where(query.FlagIs("archived", true)), ""},
		{"unknown entity type", q().From("issue"), sieveerr.CodeQueryFieldUnknown},
		{"unknown field", q().Where(query.Eq("colour", "red")), sieveerr.CodeQueryFieldUnknown},
		{"nested into scalar", q().Where(query.Eq("name.first", "x")), sieveerr.CodeQueryFieldUnknown},
		{"unknown relation", q().Traverse("forks", graph.DirectionOut), sieveerr.CodeQueryFieldUnknown},
		{"unknown expand relation", q().Expand(query.ExpandClause{Depth: 1, RelationTypes: []string{"x"}}), sieveerr.CodeQueryFieldUnknown},
		{"unknown select field", q().Select("nope"), sieveerr.CodeQueryFieldUnknown},
		{"matches on number", q().Where(query.Matches("stars", "^1")), sieveerr.CodeQueryOperatorUnsupported},
		{"gt on bool", q().Where(query.Gt("is_default", 1)), sieveerr.CodeQueryOperatorUnsupported},
		{"contains on map", q().Where(query.Contains("owner", "x")), sieveerr.CodeQueryOperatorUnsupported},
		{"sum of strings", q().Aggregate(query.AggSum, "name"), sieveerr.CodeQueryOperatorUnsupported},
		{"max of strings", q().Aggregate(query.AggMax, "name"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Err()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, sieveerr.CodeOf(err))
			assert.True(t, sieveerr.IsInvalidInput(err))
		})
	}
}
