// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/store"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// Document is a small graph with nested attributes, flags and one relation
// declared without an id.
func Document() *graph.Document {
	return &graph.Document{
		Entities: []graph.Entity{
			{ID: "repo-1", Type: "repo", Attributes: map[string]any{
				"name": "sieve", "stars": 42, "owner": map[string]any{"login": "sigil"},
			}},
			{ID: "pr-1", Type: "pr", Attributes: map[string]any{"state": "merged"},
				Metadata: &graph.Metadata{Flags: map[string]any{"archived": true}, Source: "github"}},
			{ID: "pr-2", Type: "pr", Attributes: map[string]any{"state": "open", "labels": []any{"bug"}}},
		},
		Relations: []graph.Relation{
			{ID: "r1", From: "repo-1", To: "pr-1", Type: "has_pull_request"},
			{From: "repo-1", To: "pr-2", Type: "has_pull_request", Attributes: map[string]any{"weight": 0.5}},
		},
	}
}

// Run exercises open() against the store contract.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("SaveAndLoad", func(t *testing.T) { testSaveAndLoad(t, open(t)) })
	t.Run("LatestVersion", func(t *testing.T) { testLatestVersion(t, open(t)) })
	t.Run("Rejects", func(t *testing.T) { testRejects(t, open(t)) })
	t.Run("ListAndDelete", func(t *testing.T) { testListAndDelete(t, open(t)) })
	t.Run("Results", func(t *testing.T) { testResults(t, open(t)) })
}

func testSaveAndLoad(t *testing.T, s store.Store) {
	ctx := context.Background()
	ref := graph.Ref{Branch: "main", Version: 1}

	info, err := s.SaveGraph(ctx, ref, Document())
	require.NoError(t, err)
	assert.Equal(t, ref, info.Ref)
	assert.Equal(t, 3, info.Entities)
	assert.Equal(t, 2, info.Relations)
	assert.False(t, info.SavedAt.IsZero())

	idx, err := s.LoadVersion(ctx, ref)
	require.NoError(t, err)

	want, err := Document().Build()
	require.NoError(t, err)
	assert.Equal(t, want.Document(), idx.Document(), "a loaded graph iterates like the saved one")

	pr, ok := idx.Entity("pr-1")
	require.True(t, ok)
	require.NotNil(t, pr.Metadata)
	assert.Equal(t, true, pr.Metadata.Flags["archived"])
	assert.Equal(t, []string{"pr-1", "pr-2"}, idx.Adjacent("repo-1", "has_pull_request", graph.DirectionOut))
}

func testLatestVersion(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, v := range []int64{3, 1, 7} {
		_, err := s.SaveGraph(ctx, graph.Ref{Branch: "main", Version: v}, Document())
		require.NoError(t, err)
	}
	_, err := s.SaveGraph(ctx, graph.Ref{Branch: "dev", Version: 9}, Document())
	require.NoError(t, err)

	idx, ref, err := s.LoadGraph(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, graph.Ref{Branch: "main", Version: 7}, ref)
	assert.Equal(t, 3, idx.EntityCount())
	assert.False(t, idx.Frozen())

	_, _, err = s.LoadGraph(ctx, "missing")
	require.Error(t, err)
	assert.True(t, sieveerr.IsNotFound(err))
	assert.Equal(t, "missing", sieveerr.FieldsOf(err)["branch"])
}

func testRejects(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.SaveGraph(ctx, graph.Ref{Branch: "main", Version: 1}, Document())
	require.NoError(t, err)

	dangling := &graph.Document{
		Entities:  []graph.Entity{{ID: "a", Type: "n"}},
		Relations: []graph.Relation{{ID: "r", From: "a", To: "ghost", Type: "t"}},
	}

	tests := []struct {
		name    string
		ref     graph.Ref
		doc     *graph.Document
		invalid bool
	}{
		{"no branch", graph.Ref{Version: 1}, Document(), true},
		{"zero version", graph.Ref{Branch: "main"}, Document(), true},
		{"nil document", graph.Ref{Branch: "main", Version: 2}, nil, true},
		{"dangling relation", graph.Ref{Branch: "main", Version: 2}, dangling, true},
		{"existing version", graph.Ref{Branch: "main", Version: 1}, Document(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SaveGraph(ctx, tt.ref, tt.doc)
			require.Error(t, err)
			if tt.invalid {
				assert.True(t, sieveerr.IsInvalidInput(err), "code %s", sieveerr.CodeOf(err))
			} else {
				assert.True(t, sieveerr.IsConflict(err), "code %s", sieveerr.CodeOf(err))
			}
		})
	}

	list, err := s.ListGraphs(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, list, 1, "rejected saves leave nothing behind")
}

func testListAndDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, ref := range []graph.Ref{{Branch: "main", Version: 2}, {Branch: "dev", Version: 1}, {Branch: "main", Version: 1}} {
		_, err := s.SaveGraph(ctx, ref, Document())
		require.NoError(t, err)
	}

	all, err := s.ListGraphs(ctx, "")
	require.NoError(t, err)
	refs := make([]graph.Ref, 0, len(all))
	for _, info := range all {
		refs = append(refs, info.Ref)
	}
	assert.Equal(t, []graph.Ref{{Branch: "dev", Version: 1}, {Branch: "main", Version: 1}, {Branch: "main", Version: 2}}, refs)

	require.NoError(t, s.DeleteGraph(ctx, graph.Ref{Branch: "main", Version: 2}))
	_, ref, err := s.LoadGraph(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ref.Version)

	err = s.DeleteGraph(ctx, graph.Ref{Branch: "main", Version: 2})
	assert.True(t, sieveerr.IsNotFound(err))

	_, err = s.LoadVersion(ctx, graph.Ref{Branch: "main", Version: 2})
	assert.True(t, sieveerr.IsNotFound(err))
}

func testResults(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, _, err := s.GetResult(ctx, "main@1/a")
	require.Error(t, err)
	assert.True(t, sieveerr.IsNotFound(err))

	const highBit = uint64(1) << 63
	require.NoError(t, s.PutResult(ctx, "main@1/a", "main", 1, []byte("one"), highBit|7))
	require.NoError(t, s.PutResult(ctx, "main@1/b", "main", 1, []byte("two"), 2))
	require.NoError(t, s.PutResult(ctx, "main@2/a", "main", 2, []byte("three"), 3))
	require.NoError(t, s.PutResult(ctx, "dev@1/a", "dev", 1, []byte("four"), 4))

	content, sum, err := s.GetResult(ctx, "main@1/a")
	require.NoError(t, err)
	assert.Equal(t, "one", string(content))
	assert.Equal(t, highBit|7, sum)

	require.NoError(t, s.PutResult(ctx, "main@1/a", "main", 1, []byte("uno"), 9))
	content, sum, err = s.GetResult(ctx, "main@1/a")
	require.NoError(t, err)
	assert.Equal(t, "uno", string(content), "last writer wins")
	assert.Equal(t, uint64(9), sum)

	n, err := s.DeleteResults(ctx, "main", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, _, err = s.GetResult(ctx, "main@2/a")
	assert.NoError(t, err)
	_, _, err = s.GetResult(ctx, "dev@1/a")
	assert.NoError(t, err)

	require.NoError(t, s.DeleteResult(ctx, "dev@1/a"))
	require.NoError(t, s.DeleteResult(ctx, "dev@1/a"), "deleting an absent key is not an error")
	_, _, err = s.GetResult(ctx, "dev@1/a")
	assert.True(t, sieveerr.IsNotFound(err))
}
