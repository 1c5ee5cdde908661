// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/store"
	"github.com/sigil-dev/sieve/internal/store/sqlite"
	"github.com/sigil-dev/sieve/internal/store/storetest"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openStore(t, "contract") })
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t, "reopen")
	ref := graph.Ref{Branch: "main", Version: 4}

	s, err := sqlite.Open(path)
	require.NoError(t, err)
	_, err = s.SaveGraph(ctx, ref, storetest.Document())
	require.NoError(t, err)
	require.NoError(t, s.PutResult(ctx, "k", "main", 4, []byte("cached"), 11))
	require.NoError(t, s.Close())

	s, err = sqlite.Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	idx, got, err := s.LoadGraph(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, ref, got)
	repo, ok := idx.Entity("repo-1")
	require.True(t, ok)
	assert.Equal(t, float64(42), repo.Attributes["stars"])
	assert.Equal(t, map[string]any{"login": "sigil"}, repo.Attributes["owner"])

	content, _, err := s.GetResult(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "cached", string(content))
}

func TestStore_PreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, "order")

	doc := &graph.Document{}
	for _, id := range []string{"z", "a", "m", "b"} {
		doc.Entities = append(doc.Entities, graph.Entity{ID: id, Type: "n"})
	}
	doc.Relations = []graph.Relation{
		{ID: "r2", From: "z", To: "b", Type: "t"},
		{ID: "r1", From: "z", To: "a", Type: "t"},
	}
	ref := graph.Ref{Branch: "main", Version: 1}
	_, err := s.SaveGraph(ctx, ref, doc)
	require.NoError(t, err)

	idx, err := s.LoadVersion(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m", "b"}, idx.EntitiesByType("n"))
	assert.Equal(t, []string{"b", "a"}, idx.Adjacent("z", "t", graph.DirectionOut))
}

func TestOpen_RegistersSqliteBackend(t *testing.T) {
	assert.Contains(t, store.Backends(), "sqlite")

	s, err := store.Open(store.Config{Path: testDBPath(t, "factory")})
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, s)
	require.NoError(t, s.Close())

	_, err = store.Open(store.Config{Backend: "sqlite"})
	assert.Error(t, err, "a path is required")
}
