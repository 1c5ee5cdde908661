// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/store"
	"github.com/sigil-dev/sieve/internal/store/storetest"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

func TestMemory_Contract(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return store.NewMemory() })
}

func TestMemory_LoadedGraphsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	ref := graph.Ref{Branch: "main", Version: 1}
	_, err := s.SaveGraph(ctx, ref, storetest.Document())
	require.NoError(t, err)

	first, err := s.LoadVersion(ctx, ref)
	require.NoError(t, err)
	require.NoError(t, first.RemoveEntity("pr-1"))

	second, err := s.LoadVersion(ctx, ref)
	require.NoError(t, err)
	_, ok := second.Entity("pr-1")
	assert.True(t, ok, "saved versions are immutable")
}

func TestOpen_Backends(t *testing.T) {
	assert.Contains(t, store.Backends(), "memory")

	s, err := store.Open(store.Config{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, s)
	require.NoError(t, s.Close())

	_, err = store.Open(store.Config{Backend: "postgres"})
	require.Error(t, err)
	assert.Equal(t, sieveerr.CodeStoreBackendUnsupported, sieveerr.CodeOf(err))
	assert.Equal(t, "postgres", sieveerr.FieldsOf(err)["backend"])
}

func TestRegisterBackend_RejectsDuplicates(t *testing.T) {
	err := store.RegisterBackend("memory", func(store.Config) (store.Store, error) { return store.NewMemory(), nil })
	require.Error(t, err)
	assert.True(t, sieveerr.IsConflict(err))
}

func TestValidateRef(t *testing.T) {
	assert.NoError(t, store.ValidateRef(graph.Ref{Branch: "main", Version: 1}))
	assert.Error(t, store.ValidateRef(graph.Ref{Branch: "main", Version: -3}))
	assert.Error(t, store.ValidateRef(graph.Ref{Version: 1}))
}
