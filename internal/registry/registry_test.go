// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package registry_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/sieve/internal/registry"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

type opener func(path string) (string, error)

func okOpener(path string) (string, error) { return path, nil }

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := registry.New[opener]("backend")
	require.NoError(t, r.Register("sqlite", okOpener))
	require.NoError(t, r.Register("memory", okOpener))

	got, err := r.Get("sqlite")
	require.NoError(t, err)
	out, err := got("x.db")
	require.NoError(t, err)
	assert.Equal(t, "x.db", out)

	assert.Equal(t, []string{"memory", "sqlite"}, r.Names())
}

func TestRegistry_RejectsAtRegistration(t *testing.T) {
	var nilOpener opener
	reject := func(name string, _ opener) error {
		if name == "forbidden" {
			return errors.New("not allowed here")
		}
		return nil
	}

	tests := []struct {
		name  string
		entry string
		impl  opener
		code  sieveerr.Code
	}{
		{"empty name", "", okOpener, sieveerr.CodeRegistryRegisterInvalid},
		{"uppercase", "SQLite", okOpener, sieveerr.CodeRegistryRegisterInvalid},
		{"spaces", "my backend", okOpener, sieveerr.CodeRegistryRegisterInvalid},
		{"nil implementation", "nilbackend", nilOpener, sieveerr.CodeRegistryRegisterInvalid},
		{"validator", "forbidden", okOpener, sieveerr.CodeRegistryRegisterInvalid},
		{"duplicate", "sqlite", okOpener, sieveerr.CodeRegistryRegisterConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := registry.New[opener]("backend", reject)
			require.NoError(t, r.Register("sqlite", okOpener))

			err := r.Register(tt.entry, tt.impl)
			require.Error(t, err)
			assert.Equal(t, tt.code, sieveerr.CodeOf(err))
			assert.Equal(t, "backend", sieveerr.FieldsOf(err)["kind"])
			assert.Equal(t, []string{"sqlite"}, r.Names(), "a rejected entry is never visible")
		})
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := registry.New[opener]("backend")
	require.NoError(t, r.Register("sqlite", okOpener))

	_, err := r.Get("postgres")
	require.Error(t, err)
	assert.True(t, sieveerr.IsNotFound(err))
	assert.Equal(t, "postgres", sieveerr.FieldsOf(err)["name"])
	assert.Equal(t, []string{"sqlite"}, sieveerr.FieldsOf(err)["available"])
}

func TestRegistry_MustRegisterPanicsOnConflict(t *testing.T) {
	r := registry.New[opener]("backend")
	r.MustRegister("sqlite", okOpener)
	assert.Panics(t, func() { r.MustRegister("sqlite", okOpener) })
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := registry.New[int]("counter")
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Register(n, 1))
		}()
		go func() {
			defer wg.Done()
			r.Names()
			_, _ = r.Get(n)
		}()
	}
	wg.Wait()
	assert.Equal(t, names, r.Names())
}
