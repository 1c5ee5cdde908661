// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"github.com/sigil-dev/sieve/internal/registry"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// Opener creates a backend from its configuration.
type Opener func(cfg Config) (Store, error)

var backends = registry.New[Opener]("store backend")

func init() {
	backends.MustRegister("memory", func(Config) (Store, error) { return NewMemory(), nil })
}

// RegisterBackend makes a backend available to Open. Backend packages call
// this from init().
func RegisterBackend(name string, open Opener) error {
	return backends.Register(name, open)
}

// Backends lists registered backend names.
func Backends() []string {
	return backends.Names()
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg Config) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

func Open(cfg Config) (Store, error) {
	name := resolveBackend(cfg)
	open, err := backends.Get(name)
	if err != nil {
		return nil, sieveerr.New(sieveerr.CodeStoreBackendUnsupported, "unsupported storage backend: "+err.Error(),
			sieveerr.Field("backend", name), sieveerr.Field("available", backends.Names()))
	}
	return open(cfg)
}
