// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/sigil-dev/sieve/internal/store"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

func init() {
	if err := store.RegisterBackend("sqlite", open); err != nil {
		panic(err)
	}
}

func open(cfg store.Config) (store.Store, error) {
	if cfg.Path == "" {
		return nil, sieveerr.New(sieveerr.CodeStoreInvalidInput, "sqlite backend requires a path")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "creating data directory %s: %w", dir, err)
		}
	}
	return Open(cfg.Path)
}
