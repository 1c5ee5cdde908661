// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"github.com/sigil-dev/sieve/internal/graph"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// Coded errors shared by backends, classified with sieveerr.IsNotFound and
// sieveerr.IsConflict.

func ErrGraphNotFound(ref graph.Ref) error {
	fields := []sieveerr.Attr{sieveerr.FieldBranch(ref.Branch)}
	if ref.Version != 0 {
		fields = append(fields, sieveerr.Field("version", ref.Version))
	}
	return sieveerr.New(sieveerr.CodeStoreGraphNotFound, "graph not found", fields...)
}

func ErrGraphExists(ref graph.Ref) error {
	return sieveerr.New(sieveerr.CodeStoreConflict, "graph version already saved",
		sieveerr.FieldBranch(ref.Branch), sieveerr.Field("version", ref.Version))
}

func ErrResultNotFound(key string) error {
	return sieveerr.New(sieveerr.CodeStoreEntityNotFound, "cached result not found", sieveerr.Field("key", key))
}
