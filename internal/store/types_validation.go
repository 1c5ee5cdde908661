// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"github.com/sigil-dev/sieve/internal/graph"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// ValidateRef checks that ref names a storable version.
func ValidateRef(ref graph.Ref) error {
	if ref.Branch == "" {
		return sieveerr.New(sieveerr.CodeStoreInvalidInput, "graph: branch is required")
	}
	if ref.Version < 1 {
		return sieveerr.Errorf(sieveerr.CodeStoreInvalidInput, "graph: version must be positive, got %d", ref.Version)
	}
	return nil
}

// PrepareDocument validates doc by building it and returns the normalized
// document a backend should persist: relation ids filled in, values in
// canonical form.
func PrepareDocument(ref graph.Ref, doc *graph.Document) (*graph.Document, error) {
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, sieveerr.New(sieveerr.CodeStoreInvalidInput, "graph: document is required", sieveerr.FieldBranch(ref.Branch))
	}
	m, err := doc.Build()
	if err != nil {
		return nil, sieveerr.New(sieveerr.CodeStoreInvalidInput, "graph: invalid document: "+err.Error(),
			sieveerr.FieldBranch(ref.Branch), sieveerr.Field("version", ref.Version),
			sieveerr.Field("cause", string(sieveerr.CodeOf(err))))
	}
	return m.Document(), nil
}
