// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"time"

	"github.com/sigil-dev/sieve/internal/graph"
)

// Config selects and locates a backend.
type Config struct {
	Backend string // "sqlite" (default) or "memory"
	Path    string // database file for file-backed backends
}

// GraphInfo describes one saved graph version.
type GraphInfo struct {
	Ref       graph.Ref `json:"ref"`
	Entities  int       `json:"entities"`
	Relations int       `json:"relations"`
	SavedAt   time.Time `json:"savedAt"`
}
