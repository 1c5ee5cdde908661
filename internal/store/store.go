// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package store persists versioned graph documents and encoded query results.
// Backends register themselves by name; Open picks one from Config.
package store

import (
	"context"

	"github.com/sigil-dev/sieve/internal/cache"
	"github.com/sigil-dev/sieve/internal/graph"
)

// GraphStore keeps every saved version of every branch. Saved versions are
// immutable.
type GraphStore interface {
	SaveGraph(ctx context.Context, ref graph.Ref, doc *graph.Document) (GraphInfo, error)
	// LoadGraph returns the latest version of branch as an unfrozen index.
	LoadGraph(ctx context.Context, branch string) (*graph.Memory, graph.Ref, error)
	LoadVersion(ctx context.Context, ref graph.Ref) (*graph.Memory, error)
	// ListGraphs returns saved versions ordered by branch, then version. An
	// empty branch lists every branch.
	ListGraphs(ctx context.Context, branch string) ([]GraphInfo, error)
	DeleteGraph(ctx context.Context, ref graph.Ref) error
}

// ResultStore is the persistent result cache tier.
type ResultStore interface {
	GetResult(ctx context.Context, key string) ([]byte, uint64, error)
	PutResult(ctx context.Context, key, branch string, version int64, content []byte, checksum uint64) error
	DeleteResult(ctx context.Context, key string) error
	DeleteResults(ctx context.Context, branch string, keepVersion int64) (int64, error)
}

var _ cache.Store = ResultStore(nil)

// Store is what a backend provides.
type Store interface {
	GraphStore
	ResultStore
	Close() error
}
