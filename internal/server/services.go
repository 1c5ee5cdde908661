// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"log/slog"

	"github.com/sigil-dev/sieve/internal/cache"
	"github.com/sigil-dev/sieve/internal/engine"
	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/query"
	"github.com/sigil-dev/sieve/internal/snapshot"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// QueryExecutor runs a query against a snapshot. *engine.Engine implements it.
type QueryExecutor interface {
	Execute(ctx context.Context, q *query.Query, snap *graph.Snapshot, opts ...engine.ExecOption) (*engine.Result, error)
}

// SnapshotSource exposes the current snapshot per branch and a feed of
// changes. *snapshot.Holder implements it.
type SnapshotSource interface {
	Current(branch string) (*graph.Snapshot, error)
	State() snapshot.State
	Subscribe(buffer int) (<-chan snapshot.Notification, func())
}

// CacheInspector reports result cache activity. *cache.Cache implements it.
type CacheInspector interface {
	Stats() cache.Stats
}

// Services holds dependencies injected into route handlers.
// Use NewServices constructor to ensure all required services are provided.
type Services struct {
	engine    QueryExecutor
	snapshots SnapshotSource
	cache     CacheInspector // optional; nil = cache stats endpoint unavailable
	logger    *slog.Logger
}

// NewServices creates a Services instance with validation.
// Returns an error if any required service is nil.
func NewServices(exec QueryExecutor, snapshots SnapshotSource, c CacheInspector, logger *slog.Logger) (*Services, error) {
	if exec == nil {
		return nil, sieveerr.New(sieveerr.CodeServerConfigInvalid, "query executor is required")
	}
	if snapshots == nil {
		return nil, sieveerr.New(sieveerr.CodeServerConfigInvalid, "snapshot source is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Services{engine: exec, snapshots: snapshots, cache: c, logger: logger}, nil
}

// Engine returns the query executor.
func (s *Services) Engine() QueryExecutor { return s.engine }

// Snapshots returns the snapshot source.
func (s *Services) Snapshots() SnapshotSource { return s.snapshots }

// Cache returns the cache inspector, or nil when caching is disabled.
func (s *Services) Cache() CacheInspector { return s.cache }
