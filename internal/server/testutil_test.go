// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sigil-dev/sieve/internal/cache"
	"github.com/sigil-dev/sieve/internal/engine"
	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/server"
	"github.com/sigil-dev/sieve/internal/snapshot"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv     *server.Server
	holder  *snapshot.Holder
	cache   *cache.Cache
	handler http.Handler
}

func repoSnapshot(t *testing.T, version int64) *graph.Snapshot {
	t.Helper()
	doc := &graph.Document{
		Entities: []graph.Entity{
			{ID: "repo-1", Type: "repo", Attributes: map[string]any{"name": "sieve", "default_branch": "main", "is_default": true}},
			{ID: "pr-1", Type: "pr", Attributes: map[string]any{"state": "merged", "base_branch": "main"}},
			{ID: "pr-2", Type: "pr", Attributes: map[string]any{"state": "open", "base_branch": "main"}},
			{ID: "pr-3", Type: "pr", Attributes: map[string]any{"state": "merged", "base_branch": "release"}},
		},
		Relations: []graph.Relation{
			{ID: "r1", From: "repo-1", To: "pr-1", Type: "has_pull_request"},
			{ID: "r2", From: "repo-1", To: "pr-2", Type: "has_pull_request"},
			{ID: "r3", From: "repo-1", To: "pr-3", Type: "has_pull_request"},
		},
	}
	m, err := doc.Build()
	require.NoError(t, err)
	return graph.NewSnapshot(m, graph.Ref{Version: version, Branch: "main"})
}

// newFixture wires an engine, snapshot holder and optional cache behind a
// server, with main@1 published.
func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()

	holder := snapshot.NewHolder()
	t.Cleanup(holder.Close)
	require.NoError(t, holder.Publish(repoSnapshot(t, 1)))

	var (
		c       *cache.Cache
		inspect server.CacheInspector
		opts    []engine.Option
	)
	if withCache {
		c = cache.New(cache.WithMaxEntries(100))
		t.Cleanup(c.Stop)
		holder.AddObserver(c)
		inspect = c
		opts = append(opts, engine.WithResultCache(c))
	}

	svc, err := server.NewServices(engine.New(opts...), holder, inspect, nil)
	require.NoError(t, err)

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	srv.RegisterServices(svc)

	return &fixture{srv: srv, holder: holder, cache: c, handler: srv.Handler()}
}

func (f *fixture) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}
