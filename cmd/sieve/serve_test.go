// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sigil-dev/sieve/internal/config"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, env *testEnv) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("server.listen", "127.0.0.1:0")
	v.Set("graph.path", env.graph)
	v.Set("storage.path", env.db)
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

// startServer runs serve in the background and returns its address.
func startServer(t *testing.T, cfg *config.Config) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, cfg, nil, func(a net.Addr) { addrCh <- a })
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Error("server did not shut down")
		}
	})

	select {
	case a := <-addrCh:
		return a.String()
	case err := <-errCh:
		t.Fatalf("serve failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	return ""
}

func TestWireApp(t *testing.T) {
	env := newTestEnv(t, "")
	cfg := testConfig(t, env)

	app, err := WireApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = app.Close() }()

	assert.Nil(t, app.Store, "file source without persistence needs no store")
	require.NotNil(t, app.Cache)
	snap, err := app.Snapshots.Current("main")
	require.NoError(t, err)
	assert.Equal(t, "main@1", snap.Ref().String())

	svc, err := app.Services()
	require.NoError(t, err)
	assert.NotNil(t, svc.Cache())
}

func TestWireApp_PersistentCacheAndNoCache(t *testing.T) {
	env := newTestEnv(t, "")

	cfg := testConfig(t, env)
	cfg.Cache.Persist = true
	cfg.Storage.Backend = "memory"
	app, err := WireApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, app.Store)
	require.NoError(t, app.Close())

	cfg = testConfig(t, env)
	cfg.Cache.Enabled = false
	app, err = WireApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = app.Close() }()
	assert.Nil(t, app.Cache)
	svc, err := app.Services()
	require.NoError(t, err)
	assert.Nil(t, svc.Cache())
}

func TestWireApp_Failures(t *testing.T) {
	env := newTestEnv(t, "")

	cfg := testConfig(t, env)
	cfg.Graph.Path = env.dir + "/missing.json"
	_, err := WireApp(context.Background(), cfg, nil)
	require.Error(t, err)

	cfg = testConfig(t, env)
	cfg.Graph.Source = "store"
	_, err = WireApp(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.True(t, sieveerr.IsNotFound(err), "empty store has no graph for the branch")
}

func TestServeAndRemoteCommands(t *testing.T) {
	env := newTestEnv(t, "")
	addr := startServer(t, testConfig(t, env))

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	out, err := run(t, mergedQuery, "query", "--config", env.config, "--remote", addr)
	require.NoError(t, err)
	assert.Equal(t, []string{"pr-1"}, nodeIDs(decodeResult(t, out)))

	_, err = run(t, `[{"limit":-1}]`, "query", "--config", env.config, "--remote", addr)
	require.Error(t, err)
	assert.True(t, sieveerr.HasCode(err, sieveerr.CodeCLIRequestFailure))
	assert.Contains(t, err.Error(), "limit must not be negative")

	out, err = run(t, "", "status", "--config", env.config, "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "Server at "+addr+": ok")
	assert.Contains(t, out, "main@1: 4 entities, relation types: has_pull_request")
}

func TestStatusCommand_NotRunning(t *testing.T) {
	env := newTestEnv(t, "")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	out, err := run(t, "", "status", "--config", env.config, "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "is not running")

	_, err = run(t, `[{"from":"repo"}]`, "query", "--config", env.config, "--remote", addr)
	require.Error(t, err)
	assert.True(t, sieveerr.IsUnavailable(err))
}
