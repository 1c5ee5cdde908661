// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sigil-dev/sieve/internal/cache"
	"github.com/sigil-dev/sieve/internal/config"
	"github.com/sigil-dev/sieve/internal/engine"
	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/server"
	"github.com/sigil-dev/sieve/internal/snapshot"
	"github.com/sigil-dev/sieve/internal/store"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Store     store.Store // nil unless the graph or the cache needs storage
	Cache     *cache.Cache
	Snapshots *snapshot.Holder
	Engine    *engine.Engine
	Logger    *slog.Logger
}

// WireApp creates all subsystems, wires them together and publishes the
// configured graph.
func WireApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Logger: logger}

	// 1. Storage, when the graph comes from it or cached results persist.
	if cfg.Graph.Source == "store" || (cfg.Cache.Enabled && cfg.Cache.Persist) {
		st, err := openStore(cfg.Storage.Backend, cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		app.Store = st
	}

	// 2. Result cache.
	if cfg.Cache.Enabled {
		opts := []cache.Option{
			cache.WithMaxEntries(cfg.Cache.MaxEntries),
			cache.WithTTL(cfg.Cache.TTL),
			cache.WithLogger(logger),
		}
		if cfg.Cache.Persist {
			opts = append(opts, cache.WithStore(app.Store))
		}
		app.Cache = cache.New(opts...)
	}

	// 3. Snapshot holder; the cache follows publishes.
	app.Snapshots = snapshot.NewHolder(snapshot.WithLogger(logger))
	if app.Cache != nil {
		app.Snapshots.AddObserver(app.Cache)
	}

	// 4. Engine.
	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithStrictMode(cfg.Engine.Strict),
		engine.WithDefaultBudget(cfg.Engine.MaxSteps, cfg.Engine.Timeout),
	}
	if app.Cache != nil {
		engineOpts = append(engineOpts, engine.WithResultCache(app.Cache))
	}
	app.Engine = engine.New(engineOpts...)

	// 5. Initial snapshot.
	snap, err := app.loadSnapshot(ctx, cfg.Graph)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := app.Snapshots.Publish(snap); err != nil {
		_ = app.Close()
		return nil, err
	}
	logger.Info("graph published",
		slog.String("ref", snap.Ref().String()),
		slog.Int("entities", len(snap.Index().EntitiesByType(""))))

	return app, nil
}

func (a *App) loadSnapshot(ctx context.Context, gc config.GraphConfig) (*graph.Snapshot, error) {
	switch gc.Source {
	case "store":
		m, ref, err := a.Store.LoadGraph(ctx, gc.Branch)
		if err != nil {
			return nil, err
		}
		return graph.NewSnapshot(m, ref), nil
	default:
		if gc.Path == "" {
			return nil, sieveerr.New(sieveerr.CodeCLIInputInvalid, "no graph document: set graph.path or pass --graph")
		}
		m, err := graph.LoadFile(gc.Path)
		if err != nil {
			return nil, err
		}
		return graph.NewSnapshot(m, graph.Ref{Version: gc.Version, Branch: gc.Branch}), nil
	}
}

// Services adapts the app to the HTTP server's dependencies.
func (a *App) Services() (*server.Services, error) {
	var inspect server.CacheInspector
	if a.Cache != nil {
		inspect = a.Cache
	}
	return server.NewServices(a.Engine, a.Snapshots, inspect, a.Logger)
}

// Close releases all resources held by the app.
func (a *App) Close() error {
	if a.Cache != nil {
		a.Cache.Stop()
	}
	if a.Snapshots != nil {
		a.Snapshots.Close()
	}
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
