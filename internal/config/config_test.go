// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/sieve/internal/config"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg := validConfig(t)
	assert.Equal(t, "127.0.0.1:18790", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "file", cfg.Graph.Source)
	assert.Equal(t, "main", cfg.Graph.Branch)
	assert.Equal(t, int64(1), cfg.Graph.Version)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, int64(10000), cfg.Cache.MaxEntries)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Zero(t, cfg.Engine.MaxSteps)
}

func TestLoad_FromFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sieve.yaml")
	content := `
server:
  listen: "0.0.0.0:9999"
  cors_origins: ["http://localhost:5173"]
engine:
  strict: true
  max_steps: 5000
  timeout: 250ms
cache:
  ttl: 1h
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Listen)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Engine.Strict)
	assert.Equal(t, 5000, cfg.Engine.MaxSteps)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.Timeout)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SIEVE_SERVER_LISTEN", "10.0.0.1:8080")
	t.Setenv("SIEVE_GRAPH_BRANCH", "dev")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", cfg.Server.Listen)
	assert.Equal(t, "dev", cfg.Graph.Branch)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, sieveerr.CodeConfigLoadReadFailure, sieveerr.CodeOf(err))

	cfgPath := filepath.Join(t.TempDir(), "sieve.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("graph:\n  source: ftp\n"), 0o600))
	_, err = config.Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph.source")
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("storage.backend", "memory")
	v.Set("graph.source", "store")

	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "store", cfg.Graph.Source)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"empty listen", func(c *config.Config) { c.Server.Listen = "" }, "server.listen"},
		{"listen without port", func(c *config.Config) { c.Server.Listen = "localhost" }, "server.listen"},
		{"listen port range", func(c *config.Config) { c.Server.Listen = ":70000" }, "server.listen port"},
		{"negative read timeout", func(c *config.Config) { c.Server.ReadTimeout = -time.Second }, "server.read_timeout"},
		{"negative rate", func(c *config.Config) { c.Server.RateLimit.RequestsPerSecond = -1 }, "server.rate_limit.requests_per_second"},
		{"rate without burst", func(c *config.Config) { c.Server.RateLimit.RequestsPerSecond = 5 }, "server.rate_limit.burst"},
		{"unknown graph source", func(c *config.Config) { c.Graph.Source = "http" }, "graph.source"},
		{"file version", func(c *config.Config) { c.Graph.Version = 0 }, "graph.version"},
		{"empty branch", func(c *config.Config) { c.Graph.Branch = "" }, "graph.branch"},
		{"negative max steps", func(c *config.Config) { c.Engine.MaxSteps = -1 }, "engine.max_steps"},
		{"negative timeout", func(c *config.Config) { c.Engine.Timeout = -time.Millisecond }, "engine.timeout"},
		{"cache size", func(c *config.Config) { c.Cache.MaxEntries = 0 }, "cache.max_entries"},
		{"cache ttl", func(c *config.Config) { c.Cache.TTL = 0 }, "cache.ttl"},
		{"storage backend", func(c *config.Config) { c.Storage.Backend = "postgres" }, "storage.backend"},
		{"sqlite path", func(c *config.Config) { c.Storage.Path = "" }, "storage.path"},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].Error(), tt.want)
			assert.Equal(t, sieveerr.CodeConfigValidateInvalidValue, sieveerr.CodeOf(errs[0]))
		})
	}
}

func TestValidate_StoreSourceIgnoresVersion(t *testing.T) {
	cfg := validConfig(t)
	cfg.Graph.Source = "store"
	cfg.Graph.Version = 0
	assert.Empty(t, cfg.Validate())
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &config.Config{}
	errs := cfg.Validate()
	assert.GreaterOrEqual(t, len(errs), 6, "every problem is reported, not only the first")
}

func TestLoggingConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := config.LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf, false)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger = config.LoggingConfig{Level: "error", Format: "text"}.NewLogger(&buf, true)
	logger.Debug("verbose wins")
	assert.Contains(t, buf.String(), "verbose wins")
}

func TestBootstrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sieve.yaml")

	written, err := config.Bootstrap(path)
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfigYAML, data)

	cfg, err := config.Load(path)
	require.NoError(t, err, "the embedded default is a valid config")
	assert.Equal(t, "main", cfg.Graph.Branch)

	written, err = config.Bootstrap(path)
	require.NoError(t, err)
	assert.False(t, written, "an existing file is left alone")
}
