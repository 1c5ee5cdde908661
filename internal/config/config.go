// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// Config is the top-level sieve configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Graph   GraphConfig   `mapstructure:"graph"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RateLimit    RateLimit     `mapstructure:"rate_limit"`
}

// RateLimit caps requests per client IP. A zero rate disables limiting.
type RateLimit struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// GraphConfig says where the served graph comes from. With source "file" the
// document at Path is published as Branch@Version; with source "store" the
// latest saved version of Branch is loaded from storage.
type GraphConfig struct {
	Source  string `mapstructure:"source"`
	Path    string `mapstructure:"path"`
	Branch  string `mapstructure:"branch"`
	Version int64  `mapstructure:"version"`
}

// EngineConfig sets execution defaults. Zero MaxSteps or Timeout means
// unbounded.
type EngineConfig struct {
	Strict   bool          `mapstructure:"strict"`
	MaxSteps int           `mapstructure:"max_steps"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CacheConfig controls result caching. Persist adds the storage backend as a
// second tier.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Persist    bool          `mapstructure:"persist"`
	MaxEntries int64         `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:18790")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.rate_limit.requests_per_second", 0.0)
	v.SetDefault("server.rate_limit.burst", 0)
	v.SetDefault("graph.source", "file")
	v.SetDefault("graph.path", "")
	v.SetDefault("graph.branch", "main")
	v.SetDefault("graph.version", 1)
	v.SetDefault("engine.strict", false)
	v.SetDefault("engine.max_steps", 0)
	v.SetDefault("engine.timeout", 0)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.persist", false)
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "sieve.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// SetupEnv binds SIEVE_ prefixed environment variables, with "." in keys
// mapped to "_".
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("SIEVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sieveerr.Errorf(sieveerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, sieveerr.Errorf(sieveerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix SIEVE_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, sieveerr.Errorf(sieveerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateGraph()...)
	errs = append(errs, c.validateEngine()...)
	errs = append(errs, c.validateCache()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func invalid(format string, args ...any) error {
	return sieveerr.Errorf(sieveerr.CodeConfigValidateInvalidValue, format, args...)
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, invalid("config: server.listen must not be empty"))
	} else {
		_, portStr, err := net.SplitHostPort(c.Server.Listen)
		if err != nil {
			errs = append(errs, invalid("config: server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err))
		} else if port, err := strconv.Atoi(portStr); err != nil {
			errs = append(errs, invalid("config: server.listen port must be a number, got %q", portStr))
		} else if port < 0 || port > 65535 {
			// port 0 asks the kernel for a free port
			errs = append(errs, invalid("config: server.listen port must be between 0 and 65535, got %d", port))
		}
	}

	if c.Server.ReadTimeout < 0 {
		errs = append(errs, invalid("config: server.read_timeout must not be negative, got %s", c.Server.ReadTimeout))
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, invalid("config: server.write_timeout must not be negative, got %s", c.Server.WriteTimeout))
	}
	if rl := c.Server.RateLimit; rl.RequestsPerSecond < 0 {
		errs = append(errs, invalid("config: server.rate_limit.requests_per_second must not be negative, got %g", rl.RequestsPerSecond))
	} else if rl.RequestsPerSecond > 0 && rl.Burst <= 0 {
		errs = append(errs, invalid("config: server.rate_limit.burst must be positive when a rate is set, got %d", rl.Burst))
	}

	return errs
}

func (c *Config) validateGraph() []error {
	var errs []error

	switch c.Graph.Source {
	case "file":
		if c.Graph.Version < 1 {
			errs = append(errs, invalid("config: graph.version must be greater than 0, got %d", c.Graph.Version))
		}
	case "store":
	default:
		errs = append(errs, invalid("config: graph.source must be one of [file, store], got %q", c.Graph.Source))
	}

	if c.Graph.Branch == "" {
		errs = append(errs, invalid("config: graph.branch must not be empty"))
	}

	return errs
}

func (c *Config) validateEngine() []error {
	var errs []error

	if c.Engine.MaxSteps < 0 {
		errs = append(errs, invalid("config: engine.max_steps must not be negative, got %d", c.Engine.MaxSteps))
	}
	if c.Engine.Timeout < 0 {
		errs = append(errs, invalid("config: engine.timeout must not be negative, got %s", c.Engine.Timeout))
	}

	return errs
}

func (c *Config) validateCache() []error {
	var errs []error

	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, invalid("config: cache.max_entries must be greater than 0, got %d", c.Cache.MaxEntries))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, invalid("config: cache.ttl must be greater than 0, got %s", c.Cache.TTL))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := []string{"sqlite", "memory"}
	if !slices.Contains(validBackends, c.Storage.Backend) {
		errs = append(errs, invalid("config: storage.backend must be one of [sqlite, memory], got %q", c.Storage.Backend))
	}
	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		errs = append(errs, invalid("config: storage.path must not be empty for the sqlite backend"))
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error

	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, invalid("config: logging.format must be one of [text, json], got %q", c.Logging.Format))
	}

	return errs
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, invalid("config: logging.level must be one of [debug, info, warn, error], got %q", s)
	}
	return lvl, nil
}

// NewLogger builds the configured slog logger writing to w. verbose forces
// debug level.
func (l LoggingConfig) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	lvl, _ := parseLevel(l.Level)
	if verbose {
		lvl = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
