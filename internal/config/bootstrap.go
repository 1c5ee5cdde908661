// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

//go:embed sieve.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/sieve/sieve.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", sieveerr.Errorf(sieveerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "sieve", "sieve.yaml"), nil
}

// Bootstrap writes the default commented config to path if nothing exists
// there yet. It reports whether a file was written.
func Bootstrap(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return false, sieveerr.Errorf(sieveerr.CodeConfigLoadReadFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		return false, sieveerr.Errorf(sieveerr.CodeConfigLoadReadFailure, "writing default config: %w", err)
	}

	slog.Info("created default config", slog.String("path", path))
	return true, nil
}

// BootstrapConfig writes the default config to DefaultConfigPath. Returns the
// path written, or empty string if the file already existed or an error
// occurred (non-fatal, logged and skipped).
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", slog.Any("error", err))
		return ""
	}
	written, err := Bootstrap(cfgPath)
	if err != nil {
		slog.Debug("skipping config bootstrap", slog.String("path", cfgPath), slog.Any("error", err))
		return ""
	}
	if !written {
		return ""
	}
	return cfgPath
}
