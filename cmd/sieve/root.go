// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/sigil-dev/sieve/internal/config"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	// Registers the sqlite storage backend.
	_ "github.com/sigil-dev/sieve/internal/store/sqlite"
)

// NewRootCmd creates the root sieve command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sieve",
		Short:         "Sieve - declarative queries over entity-relation graphs",
		Long:          "Sieve runs declarative queries against versioned entity-relation graphs, locally or through its HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags; these map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newVersionCmd(),
		newQueryCmd(),
		newValidateCmd(),
		newImportCmd(),
		newGraphsCmd(),
		newServeCmd(),
		newStatusCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	viper.Reset()
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return sieveerr.Errorf(sieveerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted: with it set, Viper also tries the bare
		// name, which collides with a ./sieve binary.
		v.SetConfigName("sieve")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/sieve")
		v.AddConfigPath("/etc/sieve")
		// No config file is fine; parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return sieveerr.Errorf(sieveerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return sieveerr.Errorf(sieveerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return sieveerr.Errorf(sieveerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}
	return bindFlags(v, cmd)
}

// flagKeys maps command flags to the config keys they override.
var flagKeys = map[string]string{
	"graph":   "graph.path",
	"branch":  "graph.branch",
	"listen":  "server.listen",
	"db":      "storage.path",
	"backend": "storage.backend",
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return sieveerr.Errorf(sieveerr.CodeCLISetupFailure, "binding %s flag: %w", name, err)
		}
	}
	return nil
}

// loadConfig resolves the effective configuration and installs the
// configured logger as the default.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.Logging.NewLogger(cmd.ErrOrStderr(), viper.GetBool("verbose"))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openInput returns the named file, or stdin for "-" or no argument.
func openInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, sieveerr.Errorf(sieveerr.CodeCLIInputInvalid, "reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, sieveerr.Errorf(sieveerr.CodeCLIInputInvalid, "reading %s: %w", args[0], err)
	}
	return data, nil
}
