// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the content-engine CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/content-engine/internal/config"
	"github.com/pdiddy/content-engine/internal/history"
	"github.com/pdiddy/content-engine/internal/logging"
	"github.com/pdiddy/content-engine/internal/secrets"
	"github.com/pdiddy/content-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from the secrets directory at startup.
var loadedSecrets secrets.Set

// setupErr holds a config file error from initConfig until a command runs.
var setupErr error

// Exit codes by error class.
const (
	exitFailure   = 1
	exitConfig    = 2
	exitProvider  = 3
	exitTool      = 4
	exitPackaging = 5
)

// rootCmd is the base command for the content-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "content-engine",
	Short: "Multi-agent content pipeline: research, blog post, social media",
	Long: `content-engine runs three language-model agents in order. The research
agent gathers academic and web sources on a topic, the writer turns the
findings into a technical blog post, and the social media agent adapts the
post for LinkedIn and X. Output is written as a directory of markdown files
with an optional zip archive.

Keys are read from .secrets/ (groq-api-key, serper-api-key,
stability-api-key), the config file, or GROQ_API_KEY, SERPER_API_KEY and
STABILITY_API_KEY.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if setupErr != nil {
			return setupErr
		}
		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, os.Stderr)
		if err != nil {
			return &types.ConfigError{Field: "secrets-dir", Msg: err.Error()}
		}
		loadedSecrets = s
		if names := s.Names(); len(names) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", names)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./content-engine.yaml or ~/.config/content-engine/config.yaml)")
	pf.String("secrets-dir", ".secrets", "directory of API key files")
	pf.String("log-level", "", "log level: debug, info, warn, error (default info)")
	pf.String("log-format", "", "log format: text or json (default text)")

	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("log.format", pf.Lookup("log-format"))
}

func initConfig() {
	config.UserAgent = "content-engine/" + version
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if err := config.Setup(viper.GetViper(), cfgFile); err != nil {
		setupErr = err
		return
	}
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}

// loadConfig returns the effective configuration.
func loadConfig() (types.PipelineConfig, error) {
	return config.Load(viper.GetViper(), loadedSecrets)
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cfg types.PipelineConfig) *slog.Logger {
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// openHistory opens the run ledger. A ledger that cannot be opened is
// logged and skipped; it never blocks a run.
func openHistory(cfg types.HistoryConfig, logger *slog.Logger) *history.Store {
	if !cfg.Enabled {
		return nil
	}
	store, err := history.Open(cfg.Path)
	if err != nil {
		logger.Warn("run history disabled", slog.String("path", cfg.Path), slog.Any("error", err))
		return nil
	}
	return store
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, types.ErrConfig):
		return exitConfig
	case errors.Is(err, types.ErrProvider):
		return exitProvider
	case errors.Is(err, types.ErrTool):
		return exitTool
	case errors.Is(err, types.ErrPackaging):
		return exitPackaging
	default:
		return exitFailure
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
