// Package cmd provides the CLI commands for supportkb.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/HlibHav/support-kb/internal/config"
	"github.com/HlibHav/support-kb/internal/engine"
	"github.com/HlibHav/support-kb/internal/logging"
	"github.com/HlibHav/support-kb/pkg/version"
)

var (
	cfgFile string
	verbose bool
)

// NewRootCmd creates the root command for the supportkb CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supportkb",
		Short: "Hybrid search over a local support knowledge base",
		Long: `supportkb indexes a directory of support articles (markdown, plain
text, HTML) and answers queries with hybrid keyword + semantic search.

Builds are atomic: queries keep serving the previous index until the new
one is published.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("supportkb version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "mirror logs to stderr")

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	return config.Load()
}

// setupEngine loads config, installs logging, and opens the engine.
// The returned cleanup closes both.
func setupEngine() (*engine.Engine, *config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	logCfg := logging.DefaultConfig(cfg.Paths.DataDir)
	logCfg.Level = cfg.Logging.Level
	logCfg.WriteToStderr = verbose
	if verbose {
		logCfg.Level = "debug"
	}
	logCleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return nil, nil, nil, err
	}

	eng, err := engine.New(cfg)
	if err != nil {
		logCleanup()
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := eng.Close(); err != nil {
			slog.Warn("engine close failed", "error", err)
		}
		logCleanup()
	}
	return eng, cfg, cleanup, nil
}
