package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/zonecorr/internal/config"
	"github.com/okian/zonecorr/pkg/logger"
)

// cli carries state shared by subcommands once the root pre-run has loaded it.
type cli struct {
	cfg        *config.Config
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "zonecorr",
		Short: "Temperature corrections for three-zone reactors",
		Long: `zonecorr computes the per-zone corrections (B, C, D) that bring a reactor's ` +
			`zone temperatures to their targets, either as an HTTP service or as a one-shot command.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (overrides "+config.EnvConfigFile+")")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "log format: text, json, console")

	root.AddCommand(newServeCmd(c), newComputeCmd(c))
	return root
}

// load reads configuration and initializes the global logger.
func (c *cli) load(cmd *cobra.Command) error {
	if c.configPath != "" {
		if err := os.Setenv(config.EnvConfigFile, c.configPath); err != nil {
			return fmt.Errorf("set config path: %w", err)
		}
	}
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.logFormat != "" {
		cfg.LogFormat = c.logFormat
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	c.cfg = cfg
	return nil
}
