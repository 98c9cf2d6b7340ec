package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/twostep"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "twostep",
		Short: "Operator tool for the twostep authentication engine",
		Long: `twostep manages the SQL schema used by the engine, prints the effective
configuration and drives a local load test against an in-process engine.

Configuration is read from the YAML file given with --config, or from
TWOSTEP_* environment variables when no file is given.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML configuration file (default: TWOSTEP_* environment)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		newMigrateCmd(opts),
		newConfigCmd(opts),
		newLoadtestCmd(opts),
	)
	return root
}

func (o *rootOptions) loadConfig() (twostep.Config, error) {
	if o.configFile != "" {
		return twostep.LoadConfigFile(o.configFile)
	}
	return twostep.LoadConfigFromEnv()
}

func (o *rootOptions) logger() (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(o.logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", o.logLevel)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}
