package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/arloliu/slotindex"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "slotsim",
		Short:         "Simulate timeslice admission into a slot index",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a yaml configuration (defaults when empty)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	cmd.AddCommand(newRunCmd(flags), newValidateCmd(flags))

	return cmd
}

// loadConfig reads the configuration named by --config, or the defaults.
func (f *rootFlags) loadConfig() (slotindex.Config, error) {
	if f.configPath == "" {
		return slotindex.DefaultConfig(), nil
	}

	return slotindex.LoadConfig(f.configPath)
}

func (f *rootFlags) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: %w", f.logLevel, err)
	}

	return level, nil
}
