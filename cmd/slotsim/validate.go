package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arloliu/slotindex/internal/logging"
)

func newValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file and print the resulting arena",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			level, err := flags.level()
			if err != nil {
				return err
			}
			cfg.ValidateWithWarnings(logging.NewSlogText(cmd.ErrOrStderr(), level))

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "lanes\t%d\n", cfg.MaxLanes)
			fmt.Fprintf(w, "slots\t%d (%d per lane)\n", cfg.Slots(), cfg.SlotsPerLane)
			fmt.Fprintf(w, "backpressure\t%s\n", cfg.Backpressure)
			fmt.Fprintf(w, "wait parking\t%t\n", cfg.Wait.Enabled)
			for _, ch := range cfg.Channels {
				fmt.Fprintf(w, "channel\t%s (%s)\n", ch.Name, ch.Kind)
			}
			fmt.Fprintln(w, "configuration is valid")

			return w.Flush()
		},
	}
}
