package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/vehicle-dashboard/internal/clock"
	"github.com/j-veylop/vehicle-dashboard/internal/services"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	var format, nowFlag string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show current reading, trailing window totals and monthly figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}

			var opts []services.Option
			if nowFlag != "" {
				now, err := time.Parse(time.RFC3339, nowFlag)
				if err != nil {
					return fmt.Errorf("parsing --now: %w", err)
				}
				opts = append(opts, services.WithClock(clock.NewMock(now)))
			}

			mgr, err := root.openManager(opts...)
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			snap, err := mgr.Refresh(context.Background())
			if err != nil {
				return friendly("loading data", err)
			}

			return writeSnapshot(cmd.OutOrStdout(), format, root.cfg.UserID, root.cfg.WindowDays, snap)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json or yaml")
	cmd.Flags().StringVar(&nowFlag, "now", "", "compute as of this RFC3339 time instead of the current time")

	return cmd
}
