package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newListCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded odometer readings and fuel entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := root.openManager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			ctx := context.Background()
			userID := mgr.Session().UserID
			out := cmd.OutOrStdout()
			now := time.Now()

			readings, err := mgr.Database().ListOdometerReadings(ctx, userID)
			if err != nil {
				return friendly("listing odometer readings", err)
			}
			entries, err := mgr.Database().ListFuelEntries(ctx, userID)
			if err != nil {
				return friendly("listing fuel entries", err)
			}

			fmt.Fprintln(out, "Odometer readings:")
			fmt.Fprintln(out, "----------------------------------------")
			if len(readings) == 0 {
				fmt.Fprintln(out, "  none")
			}
			for i, r := range readings {
				if limit > 0 && i >= limit {
					fmt.Fprintf(out, "  ... %d more\n", len(readings)-limit)
					break
				}
				fmt.Fprintf(out, "  %-16s  %12s  %s\n",
					r.Timestamp.In(root.cfg.Location).Format("2006-01-02 15:04"), number(r.Value), when(r.Timestamp, now))
			}

			fmt.Fprintln(out, "\nFuel entries:")
			fmt.Fprintln(out, "----------------------------------------")
			if len(entries) == 0 {
				fmt.Fprintln(out, "  none")
			}
			for i, e := range entries {
				if limit > 0 && i >= limit {
					fmt.Fprintf(out, "  ... %d more\n", len(entries)-limit)
					break
				}
				fmt.Fprintf(out, "  %-16s  %10s x %-10s = %12s  %s\n",
					e.Timestamp.In(root.cfg.Location).Format("2006-01-02 15:04"),
					number(e.Quantity), number(e.Price), number(e.Cost()), when(e.Timestamp, now))
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "show at most this many rows per list (0 = all)")

	return cmd
}
