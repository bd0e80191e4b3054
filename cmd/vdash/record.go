package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/j-veylop/vehicle-dashboard/internal/models"
)

func newAddFuelCmd(root *rootOptions) *cobra.Command {
	var quantity, price float64

	cmd := &cobra.Command{
		Use:   "add-fuel",
		Short: "Record a fuel purchase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := root.openManager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			entry, err := mgr.Vehicle().AddFuelEntry(context.Background(), mgr.Session(), quantity, price)
			if err != nil {
				return friendly("adding fuel entry", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Fuel entry added: %s at %s (total %s)\n",
				number(entry.Quantity), number(entry.Price), number(entry.Cost()))
			printSummary(cmd, root, mgr.Vehicle().Snapshot)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&quantity, "quantity", "q", 0, "fuel quantity, must be greater than zero")
	cmd.Flags().Float64VarP(&price, "price", "p", 0, "price per unit of fuel")
	_ = cmd.MarkFlagRequired("quantity")

	return cmd
}

func newAddReadingCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-reading VALUE",
		Short: "Record an odometer reading entered by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid reading %q: %w", args[0], err)
			}

			mgr, err := root.openManager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			reading, err := mgr.Vehicle().AddOdometerReading(context.Background(), mgr.Session(), value)
			if err != nil {
				return friendly("adding odometer reading", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Odometer reading added: %s\n", number(reading.Value))
			printSummary(cmd, root, mgr.Vehicle().Snapshot)
			return nil
		},
	}
}

// printSummary prints the headline figures of the refreshed snapshot.
func printSummary(cmd *cobra.Command, root *rootOptions, snapshot func(string) (models.MetricsSnapshot, bool)) {
	snap, ok := snapshot(root.cfg.UserID)
	if !ok {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Current reading %s; last %d days: %s driven, %s spent, efficiency %s\n",
		number(snap.CurrentReading), root.cfg.WindowDays,
		number(snap.WindowDistance), number(snap.WindowCost), number(snap.WindowEfficiency))
}
