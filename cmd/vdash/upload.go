package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newUploadCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload IMAGE",
		Short: "Read the odometer from a photo and record it",
		Long: `Sends the photo to the image recognition service and records the
recognized odometer value. Nothing is recorded if no value is recognized.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening image: %w", err)
			}
			defer func() { _ = f.Close() }()

			mgr, err := root.openManager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			reading, err := mgr.Vehicle().UploadOdometer(context.Background(), mgr.Session(), args[0], f)
			if err != nil {
				return friendly("uploading odometer photo", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Odometer uploaded: %s\n", number(reading.Value))
			printSummary(cmd, root, mgr.Vehicle().Snapshot)
			return nil
		},
	}
}
