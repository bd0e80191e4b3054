package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/j-veylop/vehicle-dashboard/internal/publisher"
)

func newPublishCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish the current snapshot to the MQTT broker once",
		Long: `Computes the snapshot and publishes it as retained messages under
<prefix>/<user>/snapshot plus one topic per headline metric.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !root.cfg.MQTT.Enabled() {
				return fmt.Errorf("MQTT is not configured: set VDASH_MQTT_BROKER")
			}

			mgr, err := root.openManager()
			if err != nil {
				return err
			}
			defer closeManager(mgr)

			snap, err := mgr.Refresh(context.Background())
			if err != nil {
				return friendly("loading data", err)
			}

			pub, err := publisher.New(root.cfg.MQTT)
			if err != nil {
				return fmt.Errorf("creating publisher: %w", err)
			}
			defer pub.Close()

			userID := mgr.Session().UserID
			if err := pub.PublishSnapshot(userID, snap); err != nil {
				return friendly("publishing", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Published snapshot to %s\n", pub.Topic(userID, "snapshot"))
			return nil
		},
	}
}
