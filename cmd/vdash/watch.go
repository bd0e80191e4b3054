package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/vehicle-dashboard/internal/publisher"
	"github.com/j-veylop/vehicle-dashboard/internal/services"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var publish, notify bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Recompute metrics whenever the database changes",
		Long: `Watches the database file and recomputes the snapshot whenever another
process records an odometer reading or fuel entry. With --publish every
snapshot is sent to the configured MQTT broker; with --notify new entries and
odometer anomalies raise a desktop notification.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []services.Option
			var pub *publisher.Publisher

			if publish {
				if !root.cfg.MQTT.Enabled() {
					return fmt.Errorf("--publish requires VDASH_MQTT_BROKER to be set")
				}
				var err error
				pub, err = publisher.New(root.cfg.MQTT)
				if err != nil {
					return fmt.Errorf("creating publisher: %w", err)
				}
				opts = append(opts, services.WithPublisher(pub))
			}
			if notify {
				opts = append(opts, services.WithNotifier(services.DesktopNotifier))
			}

			mgr, err := root.openManager(opts...)
			if err != nil {
				if pub != nil {
					pub.Close()
				}
				return err
			}
			defer closeManager(mgr)

			events := mgr.Subscribe()

			if err := mgr.Watch(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := mgr.Refresh(ctx); err != nil {
				return friendly("loading data", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", root.cfg.DatabasePath)

			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					switch e := ev.(type) {
					case services.SnapshotEvent:
						s := e.Snapshot
						fmt.Fprintf(out, "[%s] reading %s | last %d days: %s driven, %s fuel, %s spent, efficiency %s\n",
							time.Now().Format("15:04:05"),
							number(s.CurrentReading), root.cfg.WindowDays,
							number(s.WindowDistance), number(s.WindowFuel),
							number(s.WindowCost), number(s.WindowEfficiency))
					case services.ErrorEvent:
						fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s error: %v\n",
							time.Now().Format("15:04:05"), e.Service, e.Error)
					}
				case <-ctx.Done():
					fmt.Fprintln(out, "Stopped.")
					return nil
				}
			}
		},
	}

	cmd.Flags().BoolVar(&publish, "publish", false, "publish each snapshot to the MQTT broker")
	cmd.Flags().BoolVar(&notify, "notify", false, "show desktop notifications for new entries and anomalies")

	return cmd
}
