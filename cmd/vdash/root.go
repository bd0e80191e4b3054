package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/j-veylop/vehicle-dashboard/internal/config"
	"github.com/j-veylop/vehicle-dashboard/internal/logger"
	"github.com/j-veylop/vehicle-dashboard/internal/services"
	"github.com/j-veylop/vehicle-dashboard/internal/services/vehicle"
)

// rootOptions holds the persistent flags and the configuration they override.
type rootOptions struct {
	cfg    *config.Config
	dbPath string
	userID string
	debug  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "vdash",
		Short: "Track odometer readings and fuel purchases",
		Long: `vdash records odometer readings and fuel purchases for a vehicle and derives
distance, fuel cost and efficiency over the last days and per calendar month.
Data is stored in a local SQLite database.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.setup,
	}

	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database file (default is $VDASH_DATABASE_PATH or ~/.config/vdash/vehicle.db)")
	cmd.PersistentFlags().StringVar(&opts.userID, "user", "", "user id (default is $VDASH_USER_ID)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newStatsCmd(opts),
		newAddFuelCmd(opts),
		newAddReadingCmd(opts),
		newUploadCmd(opts),
		newListCmd(opts),
		newWatchCmd(opts),
		newPublishCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

// setup loads the configuration and applies flag overrides.
func (o *rootOptions) setup(cmd *cobra.Command, _ []string) error {
	logger.SetOutput(os.Stderr)
	if o.debug {
		logger.SetLevel(slog.LevelDebug)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if o.dbPath != "" {
		cfg.DatabasePath = o.dbPath
	}
	if o.userID != "" {
		cfg.UserID = o.userID
	}
	o.cfg = cfg

	logger.Debug("Configuration loaded", "command", cmd.Name(), "database", cfg.DatabasePath)
	return nil
}

// session returns the session for the configured user.
func (o *rootOptions) session() (vehicle.Session, error) {
	s := vehicle.Session{UserID: o.cfg.UserID}
	if !s.Authenticated() {
		return s, fmt.Errorf("%w: pass --user or set VDASH_USER_ID", vehicle.ErrNotAuthenticated)
	}
	return s, nil
}

// openManager creates the services for the configured user.
func (o *rootOptions) openManager(opts ...services.Option) (*services.Manager, error) {
	session, err := o.session()
	if err != nil {
		return nil, err
	}
	mgr, err := services.NewManager(o.cfg, session, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return mgr, nil
}

// closeManager closes mgr and reports any error on stderr.
func closeManager(mgr *services.Manager) {
	if err := mgr.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", err)
	}
}

// friendly adds a retry hint to store and network failures.
func friendly(action string, err error) error {
	switch {
	case errors.Is(err, vehicle.ErrNotAuthenticated),
		errors.Is(err, vehicle.ErrInvalidQuantity),
		errors.Is(err, vehicle.ErrInvalidReading):
		return err
	default:
		return fmt.Errorf("%s failed, please try again: %w", action, err)
	}
}
