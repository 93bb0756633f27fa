package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blueplan/noteshare-go/internal/noteshare/app"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired notes once and exit",
		Long: `Delete notes older than the retention window.

Only stores without native expiry (memory, sqlite) need this; the redis
store expires keys by itself. Useful as a cron job when the server runs
with a long SWEEP_INTERVAL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Close()

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.SweepOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired notes\n", n)
			return nil
		},
	}
}
