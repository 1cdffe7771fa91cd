package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"OpportunityMonitor/internal/app"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the monitor on the configured cron schedule",
	Long:  "Stays in the foreground and runs the monitor at every scheduler.cron activation until SIGINT or SIGTERM. Overlapping activations are skipped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.ValidateDelivery(); err != nil {
			return fail("mail delivery is not configured", err)
		}
		if err := app.New(cfg, logger).Watch(ctx); err != nil {
			return fail("watch stopped", err)
		}
		logger.Info("watch stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
