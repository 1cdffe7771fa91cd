package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"OpportunityMonitor/internal/app"
)

var runOutput string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor once",
	Long:  "Fetches every source, records new matches in the seen ledger and mails the digest. With --output the HTML is written to a file instead.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, err := app.New(cfg, logger).RunOnce(ctx, app.RunOptions{Output: runOutput})
		if err != nil {
			return fail("run failed", err)
		}

		switch {
		case report.Output != "":
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d item(s) to %s\n", report.Items, report.Output)
		case report.Delivered:
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %q with %d item(s)\n", report.Subject, report.Items)
		default:
			fmt.Fprintln(cmd.OutOrStdout(), "No new matches; digest skipped")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the HTML digest to this file instead of sending it")
	rootCmd.AddCommand(runCmd)
}
