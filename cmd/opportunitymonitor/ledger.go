package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"OpportunityMonitor/internal/fingerprint"
	"OpportunityMonitor/internal/infrastructure/storage"
)

var ledgerLatest uint64

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the seen ledger",
}

var ledgerStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many fingerprints are recorded and the most recent ones",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ledger, err := storage.OpenLedger(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return fail("open ledger", err)
		}
		defer ledger.Close()

		total, err := ledger.Count(ctx)
		if err != nil {
			return fail("count ledger", err)
		}
		latest, err := ledger.Latest(ctx, ledgerLatest)
		if err != nil {
			return fail("list ledger", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Ledger:       %s (%s)\n", cfg.Database.DSN, cfg.Database.Driver)
		fmt.Fprintf(out, "Fingerprints: %d\n", total)
		for _, rec := range latest {
			fmt.Fprintf(out, "  %s  %s\n", rec.FirstSeenUTC.Format(time.RFC3339), rec.ID)
		}
		return nil
	},
}

var ledgerCheckCmd = &cobra.Command{
	Use:   "check <title> <link>",
	Short: "Report whether an entry with this title and link was already notified",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ledger, err := storage.OpenLedger(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return fail("open ledger", err)
		}
		defer ledger.Close()

		id := fingerprint.Fingerprint(args[0], args[1])
		rec, ok, err := ledger.Record(ctx, id)
		if err != nil {
			return fail("look up fingerprint", err)
		}

		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintf(out, "%s  not seen\n", id)
			return nil
		}
		fmt.Fprintf(out, "%s  seen since %s\n", id, rec.FirstSeenUTC.Format(time.RFC3339))
		return nil
	},
}

func init() {
	ledgerStatsCmd.Flags().Uint64Var(&ledgerLatest, "latest", 10, "number of recent fingerprints to list")
	ledgerCmd.AddCommand(ledgerStatsCmd, ledgerCheckCmd)
	rootCmd.AddCommand(ledgerCmd)
}
