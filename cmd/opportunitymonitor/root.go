package main

import (
	"log/slog"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"OpportunityMonitor/internal/config"
	"OpportunityMonitor/internal/logging"
)

var (
	cfg    config.Config
	logger *slog.Logger

	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "opportunitymonitor",
	Short:         "RSS opportunity monitor",
	Long:          "Polls RSS/Atom feeds, keeps entries that match the keyword policy, skips anything already reported and mails a ranked HTML digest.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if logLevel != "" {
			c.Logging.Level = logLevel
		}
		cfg = c
		logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $MONITOR_CONFIG or sources.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
}

// fail logs err with its stack and returns it for cobra.
func fail(msg string, err error) error {
	if logger != nil {
		logger.Error(msg, "error", eris.ToString(err, true))
	}
	return err
}
