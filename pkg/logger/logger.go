package logger

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Cron adapts a slog.Logger to the cron.Logger interface, tagging records with component.
type Cron struct {
	log *slog.Logger
}

var _ cron.Logger = (*Cron)(nil)

// NewCron returns a cron logger. A nil base discards output.
func NewCron(base *slog.Logger, component string) *Cron {
	if base == nil {
		base = slog.New(slog.DiscardHandler)
	}
	return &Cron{log: base.With("component", component)}
}

// Info logs routine scheduler activity at debug level; cron is chatty.
func (c *Cron) Info(msg string, keysAndValues ...any) {
	c.log.Debug(msg, keysAndValues...)
}

// Error logs scheduler failures, including recovered job panics.
func (c *Cron) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
