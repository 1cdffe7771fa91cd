package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCronLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := NewCron(base, "scheduler")

	l.Info("wake", "now", "07:00")
	l.Error(errors.New("boom"), "panic", "job", 1)

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG msg=wake component=scheduler now=07:00")
	assert.Contains(t, out, "level=ERROR msg=panic component=scheduler error=boom job=1")
}

func TestCronLoggerNilBase(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		NewCron(nil, "scheduler").Error(errors.New("x"), "y")
	})
}
