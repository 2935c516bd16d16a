package notifier

import (
	"context"

	"go.uber.org/zap"
)

// LogWriter only logs events. Used when no webhook is configured.
type LogWriter struct{}

func (l *LogWriter) Write(_ context.Context, e Event) error {
	zap.S().Named("log_writer").Warnw("webhook url not configured, notification not delivered", "event", e)
	return nil
}
