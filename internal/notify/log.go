package notify

import (
	"context"
	"log/slog"
)

// LogBackend writes email jobs to the process log instead of a broker.
// It serves development and tests where no broker is running.
type LogBackend struct {
	logger *slog.Logger
}

// NewLogBackend constructs a LogBackend over the given logger.
func NewLogBackend(logger *slog.Logger) *LogBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogBackend{logger: logger}
}

// Publish logs the message and reports success.
func (l *LogBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	l.logger.InfoContext(ctx, "email job", "channel", channel, "payload", string(data))
	return newMessageID(), nil
}

// Close is a no-op.
func (l *LogBackend) Close() error {
	return nil
}
