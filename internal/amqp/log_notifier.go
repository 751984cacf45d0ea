package amqp

import (
	"context"
	"log/slog"

	"github.com/Veraticus/fintracker/internal/service"
)

// LogNotifier writes events to the structured log. It stands in for the
// publisher when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the event and never fails.
func (n *LogNotifier) Notify(ctx context.Context, event service.Event) error {
	n.logger.InfoContext(ctx, "event",
		"id", event.ID,
		"type", string(event.Type),
		"group", event.GroupID)
	return nil
}
