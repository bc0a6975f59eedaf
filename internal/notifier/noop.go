package notifier

import (
	"context"
	"log/slog"
)

// Noop is used when no delivery channel is configured. The run completes
// normally; each skipped message is logged so the degradation is visible.
type Noop struct {
	log *slog.Logger
}

// NewNoop creates a Noop notifier.
func NewNoop(log *slog.Logger) *Noop {
	return &Noop{log: log}
}

// Send logs the skip and drops the message.
func (n *Noop) Send(ctx context.Context, msg Message) error {
	n.log.WarnContext(ctx, "No notification channel configured; skipping message", "title", msg.Title)
	return nil
}
