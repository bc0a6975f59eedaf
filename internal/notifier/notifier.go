// Package notifier shapes change sets into messages and delivers them
// over the configured channel (Discord DM or Telegram chat).
package notifier

import "context"

// Field is one named entry of a message, one course group per field.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is the channel-independent notification contract: a title, a
// free-text description, an accent color and up to MaxFields fields.
type Message struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
}

// Notifier delivers a single message. Implementations must not be
// treated as durable: a delivery failure is logged and swallowed by the
// caller, never escalated to a run failure.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
