package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/telebot.v4"
)

// sender is the subset of the bot API the notifier needs; it lets tests
// substitute the Telegram transport.
type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Telegram delivers messages as plain text to a configured chat.
type Telegram struct {
	log  *slog.Logger
	bot  sender
	chat telebot.ChatID
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(log *slog.Logger, token string, chatID int64, timeout time.Duration) (*Telegram, error) {
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	log.Info("Authorized on account", "account", bot.Me.Username)

	return &Telegram{log: log, bot: bot, chat: telebot.ChatID(chatID)}, nil
}

// Send renders the message as text. Telegram has no embed equivalent, so
// the fields become paragraphs; the field cap was already applied by the
// reporter.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	const opn = "notifier.Telegram.Send"

	if _, err := t.bot.Send(t.chat, renderText(msg)); err != nil {
		return fmt.Errorf("%s: failed to send message: %w", opn, err)
	}

	t.log.InfoContext(ctx, "Telegram message sent", "title", msg.Title, "fields", len(msg.Fields))
	return nil
}

func renderText(msg Message) string {
	var b strings.Builder
	b.WriteString(msg.Title)
	if msg.Description != "" {
		b.WriteString("\n")
		b.WriteString(msg.Description)
	}
	for _, f := range msg.Fields {
		b.WriteString("\n\n")
		b.WriteString(f.Name)
		b.WriteString("\n")
		b.WriteString(strings.ReplaceAll(f.Value, "**", ""))
	}
	return b.String()
}
