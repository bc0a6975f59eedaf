package notifier

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v4"
)

// fakeSender captures what would have been sent to the bot API.
type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(_ telebot.Recipient, what interface{}, _ ...interface{}) (*telebot.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	text, _ := what.(string)
	f.sent = append(f.sent, text)
	return &telebot.Message{}, nil
}

func TestTelegram_Send(t *testing.T) {
	t.Parallel()

	fake := &fakeSender{}
	tg := &Telegram{
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		bot:  fake,
		chat: telebot.ChatID(42),
	}

	msg := Message{
		Title:       "🎉 Nowe wolne miejsca! (1 grup)",
		Description: "Pojawiły się wolne miejsca:",
		Fields: []Field{
			{Name: "🟢 Hiszpański (gr. 1)", Value: "💺 **4** wolnych (8/12)"},
		},
	}

	require.NoError(t, tg.Send(t.Context(), msg))
	require.Len(t, fake.sent, 1)

	text := fake.sent[0]
	assert.Contains(t, text, msg.Title)
	assert.Contains(t, text, msg.Description)
	assert.Contains(t, text, "🟢 Hiszpański (gr. 1)")
	// Discord bold markers are stripped for the plain-text channel.
	assert.Contains(t, text, "💺 4 wolnych (8/12)")
	assert.NotContains(t, text, "**")
}

func TestTelegram_SendFailure(t *testing.T) {
	t.Parallel()

	tg := &Telegram{
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		bot:  &fakeSender{err: errors.New("telegram unavailable")},
		chat: telebot.ChatID(42),
	}

	err := tg.Send(t.Context(), Message{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send message")
}

func TestNoop_Send(t *testing.T) {
	t.Parallel()

	noop := NewNoop(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, noop.Send(t.Context(), Message{Title: "skipped"}))
}
