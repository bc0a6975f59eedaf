package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord delivers messages as direct-message embeds via a Discord bot.
type Discord struct {
	log     *slog.Logger
	session *discordgo.Session
	userID  string
}

// NewDiscord creates a Discord notifier. Only the REST API is used, so no
// gateway connection is opened.
func NewDiscord(log *slog.Logger, token, userID string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Discord session: %w", err)
	}
	return &Discord{log: log, session: session, userID: userID}, nil
}

// Send opens (or reuses) the DM channel with the configured user and
// posts the message as an embed.
func (d *Discord) Send(ctx context.Context, msg Message) error {
	const opn = "notifier.Discord.Send"

	channel, err := d.session.UserChannelCreate(d.userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%s: failed to create DM channel: %w", opn, err)
	}

	fields := make([]*discordgo.MessageEmbedField, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}

	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Color,
		Fields:      fields,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: "seatwatch"},
	}

	if _, err = d.session.ChannelMessageSendEmbed(channel.ID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("%s: failed to send embed: %w", opn, err)
	}

	d.log.InfoContext(ctx, "Discord DM sent", "title", msg.Title, "fields", len(fields))
	return nil
}
