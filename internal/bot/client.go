package bot

import (
	"context"

	"promo-sentinel/internal/moderation"

	"github.com/bwmarrin/discordgo"
)

const (
	maxEmbedsPerMessage = 10
	maxFieldsPerEmbed   = 25
)

// messageAPI is the slice of *discordgo.Session the chat adapter needs.
type messageAPI interface {
	ChannelMessage(channelID, messageID string) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string) error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error)
}

type sessionAPI struct {
	session *discordgo.Session
}

func (s sessionAPI) ChannelMessage(channelID, messageID string) (*discordgo.Message, error) {
	return s.session.ChannelMessage(channelID, messageID)
}

func (s sessionAPI) ChannelMessageDelete(channelID, messageID string) error {
	return s.session.ChannelMessageDelete(channelID, messageID)
}

func (s sessionAPI) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	return s.session.ChannelMessageSendComplex(channelID, data)
}

// discordChat implements moderation.Chat.
type discordChat struct {
	api messageAPI
}

func newDiscordChat(session *discordgo.Session) *discordChat {
	return &discordChat{api: sessionAPI{session: session}}
}

func (c *discordChat) FetchMessage(ctx context.Context, channelID, messageID string) (moderation.Message, error) {
	if err := ctx.Err(); err != nil {
		return moderation.Message{}, err
	}
	msg, err := c.api.ChannelMessage(channelID, messageID)
	if err != nil {
		return moderation.Message{}, err
	}
	return toMessage(msg), nil
}

func (c *discordChat) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.api.ChannelMessageDelete(channelID, messageID)
}

func (c *discordChat) SendWarning(ctx context.Context, original moderation.Message, warnings []moderation.Warning) (moderation.Message, error) {
	if err := ctx.Err(); err != nil {
		return moderation.Message{}, err
	}
	if len(warnings) > maxEmbedsPerMessage {
		warnings = warnings[:maxEmbedsPerMessage]
	}

	embeds := make([]*discordgo.MessageEmbed, 0, len(warnings))
	for _, w := range warnings {
		embeds = append(embeds, warningEmbed(w))
	}

	reply, err := c.api.ChannelMessageSendComplex(original.ChannelID, &discordgo.MessageSend{
		Embeds: embeds,
		Reference: &discordgo.MessageReference{
			MessageID: original.ID,
			ChannelID: original.ChannelID,
			GuildID:   original.GuildID,
		},
	})
	if err != nil {
		return moderation.Message{}, err
	}
	sent := toMessage(reply)
	if sent.GuildID == "" {
		sent.GuildID = original.GuildID
	}
	return sent, nil
}

func warningEmbed(w moderation.Warning) *discordgo.MessageEmbed {
	fields := w.Fields
	if len(fields) > maxFieldsPerEmbed {
		fields = fields[:maxFieldsPerEmbed]
	}
	embed := &discordgo.MessageEmbed{
		Title:       w.Title,
		Description: w.Description,
		Color:       colorWarning,
	}
	for _, field := range fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: field.Name, Value: field.Value})
	}
	return embed
}

func toMessage(msg *discordgo.Message) moderation.Message {
	if msg == nil {
		return moderation.Message{}
	}
	out := moderation.Message{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
		Content:   msg.Content,
		CreatedAt: msg.Timestamp,
	}
	if msg.Author != nil {
		out.AuthorID = msg.Author.ID
	}
	return out
}
