package bot

import (
	"context"
	"fmt"
	"strings"

	"promo-sentinel/internal/i18n"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const maxHistoryServers = 10

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if !b.shouldModerate(msg.Message) {
		return
	}
	b.moderate(msg.Message)
}

// Edits are checked again as if the message had just been posted. Updates
// without an edit timestamp only carry embed unfurls and are skipped.
func (b *Bot) onMessageUpdate(session *discordgo.Session, update *discordgo.MessageUpdate) {
	if update.Message == nil || update.EditedTimestamp == nil {
		return
	}
	if !b.isModeratedChannel(update.ChannelID) {
		return
	}

	full, err := session.ChannelMessage(update.ChannelID, update.ID)
	if err != nil {
		b.logger.Debug("edited message fetch failed",
			zap.String("message_id", update.ID),
			zap.String("channel_id", update.ChannelID),
			zap.Error(err),
		)
		return
	}
	if full.GuildID == "" {
		full.GuildID = update.GuildID
	}
	if !b.shouldModerate(full) {
		return
	}
	b.moderate(full)
}

func (b *Bot) onMessageDelete(session *discordgo.Session, event *discordgo.MessageDelete) {
	if !b.isModeratedChannel(event.ChannelID) {
		return
	}
	if !b.track() {
		return
	}
	defer b.inflight.Done()
	if err := b.moderator.HandleDeleted(b.ctx, event.ID); err != nil {
		b.logger.Warn("delete reconciliation failed", zap.String("message_id", event.ID), zap.Error(err))
	}
}

func (b *Bot) onMessageDeleteBulk(session *discordgo.Session, event *discordgo.MessageDeleteBulk) {
	if !b.isModeratedChannel(event.ChannelID) {
		return
	}
	if !b.track() {
		return
	}
	defer b.inflight.Done()
	if err := b.moderator.HandleDeleted(b.ctx, event.Messages...); err != nil {
		b.logger.Warn("bulk delete reconciliation failed",
			zap.String("channel_id", event.ChannelID),
			zap.Int("messages", len(event.Messages)),
			zap.Error(err),
		)
	}
}

func (b *Bot) moderate(msg *discordgo.Message) {
	if !b.track() {
		return
	}
	defer b.inflight.Done()
	if err := b.moderator.HandleMessage(b.ctx, toMessage(msg)); err != nil {
		b.logger.Error("moderation failed",
			zap.String("message_id", msg.ID),
			zap.String("channel_id", msg.ChannelID),
			zap.String("guild_id", msg.GuildID),
			zap.String("author_id", msg.Author.ID),
			zap.Error(err),
		)
	}
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "adhistory":
		b.handleHistoryCommand(b.ctx, session, interaction, data.Options)
	}
}

func (b *Bot) handleHistoryCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	lang := b.cfg.Language
	title := i18n.T(lang, "history_title")
	if interaction.GuildID == "" {
		b.respondEmbed(session, interaction, b.commandEmbed(title, i18n.T(lang, "error_only_guild"), colorError, nil), true)
		return
	}

	userID := ""
	if len(options) > 0 && options[0].Type == discordgo.ApplicationCommandOptionUser {
		if user := options[0].UserValue(session); user != nil {
			userID = user.ID
		}
	}
	if userID == "" && interaction.Member != nil && interaction.Member.User != nil {
		userID = interaction.Member.User.ID
	}

	report, err := b.analytics.AuthorReport(ctx, interaction.GuildID, userID)
	if err != nil {
		b.logger.Warn("author report failed", zap.String("guild_id", interaction.GuildID), zap.String("author_id", userID), zap.Error(err))
		b.respondEmbed(session, interaction, b.commandEmbed(title, i18n.T(lang, "error_failed"), colorError, nil), true)
		return
	}

	description := i18n.T(lang, "history_desc", "<@"+userID+">")
	if report.Total == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed(title, description+"\n"+i18n.T(lang, "history_empty"), colorAction, nil), true)
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: i18n.T(lang, "history_field_total"), Value: fmt.Sprintf("%d", report.Total), Inline: true},
		{Name: i18n.T(lang, "history_field_live"), Value: fmt.Sprintf("%d", report.Live), Inline: true},
		{Name: i18n.T(lang, "history_field_removed"), Value: fmt.Sprintf("%d", report.Removed), Inline: true},
	}

	servers := report.Servers
	if len(servers) > maxHistoryServers {
		servers = servers[:maxHistoryServers]
	}
	loc := b.cfg.Location()
	lines := make([]string, 0, len(servers))
	for _, server := range servers {
		lines = append(lines, i18n.T(lang, "history_line",
			server.OwnerGuildID,
			server.Posts,
			server.LastPosted.In(loc).Format(i18n.T(lang, "date_format")),
		))
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: i18n.T(lang, "history_field_servers"), Value: strings.Join(lines, "\n")})

	b.respondEmbed(session, interaction, b.commandEmbed(title, description, colorAction, fields), true)
}
