package bot

import (
	"context"
	"sync"
	"time"

	"promo-sentinel/internal/analytics"
	"promo-sentinel/internal/config"
	"promo-sentinel/internal/invites"
	"promo-sentinel/internal/metrics"
	"promo-sentinel/internal/moderation"
	"promo-sentinel/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	colorAction  = 0xF59E0B
	colorWarning = 0xEF4444
	colorError   = 0xF97316

	sweepInterval = time.Hour
)

type Bot struct {
	cfg         config.Config
	logger      *zap.Logger
	store       *storage.Store
	metrics     *metrics.Metrics
	session     *discordgo.Session
	moderator   *moderation.Moderator
	analytics   *analytics.Service
	channels    map[string]struct{}
	exemptRoles map[string]struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	stopSweep   chan struct{}
	inflight    sync.WaitGroup
}

// New builds the session and the moderation stack on top of it. cache may be
// nil.
func New(cfg config.Config, logger *zap.Logger, store *storage.Store, m *metrics.Metrics, cache invites.Cache) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		metrics:     m,
		session:     session,
		analytics:   analytics.New(store),
		channels:    toSet(cfg.Channels),
		exemptRoles: toSet(cfg.ExemptRoles),
		ctx:         ctx,
		cancel:      cancel,
		stopSweep:   make(chan struct{}),
	}

	chat := newDiscordChat(session)

	resolver := invites.NewResolver(invites.NewSessionLookup(session), invites.Config{
		RequestsPerSecond: cfg.Lookup.RequestsPerSecond,
		Burst:             cfg.Lookup.Burst,
		MaxConcurrent:     cfg.Lookup.MaxConcurrent,
		CacheTTL:          cfg.CacheTTL(),
	}, logger)
	resolver.WithMetrics(m)
	if cache != nil {
		resolver.WithCache(cache)
	}

	pipeline := moderation.NewPipeline(moderation.Config{
		MinDescriptionLength: cfg.MinDescriptionLength,
		Period:               store.Period(),
		Mode:                 moderation.Mode(cfg.PipelineMode),
		Language:             cfg.Language,
		AlertEmoji:           cfg.AlertEmoji,
		Location:             cfg.Location(),
		MaxConcurrentFetches: cfg.Lookup.MaxConcurrent,
	}, store, resolver, chat, logger)
	pipeline.WithMetrics(m)

	enforcer := moderation.NewEnforcer(chat, cfg.WarningDelay(), logger)
	enforcer.WithMetrics(m)

	b.moderator = moderation.NewModerator(pipeline, enforcer, store, chat, logger)
	b.moderator.WithMetrics(m)

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onMessageUpdate)
	b.session.AddHandler(b.onMessageDelete)
	b.session.AddHandler(b.onMessageDeleteBulk)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.startRetentionSweep()

	return nil
}

// Close stops the gateway, abandons pending warning deletions and waits for
// running handlers until ctx expires.
func (b *Bot) Close(ctx context.Context) {
	if b.session != nil {
		_ = b.session.Close()
	}
	b.cancel()
	close(b.stopSweep)
	if !b.drain(ctx) {
		b.logger.Warn("shutdown timed out with handlers still running", zap.Error(ctx.Err()))
	}
}

// track registers a running handler. It returns false once the bot is
// shutting down.
func (b *Bot) track() bool {
	if b.ctx.Err() != nil {
		return false
	}
	b.inflight.Add(1)
	return true
}

func (b *Bot) drain(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", session.State.User.Username),
		zap.Int("moderated_channels", len(b.channels)),
	)
}

// shouldModerate filters out bots, direct messages, unmoderated channels and
// members holding an exempt role.
func (b *Bot) shouldModerate(msg *discordgo.Message) bool {
	if msg == nil || msg.Author == nil || msg.Author.Bot {
		return false
	}
	if msg.GuildID == "" {
		return false
	}
	if !b.isModeratedChannel(msg.ChannelID) {
		return false
	}
	if len(b.exemptRoles) == 0 {
		return true
	}

	member := msg.Member
	if member == nil {
		member = b.memberForUser(msg.GuildID, msg.Author.ID)
	}
	if member == nil {
		return true
	}
	for _, roleID := range member.Roles {
		if _, ok := b.exemptRoles[roleID]; ok {
			return false
		}
	}
	return true
}

func (b *Bot) isModeratedChannel(channelID string) bool {
	_, ok := b.channels[channelID]
	return ok
}

func (b *Bot) memberForUser(guildID, userID string) *discordgo.Member {
	member, err := b.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member
	}
	member, _ = b.session.GuildMember(guildID, userID)
	return member
}

func (b *Bot) startRetentionSweep() {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-b.stopSweep:
				return
			case <-ticker.C:
				b.sweep()
			}
		}
	}()
}

func (b *Bot) sweep() {
	purged, err := b.store.PurgeExpired(b.ctx)
	if err != nil {
		b.logger.Warn("retention sweep failed", zap.Error(err))
		return
	}
	if purged > 0 {
		b.logger.Info("retention sweep", zap.Int64("purged", purged))
	}
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      fields,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}
