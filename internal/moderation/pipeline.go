package moderation

import (
	"context"
	"fmt"

	"promo-sentinel/internal/invites"
	"promo-sentinel/internal/metrics"
	"promo-sentinel/internal/storage"

	"go.uber.org/zap"
)

// Verdict is the result of one pipeline run. Passed is true only when every
// stage passed and the records were committed.
type Verdict struct {
	Passed   bool
	Warnings []Warning
	Invites  []invites.Resolved
}

// Stage of the first failure, empty when the message passed.
func (v Verdict) Stage() Stage {
	if len(v.Warnings) == 0 {
		return ""
	}
	return v.Warnings[0].Stage
}

type stageFunc func(ctx context.Context, msg Message, refs []invites.Reference, resolved []invites.Resolved, earlier []Warning) (*Warning, error)

type Pipeline struct {
	cfg      Config
	store    Store
	resolver Resolver
	chat     Chat
	clock    Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewPipeline(cfg Config, store Store, resolver Resolver, chat Chat, logger *zap.Logger) *Pipeline {
	if cfg.Mode != ModeCollectAll {
		cfg.Mode = ModeFailFast
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 4
	}
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		chat:     chat,
		clock:    realClock{},
		logger:   logger,
	}
}

func (p *Pipeline) WithClock(clock Clock) {
	p.clock = clock
}

func (p *Pipeline) WithMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// Check runs the stages in order. In fail-fast mode the first warning ends the
// run; in collect-all mode every stage after HasInvite runs and the records
// are committed only when none of them warned. A returned error means the
// message could not be judged and must be left alone.
func (p *Pipeline) Check(ctx context.Context, msg Message) (Verdict, error) {
	refs := invites.Extract(msg.Content)
	if len(refs) == 0 {
		return Verdict{Warnings: []Warning{p.noInviteWarning()}}, nil
	}

	resolved := p.resolver.Resolve(ctx, refs)
	verdict := Verdict{Invites: resolved}

	stages := []stageFunc{
		p.checkWellFormed,
		p.checkDescriptionLength,
		p.checkHistoryByCode,
		p.checkLinkValidity,
		p.checkHistoryByGuild,
	}
	for _, stage := range stages {
		warning, err := stage(ctx, msg, refs, resolved, verdict.Warnings)
		if err != nil {
			return Verdict{}, err
		}
		if warning == nil {
			continue
		}
		verdict.Warnings = append(verdict.Warnings, *warning)
		if p.cfg.Mode == ModeFailFast {
			return verdict, nil
		}
	}
	if len(verdict.Warnings) > 0 {
		return verdict, nil
	}

	if err := p.commit(ctx, msg, resolved); err != nil {
		return Verdict{}, err
	}
	verdict.Passed = true
	return verdict, nil
}

func (p *Pipeline) checkWellFormed(_ context.Context, _ Message, _ []invites.Reference, resolved []invites.Resolved, _ []Warning) (*Warning, error) {
	bad := unresolved(resolved)
	if len(bad) == 0 {
		return nil, nil
	}
	w := p.malformedWarning(StageWellFormed, bad)
	return &w, nil
}

func (p *Pipeline) checkDescriptionLength(_ context.Context, msg Message, refs []invites.Reference, _ []invites.Resolved, _ []Warning) (*Warning, error) {
	length := len([]rune(msg.Content)) - invites.LinkLength(refs)
	if length >= p.cfg.MinDescriptionLength {
		return nil, nil
	}
	w := p.descriptionWarning()
	return &w, nil
}

func (p *Pipeline) checkHistoryByCode(ctx context.Context, msg Message, refs []invites.Reference, _ []invites.Resolved, _ []Warning) (*Warning, error) {
	seen := make(map[string]struct{}, len(refs))
	keys := make([]storage.LookupKey, 0, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref.Code]; ok {
			continue
		}
		seen[ref.Code] = struct{}{}
		keys = append(keys, storage.CodeKey(ref.Code))
	}
	return p.checkHistory(ctx, msg, StageHistoryByCode, keys)
}

func (p *Pipeline) checkLinkValidity(_ context.Context, _ Message, _ []invites.Reference, resolved []invites.Resolved, earlier []Warning) (*Warning, error) {
	if bad := unresolved(resolved); len(bad) > 0 {
		for _, w := range earlier {
			if w.Stage == StageWellFormed {
				return nil, nil
			}
		}
		w := p.malformedWarning(StageLinkValidity, bad)
		return &w, nil
	}

	var expiring []invites.Resolved
	for _, inv := range resolved {
		if inv.Expiring() {
			expiring = append(expiring, inv)
		}
	}
	if len(expiring) == 0 {
		return nil, nil
	}
	w := p.expiringWarning(expiring)
	return &w, nil
}

func (p *Pipeline) checkHistoryByGuild(ctx context.Context, msg Message, _ []invites.Reference, resolved []invites.Resolved, _ []Warning) (*Warning, error) {
	seen := make(map[string]struct{}, len(resolved))
	keys := make([]storage.LookupKey, 0, len(resolved))
	for _, inv := range resolved {
		if !inv.OK() {
			continue
		}
		if _, ok := seen[inv.GuildID]; ok {
			continue
		}
		seen[inv.GuildID] = struct{}{}
		keys = append(keys, storage.GuildKey(inv.GuildID))
	}
	return p.checkHistory(ctx, msg, StageHistoryByGuild, keys)
}

// commit replaces whatever the store held for this message with one record
// per resolved invite.
func (p *Pipeline) commit(ctx context.Context, msg Message, resolved []invites.Resolved) error {
	if _, err := p.store.Delete(ctx, msg.ID); err != nil {
		return fmt.Errorf("clear records of %s: %w", msg.ID, err)
	}

	created := msg.CreatedAt
	if created.IsZero() {
		created = p.clock.Now()
	}
	for _, inv := range resolved {
		if !inv.OK() {
			continue
		}
		err := p.store.Insert(ctx, storage.ModerationRecord{
			InviteCode:     inv.Code,
			OwnerGuildID:   inv.GuildID,
			PostingGuildID: msg.GuildID,
			ChannelID:      msg.ChannelID,
			MessageID:      msg.ID,
			AuthorID:       msg.AuthorID,
			CreatedAt:      created,
		})
		if err != nil {
			return err
		}
	}
	p.logger.Debug("advertisement recorded",
		zap.String("message_id", msg.ID),
		zap.String("channel_id", msg.ChannelID),
		zap.Int("invites", len(resolved)),
	)
	return nil
}

func unresolved(resolved []invites.Resolved) []invites.Resolved {
	var bad []invites.Resolved
	for _, inv := range resolved {
		if !inv.OK() {
			bad = append(bad, inv)
		}
	}
	return bad
}
