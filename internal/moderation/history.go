package moderation

import (
	"context"
	"fmt"
	"sort"

	"promo-sentinel/internal/storage"
	"promo-sentinel/internal/utils"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

type historyOutcome int

const (
	// the record no longer blocks anything
	historyExcluded historyOutcome = iota
	// the earlier message is still posted
	historyLive
	// the earlier message is gone but the record stays inside the ban window
	historyRemoved
)

// checkHistory looks up earlier posts matching any of keys and re-validates
// each of them against the chat before deciding.
func (p *Pipeline) checkHistory(ctx context.Context, msg Message, stage Stage, keys []storage.LookupKey) (*Warning, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var candidates []storage.ModerationRecord
	for _, key := range keys {
		records, err := p.store.Validate(ctx, msg.ID, msg.ChannelID, msg.AuthorID, key)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			if _, ok := seen[record.MessageID]; ok {
				continue
			}
			seen[record.MessageID] = struct{}{}
			candidates = append(candidates, record)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	outcomes := make([]historyOutcome, len(candidates))
	tasks := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(p.cfg.MaxConcurrentFetches)
	for i, record := range candidates {
		i, record := i, record
		tasks.Go(func(ctx context.Context) error {
			outcome, err := p.revalidate(ctx, msg, record)
			outcomes[i] = outcome
			return err
		})
	}
	if err := tasks.Wait(); err != nil {
		return nil, err
	}

	var (
		links  []string
		recent *storage.ModerationRecord
	)
	for i, outcome := range outcomes {
		record := candidates[i]
		switch outcome {
		case historyLive:
			guildID := record.PostingGuildID
			if guildID == "" {
				guildID = msg.GuildID
			}
			links = append(links, utils.MessageLink(guildID, record.ChannelID, record.MessageID))
		case historyRemoved:
			if recent == nil || record.CreatedAt.After(recent.CreatedAt) {
				recent = &candidates[i]
			}
		}
	}

	switch {
	case len(links) > 0:
		w := p.recentWarning(stage)
		w.Fields = append(w.Fields, p.previousMessagesField(links))
		return &w, nil
	case recent != nil:
		w := p.recentWarning(stage)
		w.Fields = append(w.Fields, p.recentPostField(msg.AuthorID, *recent))
		return &w, nil
	default:
		return nil, nil
	}
}

// revalidate decides how one earlier record counts against msg. A
// soft-deleted record is never linked, even when its message was edited and
// still exists. A live post by the same author inside the repost grace is
// superseded: it is deleted and stops counting. A post that vanished without
// the store noticing is reconciled through Store.Delete.
func (p *Pipeline) revalidate(ctx context.Context, msg Message, record storage.ModerationRecord) (historyOutcome, error) {
	if record.SoftDeleted {
		return historyRemoved, nil
	}

	_, fetchErr := p.chat.FetchMessage(ctx, record.ChannelID, record.MessageID)
	if fetchErr == nil {
		withinGrace := p.clock.Now().Sub(record.CreatedAt) < p.cfg.Period.SelfRepostGrace
		if record.AuthorID != msg.AuthorID || !withinGrace {
			return historyLive, nil
		}

		if err := p.chat.DeleteMessage(ctx, record.ChannelID, record.MessageID); err != nil {
			return historyLive, fmt.Errorf("supersede %s: %w", record.MessageID, err)
		}
		if _, err := p.store.Delete(ctx, record.MessageID); err != nil {
			return historyExcluded, err
		}
		p.metrics.Superseded()
		p.logger.Info("superseded earlier advertisement",
			zap.String("message_id", record.MessageID),
			zap.String("author_id", record.AuthorID),
			zap.String("channel_id", record.ChannelID),
		)
		return historyExcluded, nil
	}

	outcome, err := p.store.Delete(ctx, record.MessageID)
	if err != nil {
		return historyExcluded, err
	}
	p.metrics.Reconciled(outcome.String())
	p.logger.Debug("reconciled vanished advertisement",
		zap.String("message_id", record.MessageID),
		zap.String("outcome", outcome.String()),
		zap.NamedError("fetch_error", fetchErr),
	)
	if outcome == storage.DeleteSoftDeleted {
		return historyRemoved, nil
	}
	return historyExcluded, nil
}
