package moderation

import (
	"context"
	"errors"
	"fmt"

	"promo-sentinel/internal/metrics"
	"promo-sentinel/internal/storage"
	"promo-sentinel/internal/utils"

	"go.uber.org/zap"
)

// Moderator ties the pipeline, the chat and the enforcer together. Runs for
// the same message id never overlap, so an edit arriving mid-check waits for
// the running check.
type Moderator struct {
	pipeline *Pipeline
	enforcer *Enforcer
	store    Store
	chat     Chat
	locks    *utils.KeyedMutex
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewModerator(pipeline *Pipeline, enforcer *Enforcer, store Store, chat Chat, logger *zap.Logger) *Moderator {
	return &Moderator{
		pipeline: pipeline,
		enforcer: enforcer,
		store:    store,
		chat:     chat,
		locks:    utils.NewKeyedMutex(),
		logger:   logger,
	}
}

func (m *Moderator) WithMetrics(metrics *metrics.Metrics) {
	m.metrics = metrics
}

// HandleMessage checks msg and, when it fails, replies with the warnings and
// blocks until the enforcer has cleaned up. Errors leave the message alone.
func (m *Moderator) HandleMessage(ctx context.Context, msg Message) error {
	unlock := m.locks.Lock(msg.ID)
	verdict, err := m.pipeline.Check(ctx, msg)
	if err != nil {
		unlock()
		m.metrics.MessageChecked("error")
		return fmt.Errorf("check message %s: %w", msg.ID, err)
	}
	if verdict.Passed {
		unlock()
		m.metrics.MessageChecked("passed")
		m.logger.Info("advertisement accepted",
			zap.String("message_id", msg.ID),
			zap.String("channel_id", msg.ChannelID),
			zap.String("author_id", msg.AuthorID),
		)
		return nil
	}

	for _, w := range verdict.Warnings {
		m.metrics.CheckFailed(string(w.Stage))
	}
	reply, err := m.chat.SendWarning(ctx, msg, verdict.Warnings)
	unlock()
	if err != nil {
		m.metrics.MessageChecked("send_failed")
		return fmt.Errorf("send warning for %s: %w", msg.ID, err)
	}
	m.metrics.MessageChecked("warned")
	m.logger.Info("advertisement rejected",
		zap.String("message_id", msg.ID),
		zap.String("channel_id", msg.ChannelID),
		zap.String("author_id", msg.AuthorID),
		zap.String("stage", string(verdict.Stage())),
	)

	m.enforcer.Enforce(ctx, msg, reply)
	return nil
}

// HandleDeleted reconciles the store after messages disappeared from the
// chat. Every id is attempted; failures are joined.
func (m *Moderator) HandleDeleted(ctx context.Context, messageIDs ...string) error {
	var errs []error
	for _, id := range messageIDs {
		unlock := m.locks.Lock(id)
		outcome, err := m.store.Delete(ctx, id)
		unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("reconcile %s: %w", id, err))
			continue
		}
		if outcome != storage.DeleteNone {
			m.metrics.Reconciled(outcome.String())
		}
	}
	return errors.Join(errs...)
}
