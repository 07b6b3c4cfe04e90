package moderation

import (
	"context"
	"time"

	"promo-sentinel/internal/metrics"

	"go.uber.org/zap"
)

// Enforcer removes a warning and the message it answers once the warning has
// been visible long enough.
type Enforcer struct {
	chat    Chat
	delay   time.Duration
	clock   Clock
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewEnforcer(chat Chat, delay time.Duration, logger *zap.Logger) *Enforcer {
	return &Enforcer{chat: chat, delay: delay, clock: realClock{}, logger: logger}
}

func (e *Enforcer) WithClock(clock Clock) {
	e.clock = clock
}

func (e *Enforcer) WithMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// Enforce waits for the configured delay, then deletes reply and original in
// that order. Failures are logged and never returned.
func (e *Enforcer) Enforce(ctx context.Context, original, reply Message) {
	done := make(chan struct{})
	timer := e.clock.AfterFunc(e.delay, func() { close(done) })
	select {
	case <-done:
	case <-ctx.Done():
		timer.Stop()
		return
	}

	if err := e.chat.DeleteMessage(ctx, reply.ChannelID, reply.ID); err != nil {
		e.metrics.CleanupFailed("reply")
		e.logger.Warn("warning delete failed",
			zap.String("message_id", reply.ID),
			zap.String("channel_id", reply.ChannelID),
			zap.Error(err),
		)
	}
	if err := e.chat.DeleteMessage(ctx, original.ChannelID, original.ID); err != nil {
		e.metrics.CleanupFailed("original")
		e.logger.Warn("advertisement delete failed",
			zap.String("message_id", original.ID),
			zap.String("channel_id", original.ChannelID),
			zap.String("author_id", original.AuthorID),
			zap.Error(err),
		)
	}
}
