// Package moderation decides whether an advertisement may stay and enforces
// the decision.
package moderation

import (
	"context"
	"time"

	"promo-sentinel/internal/invites"
	"promo-sentinel/internal/storage"
)

// Message is the part of a chat message the checks look at.
type Message struct {
	ID        string
	ChannelID string
	GuildID   string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}

// Chat is the messaging platform as seen by the moderation code.
type Chat interface {
	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendWarning(ctx context.Context, original Message, warnings []Warning) (Message, error)
}

type Resolver interface {
	Resolve(ctx context.Context, refs []invites.Reference) []invites.Resolved
}

type Store interface {
	Insert(ctx context.Context, record storage.ModerationRecord) error
	Delete(ctx context.Context, messageID string) (storage.DeleteOutcome, error)
	Validate(ctx context.Context, excludeMessageID, channelID, authorID string, key storage.LookupKey) ([]storage.ModerationRecord, error)
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

type Mode string

const (
	ModeFailFast   Mode = "fail_fast"
	ModeCollectAll Mode = "collect_all"
)

type Config struct {
	MinDescriptionLength int
	Period               storage.BanPeriod
	Mode                 Mode
	Language             string
	AlertEmoji           string
	Location             *time.Location
	// MaxConcurrentFetches bounds the history re-validation fan-out.
	MaxConcurrentFetches int
}

func (c Config) othersDays() int {
	return int(c.Period.OthersWindow / (24 * time.Hour))
}

func (c Config) selfDays() int {
	return int(c.Period.SelfWindow / (24 * time.Hour))
}

func (c Config) graceMinutes() int {
	return int(c.Period.SelfRepostGrace / time.Minute)
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}
