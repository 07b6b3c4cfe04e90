package moderation

import (
	"strings"
	"time"

	"promo-sentinel/internal/i18n"
	"promo-sentinel/internal/invites"
	"promo-sentinel/internal/storage"
)

type Stage string

const (
	StageHasInvite         Stage = "has_invite"
	StageWellFormed        Stage = "well_formed"
	StageDescriptionLength Stage = "description_length"
	StageHistoryByCode     Stage = "history_by_code"
	StageLinkValidity      Stage = "link_validity"
	StageHistoryByGuild    Stage = "history_by_guild"
)

type Field struct {
	Name  string
	Value string
}

// Warning is the reply sent for a failed stage.
type Warning struct {
	Stage       Stage
	Title       string
	Description string
	Fields      []Field
}

// embed field values are capped by the platform
const maxLinkLines = 8

func (p *Pipeline) t(key string, args ...any) string {
	return i18n.T(p.cfg.Language, key, args...)
}

func (p *Pipeline) title(key string) string {
	return p.cfg.AlertEmoji + p.t(key) + p.cfg.AlertEmoji
}

func (p *Pipeline) formatTime(at time.Time) string {
	return at.In(p.cfg.location()).Format(p.t("date_format"))
}

func (p *Pipeline) noInviteWarning() Warning {
	return Warning{
		Stage:       StageHasInvite,
		Title:       p.title("warn_no_invite_title"),
		Description: p.t("warn_no_invite_desc"),
	}
}

func (p *Pipeline) malformedWarning(stage Stage, bad []invites.Resolved) Warning {
	w := Warning{
		Stage:       stage,
		Title:       p.title("warn_malformed_title"),
		Description: p.t("warn_malformed_desc"),
	}
	for _, inv := range bad {
		w.Fields = append(w.Fields, Field{Name: p.t("field_invite_code"), Value: "`" + inv.Link + "`"})
	}
	return w
}

func (p *Pipeline) descriptionWarning() Warning {
	return Warning{
		Stage:       StageDescriptionLength,
		Title:       p.title("warn_description_title"),
		Description: p.t("warn_description_desc", p.cfg.MinDescriptionLength),
	}
}

func (p *Pipeline) expiringWarning(expiring []invites.Resolved) Warning {
	w := Warning{
		Stage:       StageLinkValidity,
		Title:       p.title("warn_expiring_title"),
		Description: p.t("warn_expiring_desc"),
	}
	for _, inv := range expiring {
		w.Fields = append(w.Fields, Field{
			Name:  p.t("field_expires_at", inv.Code),
			Value: p.formatTime(*inv.ExpiresAt),
		})
	}
	return w
}

func (p *Pipeline) recentWarning(stage Stage) Warning {
	return Warning{
		Stage:       stage,
		Title:       p.title("warn_recent_title"),
		Description: p.t("warn_recent_desc", p.cfg.othersDays(), p.cfg.selfDays(), p.cfg.graceMinutes()),
	}
}

func (p *Pipeline) previousMessagesField(links []string) Field {
	if len(links) > maxLinkLines {
		links = links[:maxLinkLines]
	}
	lines := make([]string, 0, len(links))
	for _, link := range links {
		lines = append(lines, p.t("link_message", link))
	}
	return Field{Name: p.t("field_previous_messages"), Value: strings.Join(lines, "\n")}
}

func (p *Pipeline) recentPostField(authorID string, record storage.ModerationRecord) Field {
	name := p.t("field_recent_others", p.cfg.othersDays())
	if record.AuthorID == authorID {
		name = p.t("field_recent_self", p.cfg.selfDays())
	}
	daysAgo := int(p.clock.Now().Sub(record.CreatedAt) / (24 * time.Hour))
	return Field{Name: name, Value: p.t("value_advertised_at", p.formatTime(record.CreatedAt), daysAgo)}
}
