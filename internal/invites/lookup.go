package invites

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// SessionLookup resolves invites through the Discord REST API.
type SessionLookup struct {
	fetch func(code string) (*discordgo.Invite, error)
}

func NewSessionLookup(session *discordgo.Session) *SessionLookup {
	return &SessionLookup{fetch: func(code string) (*discordgo.Invite, error) {
		return session.Invite(code)
	}}
}

func (l *SessionLookup) LookupInvite(ctx context.Context, code string) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	invite, err := l.fetch(code)
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return Metadata{}, err
	}
	if invite == nil {
		return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}

	meta := Metadata{ExpiresAt: invite.ExpiresAt}
	if invite.Guild != nil {
		meta.GuildID = invite.Guild.ID
	}
	return meta, nil
}
