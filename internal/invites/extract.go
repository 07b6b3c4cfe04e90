package invites

import (
	"regexp"
	"strings"

	"promo-sentinel/internal/utils"
)

// Reference is an invite link found in a message.
type Reference struct {
	Link string
	Code string
}

var candidateRegex = regexp.MustCompile(`(?i)(?:https?://)?((?:www\.)?discord(?:app)?\.(?:gg|io|me|li|com))/(invite/)?([A-Za-z0-9]+)`)

// Hosts serving invites directly under the root path.
var shortHosts = map[string]struct{}{
	"discord.gg": {},
	"discord.io": {},
	"discord.me": {},
	"discord.li": {},
}

// Hosts serving invites under /invite/.
var inviteHosts = map[string]struct{}{
	"discord.com":    {},
	"discordapp.com": {},
}

// Extract returns the invite links in text from left to right. Repeated
// links are kept.
func Extract(text string) []Reference {
	matches := candidateRegex.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		// notdiscord.gg is some other host
		if m[2] > 0 && isHostByte(text[m[2]-1]) {
			continue
		}

		host := utils.NormalizeHost(text[m[2]:m[3]])
		invitePath := m[4] >= 0 && strings.EqualFold(text[m[4]:m[5]], "invite/")
		ref := Reference{Link: text[m[0]:m[1]], Code: text[m[6]:m[7]]}

		if _, ok := shortHosts[host]; ok && !invitePath {
			refs = append(refs, ref)
			continue
		}
		if _, ok := inviteHosts[host]; ok && invitePath {
			refs = append(refs, ref)
		}
	}
	return refs
}

func isHostByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.' || c == '-':
		return true
	}
	return false
}

// LinkLength is the number of characters taken by the links in refs.
func LinkLength(refs []Reference) int {
	total := 0
	for _, ref := range refs {
		total += len([]rune(ref.Link))
	}
	return total
}
