package utils

import (
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeHost lowercases a host, drops a leading www. and a trailing dot and
// converts internationalised names to their ASCII form.
func NormalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if asciiHost, err := idna.Lookup.ToASCII(host); err == nil {
		host = asciiHost
	}
	return strings.TrimPrefix(host, "www.")
}

// MessageLink builds a jump link to a message. An empty guild id links into
// direct messages.
func MessageLink(guildID, channelID, messageID string) string {
	if guildID == "" {
		guildID = "@me"
	}
	return "https://discord.com/channels/" + guildID + "/" + channelID + "/" + messageID
}
