package i18n

import (
	"fmt"
	"strings"
)

const (
	English  = "en"
	Japanese = "ja"
)

var catalogs = map[string]map[string]string{
	English: {
		"warn_no_invite_title":    "Only Discord server advertisements are allowed",
		"warn_no_invite_desc":     "This channel is for advertising Discord servers.\nYour message needs at least one Discord invite link.",
		"warn_malformed_title":    "Invalid invite link",
		"warn_malformed_desc":     "Only valid invite links can be advertised.",
		"field_invite_code":       "Invite code",
		"warn_description_title":  "Description too short",
		"warn_description_desc":   "The description is too short.\nAt least %d characters are required besides the links.\nUse the description to promote your server!",
		"warn_expiring_title":     "Invite link cannot be advertised",
		"warn_expiring_desc":      "Only invite links that never expire can be used.",
		"field_expires_at":        "`%s` expires at",
		"warn_recent_title":       "Recently advertised servers cannot be advertised",
		"warn_recent_desc":        "Servers advertised by others in the last %d days, and by yourself in the last %d days, cannot be advertised.\nYour own post can be reposted within %d minutes.",
		"field_previous_messages": "Previously advertised messages",
		"link_message":            "[Message link](%s)",
		"field_recent_self":       "You advertised this server within the last %d days",
		"field_recent_others":     "This server was advertised within the last %d days",
		"value_advertised_at":     "Advertised on %s (%d days ago)",
		"date_format":             "2006-01-02 15:04:05 MST",
		"history_title":           "Advertisement history",
		"history_desc":            "Servers advertised by %s in this server.",
		"history_empty":           "No advertisements recorded.",
		"history_field_total":     "Posts",
		"history_field_live":      "Still posted",
		"history_field_removed":   "Removed",
		"history_field_servers":   "Servers",
		"history_line":            "`%s` · %d posts · last %s",
		"error_only_guild":        "This command can only be used in a server.",
		"error_failed":            "Something went wrong. Please try again later.",
	},
	Japanese: {
		"warn_no_invite_title":    "Discord鯖の宣伝のみ許可されています",
		"warn_no_invite_desc":     "ここはDiscord鯖の宣伝する為のチャンネルです\n少なくとも1つ以上のDiscord招待リンクが必要です",
		"warn_malformed_title":    "無効な招待リンク",
		"warn_malformed_desc":     "有効な招待リンクのみ宣伝できます",
		"field_invite_code":       "招待コード",
		"warn_description_title":  "説明文不足",
		"warn_description_desc":   "説明文の長さが短すぎます\n少なくとも%d文字は説明文が必要です\n説明文でサーバーをアピールしましょう!",
		"warn_expiring_title":     "宣伝できない招待リンク",
		"warn_expiring_desc":      "招待リンクは無期限のものだけ使用できます",
		"field_expires_at":        "`%s` の有効期限",
		"warn_recent_title":       "最近宣伝された鯖は宣伝できません",
		"warn_recent_desc":        "直近%d日間に他人が宣伝した鯖、及び直近%d日間に自分が宣伝した鯖は宣伝できません\n自分が宣伝した鯖は%d分以内であれば再投稿できます",
		"field_previous_messages": "以前に宣伝されたメッセージ",
		"link_message":            "[メッセージリンク](%s)",
		"field_recent_self":       "直近%d日間に自分がこのサーバーを宣伝しています",
		"field_recent_others":     "直近%d日間にこのサーバーが宣伝されています",
		"value_advertised_at":     "%s (%d日前)に宣伝",
		"date_format":             "2006年01月02日 15時04分05秒",
		"history_title":           "宣伝履歴",
		"history_desc":            "%s がこのサーバーで宣伝した鯖",
		"history_empty":           "宣伝の記録はありません",
		"history_field_total":     "投稿数",
		"history_field_live":      "掲載中",
		"history_field_removed":   "削除済み",
		"history_field_servers":   "サーバー",
		"history_line":            "`%s` · %d件 · 最終 %s",
		"error_only_guild":        "このコマンドはサーバー内でのみ使用できます",
		"error_failed":            "処理に失敗しました。しばらくしてから再度お試しください",
	},
}

// Normalize maps an arbitrary language tag to a supported catalog.
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if _, ok := catalogs[lang]; ok {
		return lang
	}
	return English
}

// T returns the text for key, formatted with args when given. Missing keys
// fall back to English and then to the key itself.
func T(lang, key string, args ...any) string {
	text, ok := catalogs[Normalize(lang)][key]
	if !ok {
		text, ok = catalogs[English][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}
