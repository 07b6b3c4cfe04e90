package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidInput = errors.New("storage: invalid input")

// ModerationRecord remembers that an invite was advertised in a channel.
type ModerationRecord struct {
	InviteCode     string
	OwnerGuildID   string
	PostingGuildID string
	ChannelID      string
	MessageID      string
	AuthorID       string
	CreatedAt      time.Time
	SoftDeleted    bool
}

type KeyKind int

const (
	KeyCode KeyKind = iota
	KeyGuild
)

func (k KeyKind) String() string {
	switch k {
	case KeyGuild:
		return "guild"
	default:
		return "code"
	}
}

// LookupKey selects which column Validate compares against. Build it with
// CodeKey or GuildKey.
type LookupKey struct {
	kind  KeyKind
	value string
}

func CodeKey(code string) LookupKey {
	return LookupKey{kind: KeyCode, value: code}
}

func GuildKey(guildID string) LookupKey {
	return LookupKey{kind: KeyGuild, value: guildID}
}

func (k LookupKey) Kind() KeyKind { return k.kind }

func (k LookupKey) Value() string { return k.value }

type DeleteOutcome int

const (
	DeleteNone DeleteOutcome = iota
	DeletePurged
	DeleteSoftDeleted
)

func (o DeleteOutcome) String() string {
	switch o {
	case DeletePurged:
		return "purged"
	case DeleteSoftDeleted:
		return "soft_deleted"
	default:
		return "none"
	}
}

const recordColumns = `invite_code, owner_guild_id, posting_guild_id, channel_id, message_id, author_id, created_at, soft_deleted`

const (
	validateByCode = `
		SELECT ` + recordColumns + `
		FROM moderation_records
		WHERE message_id <> ? AND channel_id = ? AND invite_code = ?
		AND ((author_id = ? AND created_at > ?) OR (author_id <> ? AND created_at > ?))
		ORDER BY created_at DESC, message_id`

	validateByGuild = `
		SELECT ` + recordColumns + `
		FROM moderation_records
		WHERE message_id <> ? AND channel_id = ? AND owner_guild_id = ?
		AND ((author_id = ? AND created_at > ?) OR (author_id <> ? AND created_at > ?))
		ORDER BY created_at DESC, message_id`
)

func (s *Store) Insert(ctx context.Context, record ModerationRecord) error {
	if record.MessageID == "" || record.InviteCode == "" || record.ChannelID == "" {
		return fmt.Errorf("%w: record needs message, channel and invite code", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := record.CreatedAt
	if created.IsZero() {
		created = s.clock.Now()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO moderation_records (
			invite_code, owner_guild_id, posting_guild_id, channel_id,
			message_id, author_id, created_at, soft_deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id, invite_code) DO UPDATE SET
			owner_guild_id = excluded.owner_guild_id,
			posting_guild_id = excluded.posting_guild_id,
			channel_id = excluded.channel_id,
			author_id = excluded.author_id,
			created_at = excluded.created_at,
			soft_deleted = excluded.soft_deleted
	`),
		record.InviteCode,
		record.OwnerGuildID,
		nullString(record.PostingGuildID),
		record.ChannelID,
		record.MessageID,
		record.AuthorID,
		created.Unix(),
		boolToInt(record.SoftDeleted),
	)
	if err != nil {
		return fmt.Errorf("insert record %s/%s: %w", record.MessageID, record.InviteCode, err)
	}
	return nil
}

// Delete removes the records of a message. Records younger than the self
// repost grace are erased; older ones are kept as soft-deleted. Records past
// the retention horizon are purged on every call.
func (s *Store) Delete(ctx context.Context, messageID string) (DeleteOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	graceStart := now.Add(-s.period.SelfRepostGrace).Unix()
	horizon := now.Add(-s.period.Horizon()).Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DeleteNone, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, s.rebind(`
		DELETE FROM moderation_records WHERE message_id = ? AND created_at > ?
	`), messageID, graceStart)
	if err != nil {
		return DeleteNone, fmt.Errorf("hard delete %s: %w", messageID, err)
	}
	purged, err := res.RowsAffected()
	if err != nil {
		return DeleteNone, err
	}

	res, err = tx.ExecContext(ctx, s.rebind(`
		UPDATE moderation_records SET soft_deleted = 1 WHERE message_id = ? AND soft_deleted = 0
	`), messageID)
	if err != nil {
		return DeleteNone, fmt.Errorf("soft delete %s: %w", messageID, err)
	}
	marked, err := res.RowsAffected()
	if err != nil {
		return DeleteNone, err
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM moderation_records WHERE created_at < ?`), horizon); err != nil {
		return DeleteNone, fmt.Errorf("purge expired: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return DeleteNone, err
	}

	switch {
	case purged > 0:
		return DeletePurged, nil
	case marked > 0:
		return DeleteSoftDeleted, nil
	default:
		return DeleteNone, nil
	}
}

// Validate returns the records in channelID that match key and are still
// inside the ban window for authorID, newest first. excludeMessageID is never
// returned.
func (s *Store) Validate(ctx context.Context, excludeMessageID, channelID, authorID string, key LookupKey) ([]ModerationRecord, error) {
	if key.value == "" {
		return nil, nil
	}

	query := validateByCode
	if key.kind == KeyGuild {
		query = validateByGuild
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	selfStart := now.Add(-s.period.SelfWindow).Unix()
	othersStart := now.Add(-s.period.OthersWindow).Unix()

	rows, err := s.db.QueryContext(ctx, s.rebind(query),
		excludeMessageID, channelID, key.value,
		authorID, selfStart,
		authorID, othersStart,
	)
	if err != nil {
		return nil, fmt.Errorf("validate %s %s: %w", key.kind, key.value, err)
	}
	return scanRecords(rows)
}

type authorQuery struct {
	includeSoftDeleted bool
}

type AuthorOption func(*authorQuery)

// IncludeSoftDeleted makes RecordsByAuthor also return records whose message
// is gone.
func IncludeSoftDeleted() AuthorOption {
	return func(q *authorQuery) {
		q.includeSoftDeleted = true
	}
}

func (s *Store) RecordsByAuthor(ctx context.Context, guildID, authorID string, opts ...AuthorOption) ([]ModerationRecord, error) {
	var q authorQuery
	for _, opt := range opts {
		opt(&q)
	}

	query := `
		SELECT ` + recordColumns + `
		FROM moderation_records
		WHERE posting_guild_id = ? AND author_id = ?`
	if !q.includeSoftDeleted {
		query += ` AND soft_deleted = 0`
	}
	query += ` ORDER BY created_at DESC, message_id`

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, s.rebind(query), guildID, authorID)
	if err != nil {
		return nil, fmt.Errorf("records by author %s: %w", authorID, err)
	}
	return scanRecords(rows)
}

// PurgeExpired drops records older than the longest ban window.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	horizon := s.clock.Now().Add(-s.period.Horizon()).Unix()
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM moderation_records WHERE created_at < ?`), horizon)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRecords(rows *sql.Rows) ([]ModerationRecord, error) {
	defer rows.Close()

	var records []ModerationRecord
	for rows.Next() {
		var (
			record  ModerationRecord
			posting sql.NullString
			created int64
			deleted int
		)
		if err := rows.Scan(
			&record.InviteCode,
			&record.OwnerGuildID,
			&posting,
			&record.ChannelID,
			&record.MessageID,
			&record.AuthorID,
			&created,
			&deleted,
		); err != nil {
			return nil, err
		}
		record.PostingGuildID = posting.String
		record.CreatedAt = time.Unix(created, 0)
		record.SoftDeleted = deleted == 1
		records = append(records, record)
	}
	return records, rows.Err()
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
