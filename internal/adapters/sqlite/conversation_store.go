package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/secondary"
)

// ConversationStore implements secondary.ConversationStore with SQLite.
type ConversationStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewConversationStore creates a new SQLite conversation store.
func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db, now: time.Now}
}

// CacheChannelMessages upserts fetched channel messages keyed by message ID.
func (s *ConversationStore) CacheChannelMessages(ctx context.Context, msgs []models.ChannelMessage) error {
	for _, msg := range msgs {
		if err := s.upsertChannelMessage(ctx, "", msg); err != nil {
			return err
		}
	}
	return nil
}

// RecordPost stores a channel message the owner posted.
func (s *ConversationStore) RecordPost(ctx context.Context, ownerID string, msg models.ChannelMessage) error {
	return s.upsertChannelMessage(ctx, ownerID, msg)
}

func (s *ConversationStore) upsertChannelMessage(ctx context.Context, ownerID string, msg models.ChannelMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cached_channel_messages (id, channel_id, channel, author, owner_id, text, reply_to, posted_at, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			owner_id = COALESCE(excluded.owner_id, cached_channel_messages.owner_id),
			cached_at = excluded.cached_at`,
		msg.ID, msg.ChannelID, nullString(msg.Channel), strings.ToLower(msg.Author), nullString(ownerID),
		msg.Text, nullString(msg.ReplyTo), formatTime(msg.PostedAt), formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to cache channel message %s: %w", msg.ID, err)
	}
	return nil
}

// RecordSent stores a message the owner sent, keyed by message ID.
func (s *ConversationStore) RecordSent(ctx context.Context, ownerID string, msg models.Message) error {
	to, err := encodeList(msg.To)
	if err != nil {
		return err
	}
	cc, err := encodeList(msg.Cc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sent_messages (id, owner_id, thread_id, recipients, cc, subject, body, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		msg.ID, ownerID, nullString(msg.ThreadID), to, cc, nullString(msg.Subject), nullString(msg.Body), formatTime(msg.SentAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record sent message %s: %w", msg.ID, err)
	}
	return nil
}

// ListSent returns the owner's sent messages after since, newest first.
func (s *ConversationStore) ListSent(ctx context.Context, ownerID string, since time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, recipients, cc, subject, body, sent_at
		FROM sent_messages
		WHERE owner_id = ? AND sent_at > ?
		ORDER BY sent_at DESC, id
		LIMIT ?`,
		ownerID, formatTime(since), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sent messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			msg                   models.Message
			thread, subject, body sql.NullString
			to, cc, sentAt        string
		)
		if err := rows.Scan(&msg.ID, &thread, &to, &cc, &subject, &body, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan sent message: %w", err)
		}
		if msg.To, err = decodeList(to); err != nil {
			return nil, err
		}
		if msg.Cc, err = decodeList(cc); err != nil {
			return nil, err
		}
		if msg.SentAt, err = parseTime(sentAt); err != nil {
			return nil, err
		}
		msg.ThreadID = thread.String
		msg.Subject = subject.String
		msg.Body = body.String
		msg.Sender = ownerID
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

var _ secondary.ConversationStore = (*ConversationStore)(nil)
