package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/secondary"
)

// Mailbox is a local SQLite mail transport. Messages a persona sends are
// delivered to every To and Cc recipient's inbox.
type Mailbox struct {
	db  *sql.DB
	now func() time.Time
}

// NewMailbox creates a new local mailbox.
func NewMailbox(db *sql.DB) *Mailbox {
	return &Mailbox{db: db, now: time.Now}
}

// Send stores the message and delivers it to each recipient.
func (m *Mailbox) Send(ctx context.Context, req secondary.SendRequest) (*models.SendReceipt, error) {
	id := uuid.NewString()
	sentAt := m.now().UTC()

	to, err := encodeList(normalizeAddresses(req.To))
	if err != nil {
		return nil, err
	}
	cc, err := encodeList(normalizeAddresses(req.Cc))
	if err != nil {
		return nil, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin send: %w", err)
	}
	defer tx.Rollback()

	threadID := id
	if req.ReplyTo != "" {
		var parentThread string
		err := tx.QueryRowContext(ctx, "SELECT thread_id FROM mail_messages WHERE id = ?", req.ReplyTo).Scan(&parentThread)
		switch {
		case err == nil:
			threadID = parentThread
		case err != sql.ErrNoRows:
			return nil, fmt.Errorf("failed to resolve reply thread: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mail_messages (id, thread_id, sender, recipients, cc, subject, body, reply_to, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, threadID, strings.ToLower(req.From), to, cc, req.Subject, req.Body, nullString(req.ReplyTo), formatTime(sentAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	for _, rcpt := range normalizeAddresses(append(append([]string{}, req.To...), req.Cc...)) {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO mail_deliveries (message_id, recipient) VALUES (?, ?) ON CONFLICT DO NOTHING",
			id, rcpt)
		if err != nil {
			return nil, fmt.Errorf("failed to deliver to %s: %w", rcpt, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit send: %w", err)
	}

	return &models.SendReceipt{MessageID: id, ThreadID: threadID, SentAt: sentAt}, nil
}

// ListRecent returns mail delivered to identity after since, newest first.
func (m *Mailbox) ListRecent(ctx context.Context, identity string, since time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT m.id, m.thread_id, m.sender, m.recipients, m.cc, m.subject, m.body, m.sent_at
		FROM mail_messages m
		JOIN mail_deliveries d ON d.message_id = m.id
		WHERE d.recipient = ? AND m.sent_at > ?
		ORDER BY m.sent_at DESC, m.id
		LIMIT ?`,
		strings.ToLower(identity), formatTime(since), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			msg            models.Message
			to, cc, sentAt string
			subject        sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.Sender, &to, &cc, &subject, &msg.Body, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
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
		msg.Subject = subject.String
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func normalizeAddresses(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

var (
	_ secondary.InboundMessageSource = (*Mailbox)(nil)
	_ secondary.OutboundSink         = (*Mailbox)(nil)
)
