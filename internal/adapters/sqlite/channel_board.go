package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/secondary"
)

// channelNamespace seeds deterministic channel IDs so re-seeding the board
// from the roster is idempotent.
var channelNamespace = uuid.MustParse("6f1c3b6e-5d1a-4c55-9a57-3f5e0f3e2b10")

const defaultNameCacheSize = 256

// ChannelBoard is a local SQLite chat transport.
type ChannelBoard struct {
	db    *sql.DB
	now   func() time.Time
	names *lru.Cache[string, models.ChannelHandle]
}

// NewChannelBoard creates a new local channel board.
func NewChannelBoard(db *sql.DB) (*ChannelBoard, error) {
	names, err := lru.New[string, models.ChannelHandle](defaultNameCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel name cache: %w", err)
	}
	return &ChannelBoard{db: db, now: time.Now, names: names}, nil
}

// ChannelName normalizes a channel name to lower case with a leading '#'.
func ChannelName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "#")
	return "#" + name
}

// EnsureChannel creates the named channel if needed and adds members.
func (b *ChannelBoard) EnsureChannel(ctx context.Context, name string, members ...string) (*models.ChannelHandle, error) {
	return b.ensure(ctx, ChannelName(name), false, members)
}

func (b *ChannelBoard) ensure(ctx context.Context, name string, direct bool, members []string) (*models.ChannelHandle, error) {
	h := models.ChannelHandle{
		ID:     uuid.NewSHA1(channelNamespace, []byte(name)).String(),
		Name:   name,
		Direct: direct,
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin channel setup: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO channels (id, name, direct, created_at) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO NOTHING",
		h.ID, h.Name, boolInt(direct), formatTime(b.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to create channel %s: %w", name, err)
	}

	for _, member := range normalizeAddresses(members) {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO channel_members (channel_id, identity) VALUES (?, ?) ON CONFLICT DO NOTHING",
			h.ID, member)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to %s: %w", member, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit channel setup: %w", err)
	}

	b.names.Add(h.Name, h)
	return &h, nil
}

// ListChannelsFor returns the non-direct channels identity is a member of.
func (b *ChannelBoard) ListChannelsFor(ctx context.Context, identity string) ([]models.ChannelHandle, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.direct
		FROM channels c
		JOIN channel_members m ON m.channel_id = c.id
		WHERE m.identity = ? AND c.direct = 0
		ORDER BY c.name`,
		strings.ToLower(identity),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var handles []models.ChannelHandle
	for rows.Next() {
		var (
			h      models.ChannelHandle
			direct int
		)
		if err := rows.Scan(&h.ID, &h.Name, &direct); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		h.Direct = direct == 1
		handles = append(handles, h)
	}
	return handles, rows.Err()
}

// ListRecent returns the newest posts after since, oldest first.
func (b *ChannelBoard) ListRecent(ctx context.Context, channel models.ChannelHandle, since time.Time, limit int) ([]models.ChannelMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, author, text, reply_to, posted_at
		FROM channel_posts
		WHERE channel_id = ? AND posted_at > ?
		ORDER BY posted_at DESC, id
		LIMIT ?`,
		channel.ID, formatTime(since), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list channel posts: %w", err)
	}
	defer rows.Close()

	var posts []models.ChannelMessage
	for rows.Next() {
		var (
			msg      models.ChannelMessage
			replyTo  sql.NullString
			postedAt string
		)
		if err := rows.Scan(&msg.ID, &msg.Author, &msg.Text, &replyTo, &postedAt); err != nil {
			return nil, fmt.Errorf("failed to scan channel post: %w", err)
		}
		if msg.PostedAt, err = parseTime(postedAt); err != nil {
			return nil, err
		}
		msg.ChannelID = channel.ID
		msg.Channel = channel.Name
		msg.ReplyTo = replyTo.String
		posts = append(posts, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(posts)
	return posts, nil
}

// Post publishes text into a channel.
func (b *ChannelBoard) Post(ctx context.Context, author string, channel models.ChannelHandle, text, replyTo string) (*models.PostReceipt, error) {
	id := uuid.NewString()
	postedAt := b.now().UTC()

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO channel_posts (id, channel_id, author, text, reply_to, posted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, channel.ID, strings.ToLower(author), text, nullString(replyTo), formatTime(postedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to post to %s: %w", channel.Name, err)
	}
	return &models.PostReceipt{MessageID: id, ChannelID: channel.ID, PostedAt: postedAt}, nil
}

// ResolveByName maps a channel name to its handle through the name cache.
func (b *ChannelBoard) ResolveByName(ctx context.Context, name string) (*models.ChannelHandle, error) {
	key := ChannelName(name)
	if h, ok := b.names.Get(key); ok {
		return &h, nil
	}

	var (
		h      models.ChannelHandle
		direct int
	)
	err := b.db.QueryRowContext(ctx, "SELECT id, name, direct FROM channels WHERE name = ?", key).Scan(&h.ID, &h.Name, &direct)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("channel %s: %w", key, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channel: %w", err)
	}
	h.Direct = direct == 1
	b.names.Add(key, h)
	return &h, nil
}

// OpenDirect returns the private channel between from and identity.
func (b *ChannelBoard) OpenDirect(ctx context.Context, from, identity string) (*models.ChannelHandle, error) {
	pair := normalizeAddresses([]string{from, identity})
	slices.Sort(pair)
	return b.ensure(ctx, "dm:"+strings.Join(pair, "|"), true, pair)
}

var _ secondary.ChannelSource = (*ChannelBoard)(nil)
