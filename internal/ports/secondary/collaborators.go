package secondary

import (
	"context"
	"time"

	"github.com/example/roster/internal/models"
)

// InboundMessageSource fetches recent mail addressed to an identity.
// Best-effort: implementations may return a partial list with an error.
type InboundMessageSource interface {
	ListRecent(ctx context.Context, identity string, since time.Time, limit int) ([]models.Message, error)
}

// ChannelSource is the contract of a chat-style channel service.
type ChannelSource interface {
	// ListChannelsFor returns the channels identity can read.
	ListChannelsFor(ctx context.Context, identity string) ([]models.ChannelHandle, error)

	// ListRecent returns the newest messages of a channel posted after since, oldest first.
	ListRecent(ctx context.Context, channel models.ChannelHandle, since time.Time, limit int) ([]models.ChannelMessage, error)

	// Post publishes text into a channel as author.
	Post(ctx context.Context, author string, channel models.ChannelHandle, text, replyTo string) (*models.PostReceipt, error)

	// ResolveByName maps a human-readable name to a handle. Returns
	// ErrNotFound when no channel carries the name.
	ResolveByName(ctx context.Context, name string) (*models.ChannelHandle, error)

	// OpenDirect returns the private channel between from and identity,
	// creating it if needed.
	OpenDirect(ctx context.Context, from, identity string) (*models.ChannelHandle, error)
}

// OutboundSink sends mail on behalf of an identity.
type OutboundSink interface {
	Send(ctx context.Context, req SendRequest) (*models.SendReceipt, error)
}

// SendRequest contains the parameters of an outbound message.
type SendRequest struct {
	From    string
	To      []string
	Cc      []string
	Subject string
	Body    string
	ReplyTo string
}

// ConversationStore is the shared message store personas read their own
// history from. Writes are upserts keyed by message ID.
type ConversationStore interface {
	// CacheChannelMessages write-through caches fetched channel messages.
	CacheChannelMessages(ctx context.Context, msgs []models.ChannelMessage) error

	// RecordSent stores a message the owner sent.
	RecordSent(ctx context.Context, ownerID string, msg models.Message) error

	// RecordPost stores a channel message the owner posted.
	RecordPost(ctx context.Context, ownerID string, msg models.ChannelMessage) error

	// ListSent returns the owner's sent messages after since, newest first.
	ListSent(ctx context.Context, ownerID string, since time.Time, limit int) ([]models.Message, error)
}

// Oracle is the external reasoning service.
type Oracle interface {
	Decide(ctx context.Context, instructions, contextBlock string) (*OracleResponse, error)
}

// OracleResponse is the raw oracle output plus observability numbers.
type OracleResponse struct {
	Raw              string
	Latency          time.Duration
	PromptTokens     int
	CompletionTokens int
}

// PersonaDirectory is the read-only persona lookup built at process start.
type PersonaDirectory interface {
	// Get returns the persona with id, if configured.
	Get(id string) (models.Persona, bool)

	// List returns every configured persona in a stable order.
	List() []models.Persona
}
