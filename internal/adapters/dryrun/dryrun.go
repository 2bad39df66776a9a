// Package dryrun wraps outbound transports so dispatch is simulated.
// Reads pass through; sends and posts return synthetic receipts marked
// Simulated without reaching the wrapped transport.
package dryrun

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/roster/internal/logging"
	"github.com/example/roster/internal/models"
	"github.com/example/roster/internal/ports/secondary"
)

// Sink is a simulated secondary.OutboundSink.
type Sink struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewSink creates a simulated outbound sink.
func NewSink(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Sink{logger: logger.With("component", "dryrun"), now: time.Now}
}

// Send logs the message and returns a synthetic receipt.
func (s *Sink) Send(ctx context.Context, req secondary.SendRequest) (*models.SendReceipt, error) {
	id := "dryrun-" + uuid.NewString()
	logging.FromContext(ctx, s.logger).Info("dry run: message not sent",
		"from", req.From, "to", req.To, "cc", req.Cc, "subject", req.Subject)
	return &models.SendReceipt{MessageID: id, ThreadID: id, SentAt: s.now(), Simulated: true}, nil
}

// Channels is a secondary.ChannelSource whose posts are simulated.
type Channels struct {
	secondary.ChannelSource
	logger *slog.Logger
	now    func() time.Time
}

// NewChannels wraps inner so Post is simulated.
func NewChannels(inner secondary.ChannelSource, logger *slog.Logger) *Channels {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Channels{ChannelSource: inner, logger: logger.With("component", "dryrun"), now: time.Now}
}

// Post logs the post and returns a synthetic receipt.
func (c *Channels) Post(ctx context.Context, author string, channel models.ChannelHandle, text, replyTo string) (*models.PostReceipt, error) {
	logging.FromContext(ctx, c.logger).Info("dry run: post not published",
		"author", author, "channel", channel.Name, "chars", len(text))
	return &models.PostReceipt{
		MessageID: "dryrun-" + uuid.NewString(),
		ChannelID: channel.ID,
		PostedAt:  c.now(),
		Simulated: true,
	}, nil
}

var (
	_ secondary.OutboundSink  = (*Sink)(nil)
	_ secondary.ChannelSource = (*Channels)(nil)
)
