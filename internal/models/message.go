package models

import "time"

// Message is an inbound or outbound mail message.
type Message struct {
	ID       string
	ThreadID string
	Sender   string
	To       []string
	Cc       []string
	Subject  string
	Body     string
	SentAt   time.Time
	Unread   bool
}

// ChannelHandle is a resolved channel destination.
type ChannelHandle struct {
	ID     string
	Name   string
	Direct bool
}

// ChannelMessage is one post in a channel.
type ChannelMessage struct {
	ID        string
	ChannelID string
	Channel   string
	Author    string
	Text      string
	ReplyTo   string
	PostedAt  time.Time
	Unread    bool
}

// SendReceipt is returned by an outbound sink after a send.
// Simulated is set when the send was a dry run.
type SendReceipt struct {
	MessageID string
	ThreadID  string
	SentAt    time.Time
	Simulated bool
}

// PostReceipt is returned by a channel after a post.
type PostReceipt struct {
	MessageID string
	ChannelID string
	PostedAt  time.Time
	Simulated bool
}
