package domain

import "time"

// InboundMessage is a user message arriving from a channel.
type InboundMessage struct {
	Channel   string
	ChatID    string
	SenderID  string
	Content   string
	Timestamp time.Time
}

// OutboundMessage is a message leaving the bot towards a channel.
// Files holds absolute, validated paths of local files to deliver;
// ownership passes to the channel once the message is handed off.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	Files   []string
}
