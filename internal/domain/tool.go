package domain

import "context"

// Tool is the interface for agent capabilities (send files, query history, etc).
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToolDefinition is the declarative form of a tool handed to schema consumers.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// SendFunc delivers one outbound message. It returns an error on transport
// failure; callers must not assume anything about the message afterwards.
type SendFunc func(ctx context.Context, msg OutboundMessage) error
