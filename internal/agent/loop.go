package agent

import (
	"context"
	"log/slog"
	"time"

	"filecourier/internal/bus"
	"filecourier/internal/domain"
	"filecourier/internal/tool"
)

// Loop is the dispatch engine: it consumes inbound messages, keeps the
// send_file tool's routing context pointed at the active conversation, and
// executes chat commands through the tool registry.
//
// Messages are processed strictly in order. That guarantee is what makes the
// shared routing context safe: the context is updated for a message before
// any tool runs for it, and no other message is in flight meanwhile.
type Loop struct {
	tools    *tool.Registry
	sendTool *tool.SendFileTool
	msgBus   domain.MessageBus
	events   *bus.EventBus
	logger   *slog.Logger
}

// LoopConfig holds the dependencies for the dispatch loop.
type LoopConfig struct {
	Tools    *tool.Registry
	SendTool *tool.SendFileTool
	Bus      domain.MessageBus
	Events   *bus.EventBus // optional
	Logger   *slog.Logger
}

func NewLoop(cfg LoopConfig) *Loop {
	return &Loop{
		tools:    cfg.Tools,
		sendTool: cfg.SendTool,
		msgBus:   cfg.Bus,
		events:   cfg.Events,
		logger:   cfg.Logger,
	}
}

// Run consumes inbound messages until the context is cancelled or the bus
// closes.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("dispatch loop started")

	inbound := l.msgBus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("dispatch loop stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound channel closed, dispatch loop stopping")
				return
			}
			l.processMessage(ctx, msg)
		}
	}
}

func (l *Loop) processMessage(ctx context.Context, msg domain.InboundMessage) {
	start := time.Now()

	// The active conversation changed: repoint the send tool's defaults
	// before anything executes for this message.
	l.sendTool.SetContext(msg.Channel, msg.ChatID)

	if l.events != nil {
		l.events.Emit(bus.Event{
			Type:    bus.EventMessageReceived,
			Source:  "agent",
			Payload: map[string]any{"channel": msg.Channel, "chat_id": msg.ChatID},
		})
	}

	response := l.handle(ctx, msg)
	if response == "" {
		return
	}

	if err := l.msgBus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: response,
	}); err != nil {
		l.logger.Error("cannot deliver response", "channel", msg.Channel, "chat_id", msg.ChatID, "err", err)
	}

	l.logger.Debug("message processed",
		"channel", msg.Channel,
		"chat_id", msg.ChatID,
		"duration", time.Since(start),
	)
}

// handle routes one message to a command handler and returns the reply text.
func (l *Loop) handle(ctx context.Context, msg domain.InboundMessage) string {
	cmd := ParseCommand(msg.Content)
	if cmd == nil {
		return "I deliver files. Try /send <path> [path ...] [-- caption], or /help for everything I can do."
	}

	result := l.HandleCommand(ctx, cmd, msg)
	if l.events != nil && result.Handled {
		l.events.Emit(bus.Event{
			Type:    bus.EventCommandHandled,
			Source:  "agent",
			Payload: map[string]any{"command": cmd.Name, "channel": msg.Channel},
		})
	}
	return result.Response
}
