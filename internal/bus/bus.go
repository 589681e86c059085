package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"filecourier/internal/domain"
)

// publishWait bounds how long Publish blocks on a full inbound queue before
// dropping the message.
const publishWait = 10 * time.Second

// InMemoryBus routes messages between channels and the dispatch loop inside
// one process. Outbound delivery is synchronous and returns the handler's
// error, so a failed file transfer surfaces to whoever asked for it.
type InMemoryBus struct {
	inbound  chan domain.InboundMessage
	outbound map[string]func(domain.OutboundMessage) error
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

// New creates an InMemoryBus with the given inbound buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound:  make(chan domain.InboundMessage, bufferSize),
		outbound: make(map[string]func(domain.OutboundMessage) error),
		logger:   logger,
	}
}

// Publish enqueues an inbound message, blocking up to publishWait when the
// queue is full rather than dropping immediately.
func (b *InMemoryBus) Publish(msg domain.InboundMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.inbound <- msg:
		return
	default:
	}

	b.logger.Warn("inbound queue full, waiting", "channel", msg.Channel, "sender", msg.SenderID)
	timer := time.NewTimer(publishWait)
	defer timer.Stop()
	select {
	case b.inbound <- msg:
		b.logger.Info("message enqueued after wait", "channel", msg.Channel)
	case <-timer.C:
		b.logger.Error("message dropped: inbound queue full",
			"channel", msg.Channel,
			"sender", msg.SenderID,
			"waited", publishWait,
		)
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.InboundMessage {
	return b.inbound
}

// SendOutbound hands the message to the handler registered for its channel
// and returns the delivery outcome.
func (b *InMemoryBus) SendOutbound(msg domain.OutboundMessage) error {
	b.mu.RLock()
	deliver, ok := b.outbound[msg.Channel]
	b.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no handler registered for channel %q", msg.Channel)
	}
	return deliver(msg)
}

// OnOutbound registers the delivery handler for a channel, replacing any
// previous one.
func (b *InMemoryBus) OnOutbound(channelName string, handler func(domain.OutboundMessage) error) {
	b.mu.Lock()
	b.outbound[channelName] = handler
	b.mu.Unlock()
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}

var _ domain.MessageBus = (*InMemoryBus)(nil)
