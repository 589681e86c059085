package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"filecourier/internal/domain"
)

// CLI implements domain.Channel for an interactive terminal session.
// Files in outbound messages are listed by path; nothing is actually
// uploaded anywhere, which makes this the channel for local testing.
type CLI struct {
	bus    domain.MessageBus
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
}

type CLIConfig struct {
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &CLI{
		logger: cfg.Logger,
		in:     cfg.In,
		out:    cfg.Out,
	}
}

func (c *CLI) Name() string { return "cli" }

// Start runs the interactive REPL and blocks until context is cancelled or
// input ends.
func (c *CLI) Start(ctx context.Context, bus domain.MessageBus) error {
	c.bus = bus

	bus.OnOutbound("cli", func(msg domain.OutboundMessage) error {
		_, err := fmt.Fprint(c.out, renderOutbound(msg)+"You> ")
		return err
	})

	_, _ = fmt.Fprintln(c.out, "filecourier CLI. Type /help for commands, /quit to exit.")
	_, _ = fmt.Fprint(c.out, "You> ")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return nil // EOF
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			_, _ = fmt.Fprint(c.out, "You> ")
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			c.logger.Info("user requested quit")
			return nil
		}

		c.bus.Publish(domain.InboundMessage{
			Channel:  "cli",
			ChatID:   "direct",
			SenderID: "user",
			Content:  line,
		})
	}
}

// renderOutbound formats one outbound message for the terminal.
func renderOutbound(msg domain.OutboundMessage) string {
	var b strings.Builder
	b.WriteString("\n--- filecourier ---\n")
	if msg.Content != "" {
		b.WriteString(msg.Content + "\n")
	}
	for _, f := range msg.Files {
		b.WriteString("[file] " + f + "\n")
	}
	b.WriteString("-------------------\n")
	return b.String()
}

// Stop is a no-op for CLI (we exit when Start returns).
func (c *CLI) Stop() error { return nil }

func (c *CLI) Send(ctx context.Context, chatID string, content string) error {
	_, err := fmt.Fprintln(c.out, content)
	return err
}

var _ domain.Channel = (*CLI)(nil)
