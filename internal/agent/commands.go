package agent

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"filecourier/internal/domain"
)

// ChatCommand represents a parsed chat command.
type ChatCommand struct {
	Name string   // command name without "/"
	Args []string // arguments after the command
	Raw  string   // original full text
}

// CommandResult holds the response for a handled command.
type CommandResult struct {
	Response string
	Handled  bool
}

// startTime records when the process started for /uptime.
var startTime = time.Now()

// Version is stamped by the main package.
var Version = "dev"

// ParseCommand checks if a message starts with "/" and parses it into a
// ChatCommand. Returns nil if the message is not a command.
func ParseCommand(text string) *ChatCommand {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return nil
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil
	}

	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return &ChatCommand{
		Name: name,
		Args: args,
		Raw:  text,
	}
}

// HandleCommand executes a chat command and returns its result.
func (l *Loop) HandleCommand(ctx context.Context, cmd *ChatCommand, msg domain.InboundMessage) CommandResult {
	switch cmd.Name {
	case "help", "start":
		return CommandResult{Response: helpText(), Handled: true}

	case "send":
		return l.handleSend(ctx, cmd)

	case "sent", "history":
		args := map[string]any{}
		if len(cmd.Args) > 0 {
			if n, err := strconv.Atoi(cmd.Args[0]); err == nil {
				args["limit"] = n
			}
		}
		return l.executeTool(ctx, "send_history", args)

	case "capture":
		if len(cmd.Args) == 0 {
			return CommandResult{Response: "Usage: /capture <url> [filename]", Handled: true}
		}
		args := map[string]any{"url": cmd.Args[0]}
		if len(cmd.Args) > 1 {
			args["filename"] = cmd.Args[1]
		}
		return l.executeTool(ctx, "capture_page", args)

	case "uptime":
		uptime := time.Since(startTime).Round(time.Second)
		return CommandResult{Response: fmt.Sprintf("Uptime: %s", uptime), Handled: true}

	case "version":
		return CommandResult{Response: fmt.Sprintf("filecourier v%s (%s/%s, Go %s)", Version, runtime.GOOS, runtime.GOARCH, runtime.Version()), Handled: true}

	default:
		return CommandResult{Response: fmt.Sprintf("Unknown command /%s. Type /help for available commands.", cmd.Name), Handled: false}
	}
}

// handleSend parses "/send <path> [path ...] [-- caption words]" and runs the
// send_file tool against the current conversation.
func (l *Loop) handleSend(ctx context.Context, cmd *ChatCommand) CommandResult {
	if len(cmd.Args) == 0 {
		return CommandResult{Response: "Usage: /send <path> [path ...] [-- caption]", Handled: true}
	}

	paths := cmd.Args
	caption := ""
	for i, arg := range cmd.Args {
		if arg == "--" {
			paths = cmd.Args[:i]
			caption = strings.Join(cmd.Args[i+1:], " ")
			break
		}
	}
	if len(paths) == 0 {
		return CommandResult{Response: "Usage: /send <path> [path ...] [-- caption]", Handled: true}
	}

	args := map[string]any{
		"file_paths": toAnySlice(paths),
	}
	if caption != "" {
		args["caption"] = caption
	}
	return l.executeTool(ctx, "send_file", args)
}

func (l *Loop) executeTool(ctx context.Context, name string, args map[string]any) CommandResult {
	result, err := l.tools.Execute(ctx, name, args)
	if err != nil {
		l.logger.Warn("tool execution failed", "tool", name, "err", err)
		return CommandResult{Response: fmt.Sprintf("Error: %v", err), Handled: true}
	}
	return CommandResult{Response: result, Handled: true}
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func helpText() string {
	return strings.TrimSpace(`
filecourier — file delivery bot

Commands:
/send <path> [path ...] [-- caption] — send local files to this chat
/sent [n] — list recent deliveries
/capture <url> [filename] — save a page screenshot into the outbox
/uptime — process uptime
/version — version info
/help — this message
`)
}
