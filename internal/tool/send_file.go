package tool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filecourier/internal/domain"
)

// SendFileTool delivers local files to a user on a chat channel.
//
// The tool is a stateless-per-call validator/dispatcher with two pieces of
// injectable context: the routing defaults (updated by the host whenever the
// active conversation changes) and the delivery function. Every outcome,
// success or failure, is returned as a single sentence because the calling
// agent cannot branch on structured errors.
//
// One instance serves one logical session. SetContext is last-write-wins;
// hosts multiplexing sessions over a shared instance must accept races or
// use one instance per session.
type SendFileTool struct {
	mu             sync.Mutex
	send           domain.SendFunc
	defaultChannel string
	defaultChatID  string

	allowedDir string // canonical; empty = no containment boundary
	logger     *slog.Logger
}

// SendFileConfig configures the send_file tool.
type SendFileConfig struct {
	Send       domain.SendFunc // may be nil; settable later via SetSendFunc
	Channel    string          // initial default channel
	ChatID     string          // initial default chat
	AllowedDir string          // optional containment root for sendable files
	Logger     *slog.Logger
}

func NewSendFileTool(cfg SendFileConfig) *SendFileTool {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SendFileTool{
		send:           cfg.Send,
		defaultChannel: cfg.Channel,
		defaultChatID:  cfg.ChatID,
		allowedDir:     canonicalDir(cfg.AllowedDir),
		logger:         cfg.Logger,
	}
}

// SetContext overwrites both routing defaults unconditionally. Called by the
// host whenever the current conversation changes.
func (t *SendFileTool) SetContext(channel, chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.defaultChannel = channel
	t.defaultChatID = chatID
}

// SetSendFunc injects or replaces the delivery function.
func (t *SendFileTool) SetSendFunc(fn domain.SendFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.send = fn
}

func (t *SendFileTool) Name() string { return "send_file" }

func (t *SendFileTool) Description() string {
	return "Send one or more files to the user. Supports images, documents, audio, and other file types. Use this when you want to share files with the user."
}

func (t *SendFileTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"file_paths": {Type: "array", Items: "string", Description: "List of file paths to send (can be a single file or multiple files)"},
			"caption":    {Type: "string", Description: "Optional caption/description for the file(s)"},
			"channel":    {Type: "string", Description: "Optional: target channel (telegram, cli, ...)"},
			"chat_id":    {Type: "string", Description: "Optional: target chat/user ID"},
		},
		[]string{"file_paths"},
	)
}

// Execute validates the request and dispatches it. The returned string is the
// complete result contract: validation and delivery failures are reported in
// it, never as a non-nil error.
func (t *SendFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	paths := ArgsStringSlice(args, "file_paths")
	caption := ArgsString(args, "caption")

	t.mu.Lock()
	send := t.send
	channel := firstNonEmpty(ArgsString(args, "channel"), t.defaultChannel)
	chatID := firstNonEmpty(ArgsString(args, "chat_id"), t.defaultChatID)
	t.mu.Unlock()

	if channel == "" || chatID == "" {
		return "Error: " + ErrNoTarget.Error(), nil
	}
	if send == nil {
		return "Error: " + ErrNotConfigured.Error(), nil
	}

	validated, err := t.validatePaths(paths)
	if err != nil {
		return "Error: " + err.Error(), nil
	}

	msg := domain.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: caption,
		Files:   validated,
	}

	if err := send(ctx, msg); err != nil {
		t.logger.Warn("file delivery failed", "channel", channel, "chat_id", chatID, "err", err)
		return fmt.Sprintf("Error sending file(s): %v", err), nil
	}

	t.logger.Info("files sent", "channel", channel, "chat_id", chatID, "count", len(validated))
	if len(validated) == 1 {
		return fmt.Sprintf("Successfully sent %s to %s:%s", validated[0], channel, chatID), nil
	}
	return fmt.Sprintf("Successfully sent %d file(s) to %s:%s", len(validated), channel, chatID), nil
}

// validatePaths canonicalizes and checks every path, in input order.
// All-or-nothing: the first failing path aborts the whole batch, so no
// partial send can ever be constructed.
func (t *SendFileTool) validatePaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	validated := make([]string, 0, len(paths))
	for _, raw := range paths {
		resolved, err := resolveFilePath(raw)
		if err != nil {
			return nil, &PathError{Path: raw, Reason: PathUnresolvable, Err: err}
		}

		if t.allowedDir != "" && !isUnder(t.allowedDir, resolved) {
			return nil, &PathError{Path: raw, Reason: PathOutsideAllowed, AllowedDir: t.allowedDir}
		}

		info, err := os.Stat(resolved)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &PathError{Path: raw, Reason: PathNotFound}
		}
		if err != nil {
			return nil, &PathError{Path: raw, Reason: PathUnresolvable, Err: err}
		}
		if !info.Mode().IsRegular() {
			return nil, &PathError{Path: raw, Reason: PathNotFile}
		}

		validated = append(validated, resolved)
	}
	return validated, nil
}

// resolveFilePath expands ~, absolutizes, and resolves symlinks. A path whose
// target does not exist yet is returned in cleaned absolute form so the
// existence check can still name it in a "not found" error.
func resolveFilePath(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	if p == "" {
		return "", errors.New("empty path")
	}

	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return abs, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve symlinks: %w", err)
	}
	return resolved, nil
}

// isUnder reports whether path lies inside root. True path-ancestry
// comparison, not a bare string prefix: /allowed-other is not under /allowed.
func isUnder(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// canonicalDir normalizes the allowed directory once at construction.
// Symlinks are resolved so the containment check compares like with like.
func canonicalDir(dir string) string {
	if dir == "" {
		return ""
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	return filepath.Clean(dir)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ domain.Tool = (*SendFileTool)(nil)
