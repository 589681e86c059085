package tool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filecourier/internal/domain"
)

// captureSend records every message handed to the delivery function.
type captureSend struct {
	msgs []domain.OutboundMessage
	err  error
}

func (c *captureSend) fn(ctx context.Context, msg domain.OutboundMessage) error {
	c.msgs = append(c.msgs, msg)
	return c.err
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// canonical mirrors the tool's path resolution so expectations survive
// symlinked temp dirs (macOS /var -> /private/var).
func canonical(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatal(err)
	}
	return resolved
}

func TestSendFile_SingleFileSuccess(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "report.txt", "data")

	sender := &captureSend{}
	tool := NewSendFileTool(SendFileConfig{Send: sender.fn, Channel: "telegram", ChatID: "123", Logger: testLogger()})

	result, err := tool.Execute(context.Background(), map[string]any{
		"file_paths": []any{path},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := canonical(t, path)
	if !strings.Contains(result, want) {
		t.Errorf("single-file success should name the path, got %q", result)
	}
	if !strings.Contains(result, "telegram:123") {
		t.Errorf("expected target in result, got %q", result)
	}
	if len(sender.msgs) != 1 {
		t.Fatalf("expected exactly 1 delivery, got %d", len(sender.msgs))
	}
	if got := sender.msgs[0].Files; len(got) != 1 || got[0] != want {
		t.Errorf("expected files [%s], got %v", want, got)
	}
}

func TestSendFile_MultiFileSuccess_MentionsCount(t *testing.T) {
	dir := t.TempDir()
	a := writeTempFile(t, dir, "a.txt", "a")
	b := writeTempFile(t, dir, "b.txt", "b")

	sender := &captureSend{}
	tool := NewSendFileTool(SendFileConfig{Send: sender.fn, Channel: "telegram", ChatID: "9", Logger: testLogger()})

	result, err := tool.Execute(context.Background(), map[string]any{
		"file_paths": []any{a, b},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !strings.Contains(result, "2 file(s)") {
		t.Errorf("multi-file success should mention a count, got %q", result)
	}
	if strings.Contains(result, "a.txt") {
		t.Errorf("multi-file success should not name individual files, got %q", result)
	}
	// Order of validated paths must match input order.
	want := []string{canonical(t, a), canonical(t, b)}
	got := sender.msgs[0].Files
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected files %v in order, got %v", want, got)
	}
}

func TestSendFile_ContextResolution(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "f.txt", "x")

	sender := &captureSend{}
	tool := NewSendFileTool(SendFileConfig{Send: sender.fn, Logger: testLogger()})
	tool.SetContext("telegram", "123")

	if _, err := tool.Execute(context.Background(), map[string]any{"file_paths": []any{path}}); err != nil {
		t.Fatal(err)
	}

	msg := sender.msgs[0]
	if msg.Channel != "telegram" || msg.ChatID != "123" {
		t.Errorf("expected context defaults telegram:123, got %s:%s", msg.Channel, msg.ChatID)
	}
}

func TestSendFile_RequestOverridesContext(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "f.txt", "x")

	sender := &captureSend{}
	tool := NewSendFileTool(SendFileConfig{Send: sender.fn, Channel: "telegram", ChatID: "123", Logger: testLogger()})

	if _, err := tool.Execute(context.Background(), map[string]any{
		"file_paths": []any{path},
		"channel":    "cli",
		"chat_id":    "direct",
	}); err != nil {
		t.Fatal(err)
	}

	msg := sender.msgs[0]
	if msg.Channel != "cli" || msg.ChatID != "direct" {
		t.Errorf("request values should override defaults, got %s:%s", msg.Channel, msg.ChatID)
	}

	// The override is per call: defaults are unchanged afterwards.
	if _, err := tool.Execute(context.Background(), map[string]any{"file_paths": []any{path}}); err != nil {
		t.Fatal(err)
	}
	if msg := sender.msgs[1]; msg.Channel != "telegram" || msg.ChatID != "123" {
		t.Errorf("defaults should survive a one-off override, got %s:%s", msg.Channel, msg.ChatID)
	}
}

func TestSendFile_MissingTarget(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "f.txt", "x")

	sender := &captureSend{}
	tool := NewSendFileTool(SendFileConfig{Send: sender.fn, Logger: testLogger()})

	result, err := tool.Execute(context.Background(), map[string]any{"file_paths": []any{path}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result, ErrNoTarget.Error()) {
		t.Errorf("expected missing-target error, got %q", result)
	}
	if len(sender.msgs) != 0 {
		t.Error("delivery must not run without a target, even for valid paths")
	}
}

func TestSendFile_NotConfigured(t *testing.T) {
	tool := NewSendFileTool(SendFileConfig{Channel: "telegram", ChatID: "1", Logger: testLogger()})

	result, err := tool.Execute(context.Background(), map[string]any{"file_paths": []any{"/tmp/x"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result, ErrNotConfigured.Error()) {
		t.Errorf("expected not-configured error, got %q", result)
	}
}

func TestSendFile_EmptyPaths(t *testing.T) {
	sender := &captureSend{}
	tool := NewSendFileTool(SendFileConfig{Send: sender.fn, Channel: "telegram", ChatID: "1", Logger: testLogger()})

	for _, args := range []map[string]any{
		{"file_paths": []any{}},
		{},
	} {
		result, err := tool.Execute(context.Background(), args)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(result, ErrNoPaths.Error()) {
			t.Errorf("expected no-paths error for %v, got %q", args, result)
		}
	}
	if len(sender.msgs) != 0 {
		t.Error("delivery must not run for empty input")
	}
}

func TestSendFile_NotFound(t *testing.T) {
	dir := t.TempDir()
	good := writeTempFile(t, dir, "good.txt", "x")
	missing := filepath.Join(dir, "missing.txt")

	sender := &captureSend{}
	tool := NewSendFileTool(SendFileConfig{Send: sender.fn, Channel: "telegram", ChatID: "1", Logger: testLogger()})

	result, err := tool.Execute(context.Background(), map[string]any{
		"file_paths": []any{good, missing},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result, "file not found") || !strings.Contains(result, missing) {
		t.Errorf("expected not-found error naming %s, got %q", missing, result)
	}
	if len(sender.msgs) != 0 {
		t.Error("one bad path must abort the whole batch before delivery")
	}
}

func TestSendFile_DirectoryIsNotAFile(t *testing.T) {
	dir := t.TempDir()

	sender := &captureSend{}
	tool := NewSendFileTool(SendFileConfig{Send: sender.fn, Channel: "telegram", ChatID: "1", Logger: testLogger()})

	result, err := tool.Execute(context.Background(), map[string]any{"file_paths": []any{dir}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result, "not a file") {
		t.Errorf("expected not-a-file error, got %q", result)
	}
}

func TestSendFile_ContainmentEscape(t *testing.T) {
	base := t.TempDir()
	allowed := filepath.Join(base, "files")
	if err := os.Mkdir(allowed, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTempFile(t, base, "secret.txt", "s3cret")
	// Keep the traversal literal; filepath.Join would clean it away.
	escape := allowed + string(filepath.Separator) + ".." + string(filepath.Separator) + "secret.txt"

	sender := &captureSend{}
	tool := NewSendFileTool(SendFileConfig{
		Send: sender.fn, Channel: "telegram", ChatID: "1",
		AllowedDir: allowed, Logger: testLogger(),
	})

	result, err := tool.Execute(context.Background(), map[string]any{"file_paths": []any{escape}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result, "outside allowed directory") {
		t.Errorf("expected containment error, got %q", result)
	}
	if !strings.Contains(result, escape) {
		t.Errorf("containment error should name the offending input, got %q", result)
	}
	if len(sender.msgs) != 0 {
		t.Error("escaped path must never be delivered")
	}
}

func TestSendFile_InsideAllowedDir(t *testing.T) {
	allowed := t.TempDir()
	path := writeTempFile(t, allowed, "ok.txt", "x")

	sender := &captureSend{}
	tool := NewSendFileTool(SendFileConfig{
		Send: sender.fn, Channel: "telegram", ChatID: "1",
		AllowedDir: allowed, Logger: testLogger(),
	})

	result, err := tool.Execute(context.Background(), map[string]any{"file_paths": []any{path}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(result, "Successfully sent") {
		t.Errorf("expected success inside allowed dir, got %q", result)
	}
}

func TestSendFile_CaptionPassthrough(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "f.txt", "x")

	sender := &captureSend{}
	tool := NewSendFileTool(SendFileConfig{Send: sender.fn, Channel: "telegram", ChatID: "1", Logger: testLogger()})

	caption := "Here's the report  (unmodified) "
	if _, err := tool.Execute(context.Background(), map[string]any{
		"file_paths": []any{path},
		"caption":    caption,
	}); err != nil {
		t.Fatal(err)
	}
	if got := sender.msgs[0].Content; got != caption {
		t.Errorf("caption must pass through exactly, got %q", got)
	}

	// Omitted caption defaults to empty string.
	if _, err := tool.Execute(context.Background(), map[string]any{"file_paths": []any{path}}); err != nil {
		t.Fatal(err)
	}
	if got := sender.msgs[1].Content; got != "" {
		t.Errorf("omitted caption should be empty, got %q", got)
	}
}

func TestSendFile_DeliveryFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "f.txt", "x")

	sender := &captureSend{err: fmt.Errorf("telegram: connection reset")}
	tool := NewSendFileTool(SendFileConfig{Send: sender.fn, Channel: "telegram", ChatID: "1", Logger: testLogger()})

	result, err := tool.Execute(context.Background(), map[string]any{"file_paths": []any{path}})
	if err != nil {
		t.Fatalf("delivery faults must not escape as errors, got %v", err)
	}
	if !strings.Contains(result, "Error sending file(s)") || !strings.Contains(result, "connection reset") {
		t.Errorf("expected delivery failure string with cause, got %q", result)
	}
	if len(sender.msgs) != 1 {
		t.Fatalf("expected exactly 1 delivery attempt, got %d", len(sender.msgs))
	}
}

func TestSendFile_BareStringPathAccepted(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "f.txt", "x")

	sender := &captureSend{}
	tool := NewSendFileTool(SendFileConfig{Send: sender.fn, Channel: "telegram", ChatID: "1", Logger: testLogger()})

	result, err := tool.Execute(context.Background(), map[string]any{"file_paths": path})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(result, "Successfully sent") {
		t.Errorf("bare string file_paths should be accepted, got %q", result)
	}
}

func TestSendFile_Metadata(t *testing.T) {
	tool := NewSendFileTool(SendFileConfig{Logger: testLogger()})

	if tool.Name() != "send_file" {
		t.Errorf("unexpected name %q", tool.Name())
	}
	params := tool.Parameters()
	props := params["properties"].(map[string]any)
	for _, key := range []string{"file_paths", "caption", "channel", "chat_id"} {
		if _, ok := props[key]; !ok {
			t.Errorf("missing parameter %q in schema", key)
		}
	}
	fp := props["file_paths"].(map[string]any)
	if fp["type"] != "array" {
		t.Errorf("file_paths should be an array, got %v", fp["type"])
	}
	if items, ok := fp["items"].(map[string]any); !ok || items["type"] != "string" {
		t.Errorf("file_paths items should be strings, got %v", fp["items"])
	}
	required := params["required"].([]string)
	if len(required) != 1 || required[0] != "file_paths" {
		t.Errorf("only file_paths should be required, got %v", required)
	}
}

// --- internal taxonomy ---

func TestValidatePaths_TypedErrors(t *testing.T) {
	base := t.TempDir()
	allowed := filepath.Join(base, "files")
	if err := os.Mkdir(allowed, 0o755); err != nil {
		t.Fatal(err)
	}
	inside := writeTempFile(t, allowed, "in.txt", "x")
	outside := writeTempFile(t, base, "out.txt", "x")

	tool := NewSendFileTool(SendFileConfig{AllowedDir: allowed, Logger: testLogger()})

	tests := []struct {
		name   string
		path   string
		reason PathErrorReason
	}{
		{"outside allowed", outside, PathOutsideAllowed},
		{"escape via dotdot", allowed + string(filepath.Separator) + ".." + string(filepath.Separator) + "out.txt", PathOutsideAllowed},
		{"missing", filepath.Join(allowed, "nope.txt"), PathNotFound},
		{"directory", allowed, PathNotFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tool.validatePaths([]string{tt.path})
			var perr *PathError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *PathError, got %v", err)
			}
			if perr.Reason != tt.reason {
				t.Errorf("expected reason %d, got %d (%v)", tt.reason, perr.Reason, perr)
			}
			if perr.Path != tt.path {
				t.Errorf("error should carry the original input %q, got %q", tt.path, perr.Path)
			}
		})
	}

	got, err := tool.validatePaths([]string{inside})
	if err != nil {
		t.Fatalf("valid path rejected: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 validated path, got %v", got)
	}
}

func TestValidatePaths_EmptyIsTyped(t *testing.T) {
	tool := NewSendFileTool(SendFileConfig{Logger: testLogger()})
	if _, err := tool.validatePaths(nil); !errors.Is(err, ErrNoPaths) {
		t.Errorf("expected ErrNoPaths, got %v", err)
	}
}

func TestIsUnder_SiblingDirectory(t *testing.T) {
	// /allowed-other must not count as inside /allowed.
	if isUnder("/allowed", "/allowed-other/file.txt") {
		t.Error("sibling directory treated as contained")
	}
	if !isUnder("/allowed", "/allowed/sub/file.txt") {
		t.Error("nested file should be contained")
	}
	if !isUnder("/allowed", "/allowed") {
		t.Error("root itself should be contained")
	}
}

func TestResolveFilePath_HomeShorthand(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := resolveFilePath("~/somefile.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, home) {
		t.Errorf("expected home expansion under %s, got %s", home, got)
	}
}
