package tool

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"filecourier/internal/domain"
)

const (
	webShotTimeout = 60 * time.Second
	webShotQuality = 90
)

// WebShotTool renders a web page to a PNG inside the outbox directory, so the
// captured file can be handed to send_file afterwards.
type WebShotTool struct {
	enabled   bool
	outputDir string
	logger    *slog.Logger
}

// WebShotConfig configures the page capture tool.
type WebShotConfig struct {
	Enabled   bool
	OutputDir string // where screenshots land; should be the sendable files dir
	Logger    *slog.Logger
}

func NewWebShotTool(cfg WebShotConfig) *WebShotTool {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &WebShotTool{
		enabled:   cfg.Enabled,
		outputDir: cfg.OutputDir,
		logger:    cfg.Logger,
	}
}

func (t *WebShotTool) Name() string { return "capture_page" }

func (t *WebShotTool) Description() string {
	return "Capture a full-page screenshot of a web page and save it as a PNG file. Returns the saved file path; use send_file to deliver it to the user."
}

func (t *WebShotTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"url":      {Type: "string", Description: "The http(s) URL of the page to capture"},
			"filename": {Type: "string", Description: "Optional output file name (defaults to the page host plus a timestamp)"},
		},
		[]string{"url"},
	)
}

func (t *WebShotTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if !t.enabled {
		return "Page capture is disabled. Enable it in config: tools.capture.enabled = true", nil
	}

	rawURL := strings.TrimSpace(ArgsString(args, "url"))
	if rawURL == "" {
		return "", fmt.Errorf("missing argument: url")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("invalid url: %s", rawURL)
	}

	name := strings.TrimSpace(ArgsString(args, "filename"))
	if name == "" {
		name = fmt.Sprintf("%s-%s.png", sanitizeHost(parsed.Host), time.Now().Format("20060102-150405"))
	}
	if !strings.HasSuffix(name, ".png") {
		name += ".png"
	}
	// Flatten any directory component: output always lands in the outbox.
	outPath := filepath.Join(t.outputDir, filepath.Base(name))

	if err := os.MkdirAll(t.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	shotCtx, cancel := context.WithTimeout(ctx, webShotTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(shotCtx, opts...)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var buf []byte
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(rawURL),
		chromedp.FullScreenshot(&buf, webShotQuality),
	); err != nil {
		return "", fmt.Errorf("capture page %s: %w", rawURL, err)
	}

	if err := os.WriteFile(outPath, buf, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}

	t.logger.Info("page captured", "url", rawURL, "path", outPath, "bytes", len(buf))
	return fmt.Sprintf("Captured %s to %s", rawURL, outPath), nil
}

func sanitizeHost(host string) string {
	host = strings.ReplaceAll(host, ":", "-")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, host)
}

var _ domain.Tool = (*WebShotTool)(nil)
