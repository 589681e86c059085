package tool

import (
	"context"
	"fmt"
	"strings"

	"filecourier/internal/domain"
)

const defaultHistoryLimit = 10

// SendHistoryTool lets the agent inspect recent file deliveries.
type SendHistoryTool struct {
	log domain.DeliveryLog
}

func NewSendHistoryTool(log domain.DeliveryLog) *SendHistoryTool {
	return &SendHistoryTool{log: log}
}

func (t *SendHistoryTool) Name() string { return "send_history" }

func (t *SendHistoryTool) Description() string {
	return "List recent file deliveries: target, files, and whether sending succeeded. Useful to check what has already been sent to the user."
}

func (t *SendHistoryTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"limit": {Type: "number", Description: "Maximum number of entries to return (default 10)"},
		},
		nil,
	)
}

func (t *SendHistoryTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if t.log == nil {
		return "Delivery history is not enabled.", nil
	}

	limit := ArgsInt(args, "limit")
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	records, err := t.log.Recent(ctx, limit)
	if err != nil {
		return "", fmt.Errorf("query delivery history: %w", err)
	}
	if len(records) == 0 {
		return "No files have been sent yet.", nil
	}

	var b strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&b, "%s  %s:%s  %d file(s)  %s",
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			rec.Channel, rec.ChatID, len(rec.Files), rec.Status)
		if rec.Error != "" {
			fmt.Fprintf(&b, " (%s)", rec.Error)
		}
		b.WriteString("\n  " + strings.Join(rec.Files, ", ") + "\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

var _ domain.Tool = (*SendHistoryTool)(nil)
