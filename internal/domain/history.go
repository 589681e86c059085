package domain

import (
	"context"
	"time"
)

// Delivery outcome recorded in the ledger.
const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

// DeliveryRecord is one attempted file delivery.
type DeliveryRecord struct {
	ID        int64
	Channel   string
	ChatID    string
	Caption   string
	Files     []string
	Status    string
	Error     string
	CreatedAt time.Time
}

// DeliveryLog persists delivery outcomes for auditing and the send_history tool.
type DeliveryLog interface {
	Record(ctx context.Context, rec DeliveryRecord) error
	Recent(ctx context.Context, limit int) ([]DeliveryRecord, error)
}
