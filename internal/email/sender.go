package email

import (
	"context"
	"time"
)

type SendRequest struct {
	To      []string
	From    string // empty means the sender's default
	Subject string
	HTML    string
}

type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers email through an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
	SendBatch(ctx context.Context, reqs []SendRequest) ([]SendResult, error)
}
