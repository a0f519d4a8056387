package notifier

import (
	"context"
	"log/slog"

	"feedesk/internal/receipt/models"
	"feedesk/pkg/email"
)

// Log records deliveries instead of sending them. Development only.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Send(ctx context.Context, n models.Notification) error {
	l.logger.InfoContext(ctx, "receipt email not sent (log notifier)",
		"to", email.Mask(n.To),
		"subject", n.Subject,
		"attachment", n.Attachment.Name,
		"attachment_bytes", len(n.Attachment.Data),
	)
	return nil
}
