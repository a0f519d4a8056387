package audit

import (
	"context"
	"log/slog"
)

// LogStore writes events to the structured log.
type LogStore struct {
	logger *slog.Logger
}

func NewLogStore(logger *slog.Logger) *LogStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogStore{logger: logger}
}

func (s *LogStore) Append(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, "audit event",
		"action", string(e.Action),
		"transaction_id", e.TransactionID,
		"receipt_no", e.ReceiptNo,
		"application_no", e.ApplicationNo,
		"stage", e.Stage,
		"reason", e.Reason,
		"request_id", e.RequestID,
		"timestamp", e.Timestamp,
	)
	return nil
}
