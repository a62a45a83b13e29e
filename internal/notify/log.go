package notify

import (
	"context"
	"log/slog"
)

// Log is a dry-run Sender that only logs what it would send.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification (dry run)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
