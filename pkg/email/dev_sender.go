package email

import (
	"context"
	"log/slog"
)

type devSender struct {
	log *slog.Logger
}

// NewDevSender returns a sender that logs emails instead of delivering them.
// Intended for local development where no Postmark tokens are configured.
func NewDevSender(log *slog.Logger) EmailSender {
	return &devSender{log: log}
}

func (s *devSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "email (dev sender, not delivered)",
		slog.String("to", params.SendTo),
		slog.String("subject", params.Subject),
		slog.String("tag", params.Tag),
	)
	return nil
}
