// Package email delivers queued emails. Content is rendered at enqueue time
// from agency templates, so the sender only needs a generic send primitive.
package email

import (
	"context"

	"tripdesk_backend/platform/config"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, toEmail, subject, htmlContent string) error
}

// NoopSender swallows every email. Used when email delivery is disabled.
type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, toEmail, subject, htmlContent string) error {
	return nil
}

// NewSender selects the delivery backend from config: Brevo when an API key
// is present, the agency's own SMTP server otherwise, noop when disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	if cfg.GetBrevoAPIKey() != "" {
		return NewBrevoSender(cfg), nil
	}
	if cfg.GetSMTPHost() != "" {
		return NewSMTPSender(
			cfg.GetSMTPHost(), cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(), cfg.GetEmailFromName(),
		), nil
	}
	return NoopSender{}, nil
}
