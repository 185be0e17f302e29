package delivery

import (
	"context"
	"fmt"
	"html"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/pkg/logger"
)

// EmailSender sends one transactional email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// ResendEmailSender sends through the Resend API.
type ResendEmailSender struct {
	client *resend.Client
	from   string
}

// NewResendEmailSender creates a sender for apiKey.
func NewResendEmailSender(apiKey, from string) *ResendEmailSender {
	return &ResendEmailSender{client: resend.NewClient(apiKey), from: from}
}

// SendEmail sends htmlBody to a single recipient.
func (s *ResendEmailSender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email via Resend: %w", err)
	}
	return nil
}

// LogEmailSender logs instead of sending. Used when no API key is configured.
type LogEmailSender struct{}

// SendEmail logs the message.
func (LogEmailSender) SendEmail(_ context.Context, to, subject, _ string) error {
	logger.Info("email delivery skipped (no provider configured)",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

// NewEmailSender picks Resend when apiKey is set and the logging sender otherwise.
func NewEmailSender(apiKey, from string) EmailSender {
	if apiKey == "" {
		return LogEmailSender{}
	}
	return NewResendEmailSender(apiKey, from)
}

func renderEmailBody(job Job) string {
	link := ""
	if url, ok := job.Data["url"].(string); ok && url != "" {
		link = fmt.Sprintf(`<p><a href="%s">Open in LearnHub</a></p>`, html.EscapeString(url))
	}
	return fmt.Sprintf(`<h2>%s</h2><p>%s</p>%s`,
		html.EscapeString(job.Title),
		html.EscapeString(job.Message),
		link,
	)
}

var (
	_ EmailSender = (*ResendEmailSender)(nil)
	_ EmailSender = LogEmailSender{}
)
