package mailer

import (
	"context"
	"strings"

	authgate "github.com/goliatone/go-auth-gate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/resend/resend-go/v2"
)

// ResendSender delivers email through the Resend API.
type ResendSender struct {
	client *resend.Client
	logger authgate.Logger
}

var _ authgate.EmailSender = (*ResendSender)(nil)

// NewResendSender creates a sender for apiKey. An empty key is accepted so
// the service can start; every Send then fails with
// authgate.ErrSenderNotConfigured.
func NewResendSender(apiKey string, logger authgate.Logger) *ResendSender {
	if logger == nil {
		logger = authgate.DefaultLogger()
	}

	s := &ResendSender{logger: logger}
	if key := strings.TrimSpace(apiKey); key != "" {
		s.client = resend.NewClient(key)
	}
	return s
}

// Configured reports whether an API key was provided.
func (s *ResendSender) Configured() bool {
	return s.client != nil
}

// Send implements authgate.EmailSender.
func (s *ResendSender) Send(ctx context.Context, email authgate.Email) error {
	if s.client == nil {
		return authgate.ErrSenderNotConfigured
	}

	resp, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    email.From,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "resend: send failed")
	}

	s.logger.Debug("email accepted by resend", "id", resp.Id, "to", email.To)
	return nil
}
