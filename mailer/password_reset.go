package mailer

import (
	"context"

	authgate "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-auth-gate/provider/local"
)

// PasswordResetMailer renders reset links and sends them through an
// authgate.EmailSender.
type PasswordResetMailer struct {
	sender  authgate.EmailSender
	from    string
	product string
}

var _ local.ResetNotifier = (*PasswordResetMailer)(nil)

// NewPasswordResetMailer creates a reset notifier. Empty from and product
// fall back to the issuer defaults.
func NewPasswordResetMailer(sender authgate.EmailSender, from, product string) *PasswordResetMailer {
	if from == "" {
		from = authgate.DefaultFromAddress
	}
	if product == "" {
		product = authgate.DefaultProductName
	}
	return &PasswordResetMailer{sender: sender, from: from, product: product}
}

// NotifyPasswordReset implements local.ResetNotifier.
func (m *PasswordResetMailer) NotifyPasswordReset(ctx context.Context, account authgate.Account, link string) error {
	html, err := authgate.RenderPasswordResetEmail(m.product, link, account.DisplayName)
	if err != nil {
		return err
	}

	return m.sender.Send(ctx, authgate.Email{
		To:      account.Email,
		From:    m.from,
		Subject: authgate.PasswordResetSubject(m.product),
		HTML:    html,
	})
}
