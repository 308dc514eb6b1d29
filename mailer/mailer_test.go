package mailer_test

import (
	"bytes"
	"context"
	"testing"

	authgate "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-auth-gate/mailer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	sent []authgate.Email
}

func (c *captureSender) Send(ctx context.Context, email authgate.Email) error {
	c.sent = append(c.sent, email)
	return nil
}

func TestResendSenderWithoutKey(t *testing.T) {
	sender := mailer.NewResendSender("  ", nil)

	assert.False(t, sender.Configured())

	err := sender.Send(context.Background(), authgate.Email{To: "a@b.co"})
	require.Error(t, err)
	assert.True(t, authgate.IsConfigurationError(err))
}

func TestResendSenderWithKey(t *testing.T) {
	assert.True(t, mailer.NewResendSender("re_test", nil).Configured())
}

func TestConsoleSenderWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	sender := mailer.NewConsoleSender(&buf)

	err := sender.Send(context.Background(), authgate.Email{
		To:      "ada@example.com",
		From:    "Keeps <noreply@example.com>",
		Subject: "Verify your email for Keeps",
		HTML:    "<p>hi</p>",
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "ada@example.com")
	assert.Contains(t, buf.String(), "Verify your email for Keeps")
}

func TestConsoleSenderHonorsCancelledContext(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mailer.NewConsoleSender(&buf).Send(ctx, authgate.Email{To: "a@b.co"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, buf.String())
}

func TestPasswordResetMailer(t *testing.T) {
	capture := &captureSender{}
	m := mailer.NewPasswordResetMailer(capture, "", "")

	account := authgate.Account{ID: "1", Email: "ada@example.com", DisplayName: "Ada"}
	err := m.NotifyPasswordReset(context.Background(), account, "https://x/password-reset?token=t")
	require.NoError(t, err)

	require.Len(t, capture.sent, 1)
	sent := capture.sent[0]
	assert.Equal(t, "ada@example.com", sent.To)
	assert.Equal(t, authgate.DefaultFromAddress, sent.From)
	assert.Equal(t, "Reset your Keeps password", sent.Subject)
	assert.Contains(t, sent.HTML, "Hi Ada,")
	assert.Contains(t, sent.HTML, "https://x/password-reset?token=t")
}
