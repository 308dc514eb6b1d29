package authgate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	authgate "github.com/goliatone/go-auth-gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(minter *MockLinkMinter, sender *MockEmailSender) *authgate.LinkIssuer {
	return authgate.NewLinkIssuer(minter, sender, authgate.IssuerConfig{
		From:            "Keeps <onboarding@mail.resend.dev>",
		ContinuationURL: "http://localhost:5173/login",
		ProductName:     "Keeps",
	}).WithLogger(silentLogger{})
}

func TestLinkIssuerIssueSendsRenderedEmail(t *testing.T) {
	minter := &MockLinkMinter{}
	sender := &MockEmailSender{}

	link := authgate.VerificationLink{
		URL:             "https://auth.example.com/verify?token=abc123",
		TargetEmail:     "a@x.com",
		ContinuationURL: "http://localhost:5173/login",
		SingleUse:       true,
		ExpiresAt:       time.Now().Add(time.Hour),
	}
	minter.On("MintVerificationLink", mock.Anything, "a@x.com", "http://localhost:5173/login").Return(link, nil).Once()
	sender.On("Send", mock.Anything, mock.MatchedBy(func(e authgate.Email) bool {
		return e.To == "a@x.com" &&
			e.From == "Keeps <onboarding@mail.resend.dev>" &&
			e.Subject == "Verify your email for Keeps" &&
			containsAll(e.HTML, "abc123", "Hi Ada,", "Verify Email", "<code>")
	})).Return(nil).Once()

	issuer := newTestIssuer(minter, sender)
	err := issuer.Issue(context.Background(), "  A@X.com ", "Ada")
	require.NoError(t, err)

	minter.AssertExpectations(t)
	sender.AssertExpectations(t)
}

func TestLinkIssuerRequiresEmail(t *testing.T) {
	minter := &MockLinkMinter{}
	sender := &MockEmailSender{}
	issuer := newTestIssuer(minter, sender)

	err := issuer.Issue(context.Background(), "   ", "")
	assert.ErrorIs(t, err, authgate.ErrEmailRequired)

	minter.AssertNotCalled(t, "MintVerificationLink", mock.Anything, mock.Anything, mock.Anything)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestLinkIssuerHidesProviderFailures(t *testing.T) {
	t.Run("mint failure", func(t *testing.T) {
		minter := &MockLinkMinter{}
		sender := &MockEmailSender{}
		minter.On("MintVerificationLink", mock.Anything, "a@x.com", mock.Anything).
			Return(authgate.VerificationLink{}, errors.New("auth0: 500 internal detail")).Once()

		err := newTestIssuer(minter, sender).Issue(context.Background(), "a@x.com", "")
		assert.ErrorIs(t, err, authgate.ErrDeliveryFailed)
		assert.NotContains(t, err.Error(), "internal detail")
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("send failure", func(t *testing.T) {
		minter := &MockLinkMinter{}
		sender := &MockEmailSender{}
		minter.On("MintVerificationLink", mock.Anything, "a@x.com", mock.Anything).
			Return(authgate.VerificationLink{URL: "https://x/verify?token=1"}, nil).Once()
		sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("resend: 403")).Once()

		err := newTestIssuer(minter, sender).Issue(context.Background(), "a@x.com", "")
		assert.ErrorIs(t, err, authgate.ErrDeliveryFailed)
	})

	t.Run("missing sender key", func(t *testing.T) {
		minter := &MockLinkMinter{}
		sender := &MockEmailSender{}
		minter.On("MintVerificationLink", mock.Anything, "a@x.com", mock.Anything).
			Return(authgate.VerificationLink{URL: "https://x/verify?token=1"}, nil).Once()
		sender.On("Send", mock.Anything, mock.Anything).Return(authgate.ErrSenderNotConfigured).Once()

		err := newTestIssuer(minter, sender).Issue(context.Background(), "a@x.com", "")
		assert.ErrorIs(t, err, authgate.ErrDeliveryFailed)
		assert.False(t, authgate.IsConfigurationError(err))
	})
}

func TestLinkIssuerHookSwallowsErrors(t *testing.T) {
	minter := &MockLinkMinter{}
	sender := &MockEmailSender{}
	minter.On("MintVerificationLink", mock.Anything, "a@x.com", mock.Anything).
		Return(authgate.VerificationLink{}, errors.New("boom")).Once()

	var events []authgate.ActivityEvent
	issuer := newTestIssuer(minter, sender).WithActivitySink(authgate.ActivitySinkFunc(
		func(ctx context.Context, event authgate.ActivityEvent) error {
			events = append(events, event)
			return nil
		},
	))

	assert.NotPanics(t, func() {
		issuer.OnAccountCreated(context.Background(), authgate.Account{ID: "1", Email: "a@x.com"})
		issuer.OnAccountCreated(context.Background(), authgate.Account{ID: "2"})
	})

	minter.AssertNumberOfCalls(t, "MintVerificationLink", 1)
	require.Len(t, events, 1)
	assert.Equal(t, authgate.ActivityEventVerificationFailed, events[0].EventType)
	assert.Equal(t, "hook", events[0].Source)
}

func TestLinkIssuerMintsNewLinkEachCall(t *testing.T) {
	minter := &MockLinkMinter{}
	sender := &MockEmailSender{}
	minter.On("MintVerificationLink", mock.Anything, "a@x.com", mock.Anything).
		Return(authgate.VerificationLink{URL: "https://x/verify?token=1"}, nil).Once()
	minter.On("MintVerificationLink", mock.Anything, "a@x.com", mock.Anything).
		Return(authgate.VerificationLink{URL: "https://x/verify?token=2"}, nil).Once()
	sender.On("Send", mock.Anything, mock.Anything).Return(nil)

	issuer := newTestIssuer(minter, sender)
	require.NoError(t, issuer.RequestVerification(context.Background(), "a@x.com"))
	require.NoError(t, issuer.RequestVerification(context.Background(), "a@x.com"))

	minter.AssertNumberOfCalls(t, "MintVerificationLink", 2)
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestLinkIssuerDispatchUsesGivenContinuation(t *testing.T) {
	minter := &MockLinkMinter{}
	sender := &MockEmailSender{}
	minter.On("MintVerificationLink", mock.Anything, "a@x.com", "https://app.example.com/welcome").
		Return(authgate.VerificationLink{URL: "https://x/verify?token=1"}, nil).Once()
	sender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	err := newTestIssuer(minter, sender).Dispatch(context.Background(),
		authgate.Account{Email: "a@x.com"}, "https://app.example.com/welcome")
	require.NoError(t, err)
	minter.AssertExpectations(t)
}

func TestIssuerConfigDefaults(t *testing.T) {
	issuer := authgate.NewLinkIssuer(&MockLinkMinter{}, &MockEmailSender{}, authgate.IssuerConfig{})
	cfg := issuer.Config()

	assert.Equal(t, authgate.DefaultFromAddress, cfg.From)
	assert.Equal(t, authgate.DefaultContinuationURL, cfg.ContinuationURL)
	assert.Equal(t, authgate.DefaultProductName, cfg.ProductName)
}
