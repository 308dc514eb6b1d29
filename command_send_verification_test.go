package authgate_test

import (
	"context"
	"errors"
	"testing"

	authgate "github.com/goliatone/go-auth-gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSendVerificationMessageValidate(t *testing.T) {
	assert.Error(t, authgate.SendVerificationMessage{}.Validate())
	assert.Error(t, authgate.SendVerificationMessage{Email: "  "}.Validate())
	assert.NoError(t, authgate.SendVerificationMessage{Email: "a@x.com"}.Validate())
	assert.Equal(t, "authgate.verification.send", authgate.SendVerificationMessage{}.Type())
}

func TestSendVerificationHandlerExecute(t *testing.T) {
	issuer := &MockVerificationIssuer{}
	issuer.On("Issue", mock.Anything, "a@x.com", "").Return(nil).Once()

	h := authgate.NewSendVerificationHandler(issuer).WithLogger(silentLogger{})
	err := h.Execute(context.Background(), authgate.SendVerificationMessage{Email: "a@x.com"})
	require.NoError(t, err)
	issuer.AssertExpectations(t)
}

func TestSendVerificationHandlerErrors(t *testing.T) {
	t.Run("missing email never reaches issuer", func(t *testing.T) {
		issuer := &MockVerificationIssuer{}
		h := authgate.NewSendVerificationHandler(issuer).WithLogger(silentLogger{})

		err := h.Execute(context.Background(), authgate.SendVerificationMessage{Email: " "})
		assert.ErrorIs(t, err, authgate.ErrEmailRequired)
		issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("issuer failure is generic", func(t *testing.T) {
		issuer := &MockVerificationIssuer{}
		issuer.On("Issue", mock.Anything, "a@x.com", "").Return(errors.New("provider exploded")).Once()
		h := authgate.NewSendVerificationHandler(issuer).WithLogger(silentLogger{})

		err := h.Execute(context.Background(), authgate.SendVerificationMessage{Email: "a@x.com"})
		assert.ErrorIs(t, err, authgate.ErrDeliveryFailed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		issuer := &MockVerificationIssuer{}
		h := authgate.NewSendVerificationHandler(issuer)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := h.Execute(ctx, authgate.SendVerificationMessage{Email: "a@x.com"})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
	})
}
