package auth0_test

import (
	"errors"
	"net/http"
	"testing"

	authgate "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-auth-gate/provider/auth0"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorCode(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		code        string
		description string
		expected    authgate.ProviderCode
	}{
		{"existing user", http.StatusBadRequest, "invalid_signup", "Invalid sign up", authgate.CodeEmailAlreadyInUse},
		{"weak password", http.StatusBadRequest, "invalid_password", "PasswordStrengthError", authgate.CodeWeakPassword},
		{"wrong password", http.StatusForbidden, "invalid_grant", "Wrong email or password.", authgate.CodeWrongPassword},
		{"unknown email on login", http.StatusForbidden, "invalid_grant", "Wrong email or password.", authgate.CodeWrongPassword},
		{"blocked user", http.StatusForbidden, "invalid_grant", "user is blocked", authgate.CodeTooManyRequests},
		{"too many attempts", http.StatusTooManyRequests, "too_many_attempts", "", authgate.CodeTooManyRequests},
		{"rate limited without code", http.StatusTooManyRequests, "", "", authgate.CodeTooManyRequests},
		{"grant disabled", http.StatusForbidden, "unauthorized_client", "", authgate.CodeOperationNotAllowed},
		{"not found status", http.StatusNotFound, "", "The user does not exist.", authgate.CodeUserNotFound},
		{"code casing", http.StatusBadRequest, " Invalid_Email ", "", authgate.CodeInvalidEmail},
		{"unmapped", http.StatusInternalServerError, "server_error", "", authgate.CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth0.MapErrorCode(tt.status, tt.code, tt.description))
		})
	}
}

func TestProviderErrorWrapsUnknownErrors(t *testing.T) {
	assert.NoError(t, auth0.ProviderError(nil))

	inner := errors.New("dial tcp: timeout")
	err := auth0.ProviderError(inner)
	assert.Equal(t, authgate.CodeUnknown, authgate.ProviderCodeOf(err))
	assert.ErrorIs(t, err, inner)
}
