package auth0

import (
	"errors"
	"net/http"
	"strings"

	"github.com/auth0/go-auth0/authentication"
	"github.com/auth0/go-auth0/management"
	authgate "github.com/goliatone/go-auth-gate"
)

// authErrorCodes maps Auth0 error codes onto ProviderCode.
//
// Password login answers invalid_grant both for an unknown email and for a
// wrong password, so a login for a missing account reports wrong-password
// and shows the "Incorrect password" copy instead of the "No account found"
// one.
var authErrorCodes = map[string]authgate.ProviderCode{
	"invalid_signup":              authgate.CodeEmailAlreadyInUse,
	"user_exists":                 authgate.CodeEmailAlreadyInUse,
	"username_exists":             authgate.CodeEmailAlreadyInUse,
	"invalid_password":            authgate.CodeWeakPassword,
	"password_strength_error":     authgate.CodeWeakPassword,
	"password_dictionary_error":   authgate.CodeWeakPassword,
	"password_no_user_info_error": authgate.CodeWeakPassword,
	"password_leaked":             authgate.CodeInvalidCredential,
	"invalid_email":               authgate.CodeInvalidEmail,
	"bad.email":                   authgate.CodeInvalidEmail,
	"invalid_grant":               authgate.CodeWrongPassword,
	"invalid_user_password":       authgate.CodeWrongPassword,
	"too_many_attempts":           authgate.CodeTooManyRequests,
	"unauthorized_client":         authgate.CodeOperationNotAllowed,
	"access_denied":               authgate.CodeOperationNotAllowed,
	"unsupported_grant_type":      authgate.CodeOperationNotAllowed,
	"connection_disabled":         authgate.CodeOperationNotAllowed,
	"user_not_found":              authgate.CodeUserNotFound,
}

// MapErrorCode maps an Auth0 error code, HTTP status and description onto
// the closed ProviderCode set.
func MapErrorCode(status int, code, description string) authgate.ProviderCode {
	code = strings.ToLower(strings.TrimSpace(code))

	if status == http.StatusTooManyRequests {
		return authgate.CodeTooManyRequests
	}
	if code == "invalid_grant" && strings.Contains(strings.ToLower(description), "blocked") {
		return authgate.CodeTooManyRequests
	}
	if mapped, ok := authErrorCodes[code]; ok {
		return mapped
	}
	if status == http.StatusNotFound {
		return authgate.CodeUserNotFound
	}
	return authgate.CodeUnknown
}

// ProviderError converts an Auth0 SDK error into an authgate.ProviderError.
func ProviderError(err error) error {
	if err == nil {
		return nil
	}

	var authErr *authentication.Error
	if errors.As(err, &authErr) {
		return authgate.NewProviderError(MapErrorCode(authErr.StatusCode, authErr.Err, authErr.Message), err)
	}

	var mgmtErr management.Error
	if errors.As(err, &mgmtErr) {
		return authgate.NewProviderError(MapErrorCode(mgmtErr.Status(), "", mgmtErr.Error()), err)
	}

	return authgate.NewProviderError(authgate.CodeUnknown, err)
}
