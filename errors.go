package authgate

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeEmailRequired         = "EMAIL_REQUIRED"
	TextCodeDeliveryFailed        = "VERIFICATION_DELIVERY_FAILED"
	TextCodeSenderNotConfigured   = "EMAIL_SENDER_NOT_CONFIGURED"
	TextCodeOperationInFlight     = "OPERATION_IN_FLIGHT"
	TextCodeInvalidVerifyLink     = "INVALID_VERIFICATION_LINK"
	TextCodeSessionRequired       = "SESSION_REQUIRED"
	TextCodeEmailNotVerified      = "EMAIL_NOT_VERIFIED"
	textCodeInvalidProviderConfig = "INVALID_PROVIDER_CONFIG"
)

// ErrEmailRequired is returned by the link issuer when the target email is
// missing or blank.
var ErrEmailRequired = goerrors.New("Email is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeEmailRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrDeliveryFailed is the only error the link issuer reports for mint or
// send failures. Provider details stay in the logs.
var ErrDeliveryFailed = goerrors.New("Failed to send verification email", goerrors.CategoryInternal).
	WithTextCode(TextCodeDeliveryFailed).
	WithCode(goerrors.CodeInternal)

// ErrSenderNotConfigured signals a missing email sender secret.
var ErrSenderNotConfigured = goerrors.New("email sender is not configured", goerrors.CategoryInternal).
	WithTextCode(TextCodeSenderNotConfigured).
	WithCode(goerrors.CodeInternal)

// ErrBusy is returned when an operation is requested while another one is in flight.
var ErrBusy = goerrors.New("another operation is in flight", goerrors.CategoryOperation).
	WithTextCode(TextCodeOperationInFlight).
	WithCode(goerrors.CodeConflict)

// ErrInvalidVerificationLink covers unknown, expired and consumed links.
var ErrInvalidVerificationLink = goerrors.New("Invalid or expired verification link", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidVerifyLink).
	WithCode(goerrors.CodeBadRequest)

// ErrSessionRequired is returned by ProtectedRoute for missing or invalid
// session tokens.
var ErrSessionRequired = goerrors.New("Authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionRequired).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailNotVerified is returned by ProtectedRoute when the session's
// account has not verified its email.
var ErrEmailNotVerified = goerrors.New("Email not verified", goerrors.CategoryAuthz).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidProviderConfig is returned when a provider is built without its
// required settings.
var ErrInvalidProviderConfig = goerrors.New("invalid identity provider configuration", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidProviderConfig).
	WithCode(goerrors.CodeBadRequest)

// IsConfigurationError reports whether err is a server side configuration
// problem that must never reach a client verbatim.
func IsConfigurationError(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeSenderNotConfigured ||
			richErr.TextCode == textCodeInvalidProviderConfig
	}
	return false
}

// ErrorKind is the closed set of failure classes surfaced by the Controller.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindCredential
	KindRateLimit
	KindDelivery
	KindConfiguration
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindCredential:
		return "credential"
	case KindRateLimit:
		return "rate_limit"
	case KindDelivery:
		return "delivery"
	case KindConfiguration:
		return "configuration"
	case KindTimeout:
		return "timeout"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ProviderCode is the closed set of failure codes identity providers report.
type ProviderCode string

const (
	CodeEmailAlreadyInUse   ProviderCode = "email-already-in-use"
	CodeInvalidEmail        ProviderCode = "invalid-email"
	CodeWeakPassword        ProviderCode = "weak-password"
	CodeOperationNotAllowed ProviderCode = "operation-not-allowed"
	CodeUserNotFound        ProviderCode = "user-not-found"
	CodeWrongPassword       ProviderCode = "wrong-password"
	CodeTooManyRequests     ProviderCode = "too-many-requests"
	CodeInvalidCredential   ProviderCode = "invalid-credential"
	CodeUnknown             ProviderCode = "unknown"
)

// ProviderCodes lists every ProviderCode.
func ProviderCodes() []ProviderCode {
	return []ProviderCode{
		CodeEmailAlreadyInUse,
		CodeInvalidEmail,
		CodeWeakPassword,
		CodeOperationNotAllowed,
		CodeUserNotFound,
		CodeWrongPassword,
		CodeTooManyRequests,
		CodeInvalidCredential,
		CodeUnknown,
	}
}

var providerCodeKinds = map[ProviderCode]ErrorKind{
	CodeEmailAlreadyInUse:   KindCredential,
	CodeInvalidEmail:        KindCredential,
	CodeWeakPassword:        KindCredential,
	CodeOperationNotAllowed: KindCredential,
	CodeUserNotFound:        KindCredential,
	CodeWrongPassword:       KindCredential,
	CodeTooManyRequests:     KindRateLimit,
	CodeInvalidCredential:   KindCredential,
	CodeUnknown:             KindCredential,
}

// Kind maps the code to its ErrorKind. Codes outside the closed set are
// treated as credential failures.
func (c ProviderCode) Kind() ErrorKind {
	if k, ok := providerCodeKinds[c]; ok {
		return k
	}
	return KindCredential
}

// ProviderError is returned by identity provider adapters.
type ProviderError struct {
	Code    ProviderCode
	Message string
	Err     error
}

// NewProviderError builds a ProviderError wrapping the provider's own error.
func NewProviderError(code ProviderCode, err error) *ProviderError {
	pe := &ProviderError{Code: code, Err: err}
	if err != nil {
		pe.Message = err.Error()
	}
	return pe
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return "provider: " + string(e.Code)
	}
	return fmt.Sprintf("provider: %s: %s", e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ProviderCodeOf extracts the ProviderCode from err, CodeUnknown otherwise.
func ProviderCodeOf(err error) ProviderCode {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CodeUnknown
}
