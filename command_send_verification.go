package authgate

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// VerificationIssuer is the on demand side of the LinkIssuer.
type VerificationIssuer interface {
	Issue(ctx context.Context, email, displayName string) error
}

// SendVerificationMessage is the payload of the on demand issuance call.
type SendVerificationMessage struct {
	Email string `json:"email" example:"user@example.com" doc:"Account email address"`
}

// Type returns the message type
func (m SendVerificationMessage) Type() string {
	return "authgate.verification.send"
}

// Validate checks the email is present once trimmed.
func (m SendVerificationMessage) Validate() error {
	m.Email = strings.TrimSpace(m.Email)
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required),
	)
}

// SendVerificationHandler serves the on demand issuance call for every
// transport.
type SendVerificationHandler struct {
	issuer  VerificationIssuer
	timeout time.Duration
	logger  Logger
}

// NewSendVerificationHandler creates a handler bound to issuer.
func NewSendVerificationHandler(issuer VerificationIssuer) *SendVerificationHandler {
	return &SendVerificationHandler{
		issuer:  issuer,
		timeout: time.Second * 10,
		logger:  defLogger{},
	}
}

// WithLogger sets the logger
func (h *SendVerificationHandler) WithLogger(logger Logger) *SendVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithTimeout bounds each call.
func (h *SendVerificationHandler) WithTimeout(d time.Duration) *SendVerificationHandler {
	if d > 0 {
		h.timeout = d
	}
	return h
}

// Execute returns ErrEmailRequired for blank input and ErrDeliveryFailed for
// anything else that goes wrong.
func (h *SendVerificationHandler) Execute(ctx context.Context, msg SendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during send verification")
	default:
		return h.execute(ctx, msg)
	}
}

func (h *SendVerificationHandler) execute(ctx context.Context, msg SendVerificationMessage) error {
	if err := msg.Validate(); err != nil {
		return ErrEmailRequired
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.issuer.Issue(ctx, NormalizeEmail(msg.Email), ""); err != nil {
		if errors.Is(err, ErrEmailRequired) {
			return ErrEmailRequired
		}
		h.logger.Debug("send verification failed", "error", err)
		return ErrDeliveryFailed
	}

	return nil
}
