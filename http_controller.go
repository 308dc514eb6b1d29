package authgate

import (
	"context"
	"errors"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-router"
)

// VerificationConfirmer consumes verification tokens. The local provider
// implements it.
type VerificationConfirmer interface {
	ConfirmVerification(ctx context.Context, token string) (string, Account, error)
}

// PasswordResetter completes password resets. The local provider implements it.
type PasswordResetter interface {
	ResetPassword(ctx context.Context, token, password string) error
}

// LinkControllerRoutes holds the paths the controller is mounted on.
type LinkControllerRoutes struct {
	Verify        string
	PasswordReset string
	Health        string
}

// LinkController serves the endpoints that emailed links land on.
type LinkController struct {
	Logger    Logger
	Routes    *LinkControllerRoutes
	Confirmer VerificationConfirmer
	Resetter  PasswordResetter
	Activity  ActivitySink
	// FallbackURL is used when a ticket carries no continuation URL.
	FallbackURL string
}

// LinkControllerOption configures a LinkController.
type LinkControllerOption func(*LinkController) *LinkController

// WithLinkControllerLogger sets the logger
func WithLinkControllerLogger(logger Logger) LinkControllerOption {
	return func(c *LinkController) *LinkController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithPasswordResetter enables the reset confirmation route.
func WithPasswordResetter(resetter PasswordResetter) LinkControllerOption {
	return func(c *LinkController) *LinkController {
		c.Resetter = resetter
		return c
	}
}

// WithLinkControllerActivitySink records confirmations.
func WithLinkControllerActivitySink(sink ActivitySink) LinkControllerOption {
	return func(c *LinkController) *LinkController {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

// WithFallbackURL sets the redirect used when a ticket has no continuation.
func WithFallbackURL(url string) LinkControllerOption {
	return func(c *LinkController) *LinkController {
		if strings.TrimSpace(url) != "" {
			c.FallbackURL = url
		}
		return c
	}
}

// NewLinkController creates a controller. confirmer is required.
func NewLinkController(confirmer VerificationConfirmer, opts ...LinkControllerOption) *LinkController {
	c := &LinkController{
		Logger:      defLogger{},
		Confirmer:   confirmer,
		Activity:    noopActivitySink{},
		FallbackURL: DefaultContinuationURL,
		Routes: &LinkControllerRoutes{
			Verify:        "/verify",
			PasswordReset: "/password-reset/confirm",
			Health:        "/healthz",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Confirmer == nil {
		panic("missing VerificationConfirmer in link controller")
	}

	return c
}

// RegisterLinkRoutes mounts the link endpoints on app.
func RegisterLinkRoutes[T any](app router.Router[T], controller *LinkController) {
	app.Get(controller.Routes.Verify, controller.Verify).
		SetName("verification.get")

	if controller.Resetter != nil {
		app.Post(controller.Routes.PasswordReset, controller.PasswordResetConfirm).
			SetName("pwd-reset-confirm.post")
	}

	app.Get(controller.Routes.Health, controller.Health).
		SetName("health.get")
}

// Verify consumes the token and redirects to the ticket's continuation URL.
func (a *LinkController) Verify(ctx router.Context) error {
	token := strings.TrimSpace(ctx.Query("token"))
	if token == "" {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": ErrInvalidVerificationLink.Message,
		})
	}

	continuation, account, err := a.Confirmer.ConfirmVerification(ctx.Context(), token)
	if err != nil {
		if errors.Is(err, ErrInvalidVerificationLink) {
			return ctx.JSON(router.StatusBadRequest, map[string]string{
				"error": ErrInvalidVerificationLink.Message,
			})
		}
		a.Logger.Error("verification confirm failed", "error", err)
		return ctx.JSON(router.StatusInternalServerError, map[string]string{
			"error": "Failed to verify email",
		})
	}

	recordActivity(ctx.Context(), a.Activity, a.Logger, ActivityEvent{
		EventType: ActivityEventVerificationConfirmed,
		AccountID: account.ID,
		Email:     account.Email,
		Source:    "link",
	})

	if continuation == "" {
		continuation = a.FallbackURL
	}
	return ctx.Redirect(continuation, http.StatusSeeOther)
}

// PasswordResetConfirmPayload is the body of the reset confirmation.
type PasswordResetConfirmPayload struct {
	Token    string `form:"token" json:"token"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r PasswordResetConfirmPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(DefaultMinPasswordLength, 100)),
	)
}

// PasswordResetConfirm sets a new password using a reset token.
func (a *LinkController) PasswordResetConfirm(ctx router.Context) error {
	payload := new(PasswordResetConfirmPayload)
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{"error": "Failed to parse body"})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := a.Resetter.ResetPassword(ctx.Context(), payload.Token, payload.Password); err != nil {
		if code := ProviderCodeOf(err); code != CodeUnknown {
			return ctx.JSON(router.StatusBadRequest, map[string]string{
				"error": MessageFor(OpPasswordResetConfirm, code),
			})
		}
		a.Logger.Info("password reset rejected", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "Invalid or expired password reset link",
		})
	}

	return ctx.JSON(router.StatusOK, map[string]bool{"ok": true})
}

// Health reports liveness.
func (a *LinkController) Health(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]string{"status": "ok"})
}
