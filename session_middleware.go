package authgate

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-router"
)

// SessionResolver turns a raw session token into a Session. The local
// provider implements it.
type SessionResolver interface {
	CurrentSession(ctx context.Context, token string) (Session, error)
}

// GateConfig configures ProtectedRoute.
type GateConfig struct {
	// ContextKey is the locals key the session is stored under.
	// Default: DefaultSessionContextKey.
	ContextKey string
	// AuthScheme prefixes the token in the Authorization header.
	// Default: "Bearer".
	AuthScheme string
	// DevBypass and Environment feed CanProceed exactly as they do for the
	// Controller.
	DevBypass   bool
	Environment string
	// ErrorHandler renders rejections. Default writes a JSON error with 401
	// or 403.
	ErrorHandler func(router.Context, error) error
	Logger       Logger
}

func (c GateConfig) withDefaults() GateConfig {
	if c.ContextKey == "" {
		c.ContextKey = DefaultSessionContextKey
	}
	if strings.TrimSpace(c.AuthScheme) == "" {
		c.AuthScheme = "Bearer"
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = defaultGateErrorHandler
	}
	if c.Logger == nil {
		c.Logger = defLogger{}
	}
	return c
}

// ProtectedRoute only lets requests through when they carry a live session
// whose account passes CanProceed. The session is stored in locals and in
// the request context.
func ProtectedRoute(resolver SessionResolver, cfg GateConfig) router.MiddlewareFunc {
	cfg = cfg.withDefaults()
	bypass := EffectiveDevBypass(cfg.DevBypass)
	isDev := cfg.Environment == EnvironmentDevelopment

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			token, ok := tokenFromHeader(ctx.GetString("Authorization", ""), cfg.AuthScheme)
			if !ok {
				return cfg.ErrorHandler(ctx, ErrSessionRequired)
			}

			session, err := resolver.CurrentSession(ctx.Context(), token)
			if err != nil {
				cfg.Logger.Debug("session rejected", "error", err)
				return cfg.ErrorHandler(ctx, ErrSessionRequired)
			}

			if !CanProceed(true, session.Account.Verified, bypass, isDev) {
				return cfg.ErrorHandler(ctx, ErrEmailNotVerified)
			}

			ctx.Locals(cfg.ContextKey, session)
			ctx.SetContext(WithSession(ctx.Context(), session))

			return next(ctx)
		}
	}
}

func tokenFromHeader(header, scheme string) (string, bool) {
	header = strings.TrimSpace(header)
	l := len(scheme)
	if len(header) > l+1 && strings.EqualFold(header[:l], scheme) && header[l] == ' ' {
		token := strings.TrimSpace(header[l:])
		return token, token != ""
	}
	return "", false
}

func defaultGateErrorHandler(ctx router.Context, err error) error {
	if errors.Is(err, ErrEmailNotVerified) {
		return ctx.JSON(http.StatusForbidden, map[string]string{
			"error": MsgLoginUnverified,
		})
	}
	return ctx.JSON(router.StatusUnauthorized, map[string]string{
		"error": ErrSessionRequired.Message,
	})
}

// CurrentAccount responds with the gated session's account.
func CurrentAccount(key string) router.HandlerFunc {
	return func(ctx router.Context) error {
		session, ok := GetRouterSession(ctx, key)
		if !ok {
			return defaultGateErrorHandler(ctx, ErrSessionRequired)
		}
		return ctx.JSON(router.StatusOK, map[string]any{
			"id":           session.Account.ID,
			"email":        session.Account.Email,
			"verified":     session.Account.Verified,
			"display_name": session.Account.DisplayName,
		})
	}
}
