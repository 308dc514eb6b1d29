// Package app wires the configured provider, sender and issuer for the
// binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	authgate "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-auth-gate/activitymap"
	"github.com/goliatone/go-auth-gate/config"
	"github.com/goliatone/go-auth-gate/logging"
	"github.com/goliatone/go-auth-gate/mailer"
	"github.com/goliatone/go-auth-gate/provider/auth0"
	"github.com/goliatone/go-auth-gate/provider/local"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// App holds the wired components.
type App struct {
	config   config.Config
	logs     logging.Provider
	db       *bun.DB
	local    *local.Provider
	auth0    *auth0.IdentityProvider
	minter   authgate.LinkMinter
	sender   authgate.EmailSender
	issuer   *authgate.LinkIssuer
	activity authgate.ActivitySink
}

// GetLogger returns a named logger.
func (a *App) GetLogger(name string) authgate.Logger {
	return a.logs.GetLogger(name)
}

func activityLogger(logger authgate.Logger) authgate.ActivitySink {
	return authgate.ActivitySinkFunc(func(ctx context.Context, event authgate.ActivityEvent) error {
		logger.Info("activity", activitymap.Normalize(event).Fields()...)
		return nil
	})
}

// WithSender picks the email transport.
func WithSender(app *App) {
	logger := app.GetLogger("mailer")

	switch app.config.Email.Transport {
	case config.TransportConsole:
		app.sender = mailer.NewConsoleSender(os.Stdout)
	default:
		resend := mailer.NewResendSender(app.config.Email.ResendAPIKey, logger)
		if !resend.Configured() {
			logger.Warn("RESEND_API_KEY is not set, verification emails will fail")
		}
		app.sender = resend
	}
}

// WithProvider builds the configured identity provider.
func WithProvider(ctx context.Context, app *App) error {
	switch app.config.Provider {
	case config.ProviderAuth0:
		p, err := auth0.NewIdentityProvider(ctx, auth0.Config{
			Domain:          app.config.Auth0.Domain,
			ClientID:        app.config.Auth0.ClientID,
			ClientSecret:    app.config.Auth0.ClientSecret,
			Connection:      app.config.Auth0.Connection,
			VerificationTTL: app.config.VerificationLinkTTL,
		}, app.GetLogger("auth0"))
		if err != nil {
			return err
		}
		app.auth0 = p
		app.minter = p
		return nil
	default:
		return withLocalProvider(ctx, app)
	}
}

func withLocalProvider(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.config.Local.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	app.db = bun.NewDB(sqldb, sqlitedialect.New())

	resetMailer := mailer.NewPasswordResetMailer(app.sender, app.config.Email.From, app.config.ProductName)

	p, err := local.NewProvider(app.db, local.Config{
		SigningKey:      app.config.Local.SigningKey,
		LinkBaseURL:     app.config.PublicBaseURL,
		VerificationTTL: app.config.VerificationLinkTTL,
	},
		local.WithLogger(app.GetLogger("local")),
		local.WithResetNotifier(resetMailer),
	)
	if err != nil {
		return err
	}

	if err := p.Store().Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	app.local = p
	app.minter = p
	return nil
}

// WithIssuer builds the LinkIssuer and attaches it to the provider.
func WithIssuer(app *App) {
	app.issuer = authgate.NewLinkIssuer(app.minter, app.sender, authgate.IssuerConfig{
		From:            app.config.Email.From,
		ContinuationURL: app.config.ContinueURL,
		ProductName:     app.config.ProductName,
	}).
		WithLogger(app.GetLogger("issuer")).
		WithActivitySink(app.activity)

	switch {
	case app.local != nil:
		app.local.SetDispatcher(app.issuer)
		app.local.OnAccountCreated(app.issuer.OnAccountCreated)
	case app.auth0 != nil:
		app.auth0.SetDispatcher(app.issuer)
	}
}

// New builds every component for cfg. Close releases them.
func New(ctx context.Context, cfg config.Config, logs logging.Provider) (*App, error) {
	app := &App{config: cfg, logs: logs}
	app.activity = activityLogger(app.GetLogger("activity"))

	WithSender(app)

	if err := WithProvider(ctx, app); err != nil {
		app.Close()
		return nil, err
	}

	WithIssuer(app)
	return app, nil
}

// Close releases the database, if any.
func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.config
}

// Provider returns the identity provider.
func (a *App) Provider() authgate.IdentityProvider {
	if a.local != nil {
		return a.local
	}
	return a.auth0
}

// Local returns the local provider, or nil when Auth0 is configured.
func (a *App) Local() *local.Provider {
	return a.local
}

// Issuer returns the LinkIssuer.
func (a *App) Issuer() *authgate.LinkIssuer {
	return a.issuer
}

// Activity returns the activity sink.
func (a *App) Activity() authgate.ActivitySink {
	return a.activity
}
