package authgate

import (
	"context"
	"strings"
	"time"
)

const (
	DefaultProductName     = "Keeps"
	DefaultFromAddress     = "Keeps <onboarding@mail.resend.dev>"
	DefaultContinuationURL = "http://localhost:5173/login"
)

// IssuerConfig configures the LinkIssuer.
type IssuerConfig struct {
	// From is the sender address used on verification emails.
	From string
	// ContinuationURL is where the user lands after following the link.
	ContinuationURL string
	// ProductName is embedded in the subject and body.
	ProductName string
}

func (c IssuerConfig) withDefaults() IssuerConfig {
	if strings.TrimSpace(c.From) == "" {
		c.From = DefaultFromAddress
	}
	if strings.TrimSpace(c.ContinuationURL) == "" {
		c.ContinuationURL = DefaultContinuationURL
	}
	if strings.TrimSpace(c.ProductName) == "" {
		c.ProductName = DefaultProductName
	}
	return c
}

// LinkIssuer mints a verification link through the identity provider and
// hands the rendered email to the sender.
type LinkIssuer struct {
	minter   LinkMinter
	sender   EmailSender
	config   IssuerConfig
	logger   Logger
	activity ActivitySink
}

var (
	_ VerificationDispatcher = (*LinkIssuer)(nil)
	_ VerificationIssuer     = (*LinkIssuer)(nil)
	_ LinkRequester          = (*LinkIssuer)(nil)
)

// NewLinkIssuer creates a LinkIssuer.
func NewLinkIssuer(minter LinkMinter, sender EmailSender, cfg IssuerConfig) *LinkIssuer {
	return &LinkIssuer{
		minter:   minter,
		sender:   sender,
		config:   cfg.withDefaults(),
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

// WithLogger sets the logger
func (i *LinkIssuer) WithLogger(logger Logger) *LinkIssuer {
	if logger != nil {
		i.logger = logger
	}
	return i
}

// WithActivitySink sets the activity sink
func (i *LinkIssuer) WithActivitySink(sink ActivitySink) *LinkIssuer {
	i.activity = normalizeActivitySink(sink)
	return i
}

// Config returns the effective configuration.
func (i *LinkIssuer) Config() IssuerConfig {
	return i.config
}

// OnAccountCreated is the account creation hook. Account creation must not
// fail because of email delivery, so errors are logged and dropped.
func (i *LinkIssuer) OnAccountCreated(ctx context.Context, account Account) {
	if strings.TrimSpace(account.Email) == "" {
		i.logger.Warn("account created without email, skipping verification link", "account_id", account.ID)
		return
	}

	if err := i.issue(ctx, account.Email, account.DisplayName, i.config.ContinuationURL, "hook"); err != nil {
		i.logger.Warn("verification email on account creation failed", "email", account.Email, "error", err)
	}
}

// Issue is the on demand entry point. It returns ErrEmailRequired or
// ErrDeliveryFailed.
func (i *LinkIssuer) Issue(ctx context.Context, email, displayName string) error {
	return i.issue(ctx, email, displayName, i.config.ContinuationURL, "on_demand")
}

// RequestVerification implements LinkRequester for in process callers.
func (i *LinkIssuer) RequestVerification(ctx context.Context, email string) error {
	return i.Issue(ctx, email, "")
}

// Dispatch issues a link for account bound to continuationURL. Identity
// providers that do not deliver email themselves call it from SendVerification.
func (i *LinkIssuer) Dispatch(ctx context.Context, account Account, continuationURL string) error {
	if strings.TrimSpace(continuationURL) == "" {
		continuationURL = i.config.ContinuationURL
	}
	return i.issue(ctx, account.Email, account.DisplayName, continuationURL, "provider")
}

func (i *LinkIssuer) issue(ctx context.Context, email, displayName, continuationURL, source string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}

	link, err := i.minter.MintVerificationLink(ctx, email, continuationURL)
	if err != nil {
		i.logger.Error("failed to mint verification link", "email", email, "error", err)
		i.recordFailure(ctx, email, source, "mint")
		return ErrDeliveryFailed
	}

	html, err := RenderVerificationEmail(i.config.ProductName, link.URL, displayName)
	if err != nil {
		i.logger.Error("failed to render verification email", "error", err)
		i.recordFailure(ctx, email, source, "render")
		return ErrDeliveryFailed
	}

	err = i.sender.Send(ctx, Email{
		To:      email,
		From:    i.config.From,
		Subject: VerificationSubject(i.config.ProductName),
		HTML:    html,
	})
	if err != nil {
		if IsConfigurationError(err) {
			i.logger.Error("email sender misconfigured, verification email not sent", "error", err)
		} else {
			i.logger.Error("failed to send verification email", "email", email, "error", err)
		}
		i.recordFailure(ctx, email, source, "send")
		return ErrDeliveryFailed
	}

	i.logger.Info("verification email sent", "email", email, "source", source)
	recordActivity(ctx, i.activity, i.logger, ActivityEvent{
		EventType: ActivityEventVerificationSent,
		Email:     email,
		Source:    source,
		Metadata: map[string]any{
			"expires_at":       formatExpiry(link.ExpiresAt),
			"continuation_url": continuationURL,
		},
	})

	return nil
}

func (i *LinkIssuer) recordFailure(ctx context.Context, email, source, stage string) {
	recordActivity(ctx, i.activity, i.logger, ActivityEvent{
		EventType: ActivityEventVerificationFailed,
		Email:     email,
		Source:    source,
		Metadata:  map[string]any{"stage": stage},
	})
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
