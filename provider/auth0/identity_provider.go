package auth0

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/auth0/go-auth0"
	"github.com/auth0/go-auth0/authentication"
	"github.com/auth0/go-auth0/authentication/database"
	"github.com/auth0/go-auth0/authentication/oauth"
	"github.com/auth0/go-auth0/management"
	authgate "github.com/goliatone/go-auth-gate"
	goerrors "github.com/goliatone/go-errors"
)

// IdentityProvider implements authgate.IdentityProvider backed by Auth0.
type IdentityProvider struct {
	config Config
	auth   *authentication.Authentication
	mgmt   *management.Management
	logger authgate.Logger
	now    func() time.Time

	mu         sync.RWMutex
	dispatcher authgate.VerificationDispatcher
}

var (
	_ authgate.IdentityProvider = (*IdentityProvider)(nil)
	_ authgate.LinkMinter       = (*IdentityProvider)(nil)
)

// NewIdentityProvider creates an Auth0-backed identity provider.
func NewIdentityProvider(ctx context.Context, cfg Config, logger authgate.Logger) (*IdentityProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "auth0: invalid config").
			WithTextCode(authgate.ErrInvalidProviderConfig.TextCode)
	}
	cfg = cfg.withDefaults()

	authAPI, err := authentication.New(
		ctx,
		cfg.Domain,
		authentication.WithClientID(cfg.ClientID),
		authentication.WithClientSecret(cfg.ClientSecret),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0: failed to create authentication client: %w", err)
	}

	mgmt, err := management.New(
		cfg.Domain,
		management.WithClientCredentials(ctx, cfg.ClientID, cfg.ClientSecret),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0: failed to create management client: %w", err)
	}

	if logger == nil {
		logger = authgate.DefaultLogger()
	}

	return &IdentityProvider{
		config: cfg,
		auth:   authAPI,
		mgmt:   mgmt,
		logger: logger,
		now:    time.Now,
	}, nil
}

// SetDispatcher makes SendVerification deliver tickets through d. Without a
// dispatcher Auth0 sends its own verification email.
func (p *IdentityProvider) SetDispatcher(d authgate.VerificationDispatcher) {
	p.mu.Lock()
	p.dispatcher = d
	p.mu.Unlock()
}

// CreateAccount signs the user up on the database connection and logs them in.
func (p *IdentityProvider) CreateAccount(ctx context.Context, email, password string) (authgate.Session, error) {
	email = authgate.NormalizeEmail(email)

	_, err := p.auth.Database.Signup(ctx, database.SignupRequest{
		Connection: p.config.Connection,
		Email:      email,
		Password:   password,
	})
	if err != nil {
		return authgate.Session{}, ProviderError(err)
	}

	return p.SignIn(ctx, email, password)
}

// SignIn uses the password realm grant and reads the verified flag from
// /userinfo.
func (p *IdentityProvider) SignIn(ctx context.Context, email, password string) (authgate.Session, error) {
	email = authgate.NormalizeEmail(email)

	tokens, err := p.auth.OAuth.LoginWithPassword(ctx, oauth.LoginWithPasswordRequest{
		Username: email,
		Password: password,
		Realm:    p.config.Connection,
		Scope:    p.config.Scope,
		Audience: p.config.Audience,
	}, oauth.IDTokenValidationOptions{})
	if err != nil {
		return authgate.Session{}, ProviderError(err)
	}

	info, err := p.auth.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return authgate.Session{}, ProviderError(err)
	}

	return authgate.Session{
		Account: authgate.Account{
			ID:          info.Sub,
			Email:       info.Email,
			Verified:    info.EmailVerified,
			DisplayName: info.Name,
		},
		Token:    tokens.AccessToken,
		IssuedAt: p.now(),
	}, nil
}

// SignOut drops the session. Access tokens are not refreshable here, so there
// is nothing to revoke upstream.
func (p *IdentityProvider) SignOut(ctx context.Context, session authgate.Session) error {
	p.logger.Debug("auth0 session dropped", "account_id", session.Account.ID)
	return nil
}

// SendVerification issues a verification link for the session's account.
func (p *IdentityProvider) SendVerification(ctx context.Context, session authgate.Session, continuationURL string) error {
	p.mu.RLock()
	dispatcher := p.dispatcher
	p.mu.RUnlock()

	if dispatcher != nil {
		return dispatcher.Dispatch(ctx, session.Account, continuationURL)
	}

	userID := session.Account.ID
	if userID == "" {
		return authgate.NewProviderError(authgate.CodeUserNotFound, nil)
	}

	if err := p.mgmt.Job.VerifyEmail(ctx, &management.Job{UserID: auth0.String(userID)}); err != nil {
		return ProviderError(err)
	}
	return nil
}

// MintVerificationLink creates an Auth0 email verification ticket.
func (p *IdentityProvider) MintVerificationLink(ctx context.Context, email, continuationURL string) (authgate.VerificationLink, error) {
	email = authgate.NormalizeEmail(email)

	users, err := p.mgmt.User.ListByEmail(ctx, email)
	if err != nil {
		return authgate.VerificationLink{}, ProviderError(err)
	}

	userID := ""
	for _, u := range users {
		if strings.HasPrefix(u.GetID(), "auth0|") {
			userID = u.GetID()
			break
		}
	}
	if userID == "" {
		return authgate.VerificationLink{}, authgate.NewProviderError(authgate.CodeUserNotFound, nil)
	}

	ttl := int(p.config.VerificationTTL / time.Second)
	ticket := &management.Ticket{
		UserID: auth0.String(userID),
		TTLSec: auth0.Int(ttl),
	}
	if continuationURL != "" {
		ticket.ResultURL = auth0.String(continuationURL)
	}

	if err := p.mgmt.Ticket.VerifyEmail(ctx, ticket); err != nil {
		return authgate.VerificationLink{}, ProviderError(err)
	}

	return authgate.VerificationLink{
		URL:             ticket.GetTicket(),
		TargetEmail:     email,
		ContinuationURL: continuationURL,
		SingleUse:       true,
		ExpiresAt:       p.now().Add(p.config.VerificationTTL),
	}, nil
}

// SendPasswordReset triggers the Auth0 change password email. Auth0 answers
// the same way for unknown emails.
func (p *IdentityProvider) SendPasswordReset(ctx context.Context, email string) error {
	_, err := p.auth.Database.ChangePassword(ctx, database.ChangePasswordRequest{
		Email:      authgate.NormalizeEmail(email),
		Connection: p.config.Connection,
	})
	if err != nil {
		return ProviderError(err)
	}
	return nil
}
