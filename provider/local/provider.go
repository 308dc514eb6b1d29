package local

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	authgate "github.com/goliatone/go-auth-gate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrNoDispatcher is returned by SendVerification when no dispatcher is set.
var ErrNoDispatcher = goerrors.New("verification dispatcher is not configured", goerrors.CategoryInternal).
	WithTextCode(authgate.TextCodeSenderNotConfigured).
	WithCode(goerrors.CodeInternal)

// ErrInvalidResetToken covers unknown, expired and used reset tokens.
var ErrInvalidResetToken = goerrors.New("Invalid or expired password reset link", goerrors.CategoryBadInput).
	WithTextCode("INVALID_PASSWORD_RESET").
	WithCode(goerrors.CodeBadRequest)

// ResetNotifier delivers password reset links.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, account authgate.Account, link string) error
}

// AccountCreatedHook runs after an account is persisted.
type AccountCreatedHook func(ctx context.Context, account authgate.Account)

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger.
func WithLogger(logger authgate.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the provider clock.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithPasswordHasher replaces the bcrypt hasher.
func WithPasswordHasher(hasher PasswordHasher) Option {
	return func(p *Provider) {
		if hasher != nil {
			p.hasher = hasher
		}
	}
}

// WithResetNotifier sets the password reset delivery.
func WithResetNotifier(notifier ResetNotifier) Option {
	return func(p *Provider) {
		p.resetNotifier = notifier
	}
}

// Provider implements authgate.IdentityProvider and authgate.LinkMinter.
type Provider struct {
	store         *Store
	config        Config
	hasher        PasswordHasher
	tokens        *sessionTokens
	logger        authgate.Logger
	now           func() time.Time
	resetNotifier ResetNotifier

	mu         sync.RWMutex
	dispatcher authgate.VerificationDispatcher
	hooks      []AccountCreatedHook
}

var (
	_ authgate.IdentityProvider = (*Provider)(nil)
	_ authgate.LinkMinter       = (*Provider)(nil)
)

// NewProvider creates a Provider. Call Store().Migrate before first use on a
// fresh database.
func NewProvider(db *bun.DB, cfg Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "local provider: invalid config").
			WithTextCode(authgate.ErrInvalidProviderConfig.TextCode)
	}
	cfg = cfg.withDefaults()

	store := NewStore(db)
	p := &Provider{
		store:  store,
		config: cfg,
		hasher: NewBcryptHasher(cfg.BcryptCost),
		tokens: newSessionTokens(store, cfg.SigningKey, cfg.Issuer, cfg.SessionTTL),
		logger: authgate.DefaultLogger(),
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// Store exposes the underlying store.
func (p *Provider) Store() *Store {
	return p.store
}

// SetDispatcher sets the verification link delivery.
func (p *Provider) SetDispatcher(d authgate.VerificationDispatcher) {
	p.mu.Lock()
	p.dispatcher = d
	p.mu.Unlock()
}

// OnAccountCreated registers a hook fired after every CreateAccount.
func (p *Provider) OnAccountCreated(hook AccountCreatedHook) {
	if hook == nil {
		return
	}
	p.mu.Lock()
	p.hooks = append(p.hooks, hook)
	p.mu.Unlock()
}

// CreateAccount implements authgate.IdentityProvider.
func (p *Provider) CreateAccount(ctx context.Context, email, password string) (authgate.Session, error) {
	if p.config.DisableSignUp {
		return authgate.Session{}, authgate.NewProviderError(authgate.CodeOperationNotAllowed, errors.New("sign up is disabled"))
	}

	email = authgate.NormalizeEmail(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return authgate.Session{}, authgate.NewProviderError(authgate.CodeInvalidEmail, err)
	}
	if utf8.RuneCountInString(password) < p.config.MinPasswordLength {
		return authgate.Session{}, authgate.NewProviderError(authgate.CodeWeakPassword, errors.New("password too short"))
	}

	hash, err := p.hasher.HashPassword(password)
	if err != nil {
		return authgate.Session{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	var record *AccountRecord
	err = p.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := p.store.accountByEmail(ctx, tx, email)
		if err == nil {
			return authgate.NewProviderError(authgate.CodeEmailAlreadyInUse, nil)
		}
		if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
		}

		now := p.now().UTC()
		record, err = p.store.accounts.CreateTx(ctx, tx, &AccountRecord{
			ID:           uuid.New(),
			Email:        email,
			PasswordHash: hash,
			CreatedAt:    &now,
			UpdatedAt:    &now,
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account")
		}
		return nil
	})
	if err != nil {
		return authgate.Session{}, err
	}

	account := record.Account()
	p.logger.Info("account created", "account_id", account.ID, "email", account.Email)
	p.fireAccountCreated(ctx, account)

	return p.newSession(ctx, account)
}

// SignIn implements authgate.IdentityProvider. Repeated failures inside the
// configured window lock the account out with too-many-requests.
func (p *Provider) SignIn(ctx context.Context, email, password string) (authgate.Session, error) {
	email = authgate.NormalizeEmail(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return authgate.Session{}, authgate.NewProviderError(authgate.CodeInvalidEmail, err)
	}

	record, err := p.store.accountByEmail(ctx, p.store.db, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return authgate.Session{}, authgate.NewProviderError(authgate.CodeUserNotFound, nil)
		}
		return authgate.Session{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	now := p.now().UTC()
	attempts := p.recentAttempts(record, now)
	if attempts >= p.config.MaxLoginAttempts {
		return authgate.Session{}, authgate.NewProviderError(authgate.CodeTooManyRequests, nil)
	}

	if err := p.hasher.ComparePasswordAndHash(password, record.PasswordHash); err != nil {
		if trackErr := p.store.trackLoginAttempt(ctx, p.store.db, record.ID, attempts+1, now); trackErr != nil {
			p.logger.Error("failed to track login attempt", "account_id", record.ID, "error", trackErr)
		}
		if errors.Is(err, errMismatchedPassword) {
			return authgate.Session{}, authgate.NewProviderError(authgate.CodeWrongPassword, nil)
		}
		return authgate.Session{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password")
	}

	if err := p.store.trackSuccessfulLogin(ctx, p.store.db, record.ID, now); err != nil {
		p.logger.Error("failed to track successful login", "account_id", record.ID, "error", err)
	}

	return p.newSession(ctx, record.Account())
}

func (p *Provider) recentAttempts(record *AccountRecord, now time.Time) int {
	if record.LoginAttemptAt == nil {
		return 0
	}
	if now.Sub(*record.LoginAttemptAt) > p.config.LoginAttemptWindow {
		return 0
	}
	return record.LoginAttempts
}

// SignOut implements authgate.IdentityProvider.
func (p *Provider) SignOut(ctx context.Context, session authgate.Session) error {
	return p.tokens.revoke(ctx, session.Token)
}

// CurrentSession resolves a live session token. The account is re-read so the
// verified flag is current.
func (p *Provider) CurrentSession(ctx context.Context, token string) (authgate.Session, error) {
	claims, err := p.tokens.validate(ctx, token, p.now())
	if err != nil {
		return authgate.Session{}, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return authgate.Session{}, ErrInvalidSession
	}

	record, err := p.store.accountByID(ctx, p.store.db, id)
	if err != nil {
		return authgate.Session{}, ErrInvalidSession
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	return authgate.Session{Account: record.Account(), Token: token, IssuedAt: issuedAt}, nil
}

// ActiveSessions returns the number of live session tokens.
func (p *Provider) ActiveSessions(ctx context.Context) (int, error) {
	return p.tokens.count(ctx, p.now())
}

// SendVerification implements authgate.IdentityProvider by handing the
// session's account to the dispatcher.
func (p *Provider) SendVerification(ctx context.Context, session authgate.Session, continuationURL string) error {
	current, err := p.CurrentSession(ctx, session.Token)
	if err != nil {
		return err
	}

	p.mu.RLock()
	dispatcher := p.dispatcher
	p.mu.RUnlock()
	if dispatcher == nil {
		return ErrNoDispatcher
	}

	return dispatcher.Dispatch(ctx, current.Account, continuationURL)
}

// MintVerificationLink implements authgate.LinkMinter. Earlier tickets stay
// valid until they expire or are used.
func (p *Provider) MintVerificationLink(ctx context.Context, email, continuationURL string) (authgate.VerificationLink, error) {
	email = authgate.NormalizeEmail(email)

	record, err := p.store.accountByEmail(ctx, p.store.db, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return authgate.VerificationLink{}, authgate.NewProviderError(authgate.CodeUserNotFound, nil)
		}
		return authgate.VerificationLink{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	now := p.now().UTC()
	ticket, err := p.store.tickets.Create(ctx, &VerificationTicket{
		ID:              uuid.New(),
		AccountID:       record.ID,
		Email:           record.Email,
		ContinuationURL: continuationURL,
		ExpiresAt:       now.Add(p.config.VerificationTTL),
		CreatedAt:       &now,
	})
	if err != nil {
		return authgate.VerificationLink{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create verification ticket")
	}

	return authgate.VerificationLink{
		URL:             p.tokenURL("/verify", ticket.ID),
		TargetEmail:     record.Email,
		ContinuationURL: continuationURL,
		SingleUse:       true,
		ExpiresAt:       ticket.ExpiresAt,
	}, nil
}

// ConfirmVerification consumes a verification ticket and marks its account
// verified. It returns the continuation URL bound to the ticket.
func (p *Provider) ConfirmVerification(ctx context.Context, token string) (string, authgate.Account, error) {
	id, err := uuid.Parse(strings.TrimSpace(token))
	if err != nil {
		return "", authgate.Account{}, authgate.ErrInvalidVerificationLink
	}

	var continuation string
	var account authgate.Account
	err = p.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		ticket, err := p.store.tickets.GetByIDTx(ctx, tx, id.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return authgate.ErrInvalidVerificationLink
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load verification ticket")
		}

		now := p.now().UTC()
		if ticket.ConsumedAt != nil || !now.Before(ticket.ExpiresAt) {
			return authgate.ErrInvalidVerificationLink
		}

		consumed, err := p.store.consumeTicket(ctx, tx, ticket.ID, now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification ticket")
		}
		if !consumed {
			return authgate.ErrInvalidVerificationLink
		}

		if err := p.store.markVerified(ctx, tx, ticket.AccountID, now); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark account verified")
		}

		record, err := p.store.accountByID(ctx, tx, ticket.AccountID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reload account")
		}

		continuation = ticket.ContinuationURL
		account = record.Account()
		return nil
	})
	if err != nil {
		return "", authgate.Account{}, err
	}

	p.logger.Info("email verified", "account_id", account.ID, "email", account.Email)
	return continuation, account, nil
}

// SendPasswordReset implements authgate.IdentityProvider.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	email = authgate.NormalizeEmail(email)

	record, err := p.store.accountByEmail(ctx, p.store.db, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return authgate.NewProviderError(authgate.CodeUserNotFound, nil)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	now := p.now().UTC()
	reset, err := p.store.resets.Create(ctx, &PasswordReset{
		ID:        uuid.New(),
		AccountID: record.ID,
		Email:     record.Email,
		Status:    ResetRequestedStatus,
		ExpiresAt: now.Add(p.config.PasswordResetTTL),
		CreatedAt: &now,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset")
	}

	if p.resetNotifier == nil {
		p.logger.Warn("password reset requested but no notifier is configured", "email", record.Email)
		return nil
	}

	return p.resetNotifier.NotifyPasswordReset(ctx, record.Account(), p.tokenURL("/password-reset", reset.ID))
}

// ResetPassword finalizes a password reset request.
func (p *Provider) ResetPassword(ctx context.Context, token, password string) error {
	id, err := uuid.Parse(strings.TrimSpace(token))
	if err != nil {
		return ErrInvalidResetToken
	}
	if utf8.RuneCountInString(password) < p.config.MinPasswordLength {
		return authgate.NewProviderError(authgate.CodeWeakPassword, errors.New("password too short"))
	}

	hash, err := p.hasher.HashPassword(password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	return p.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		reset, err := p.store.resets.GetByIDTx(ctx, tx, id.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidResetToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load password reset")
		}

		now := p.now().UTC()
		if reset.Status != ResetRequestedStatus || !now.Before(reset.ExpiresAt) {
			return ErrInvalidResetToken
		}

		done, err := p.store.completeReset(ctx, tx, reset.ID, now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to complete password reset")
		}
		if !done {
			return ErrInvalidResetToken
		}

		if err := p.store.updatePassword(ctx, tx, reset.AccountID, hash, now); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
		}
		return nil
	})
}

func (p *Provider) newSession(ctx context.Context, account authgate.Account) (authgate.Session, error) {
	now := p.now()
	token, err := p.tokens.issue(ctx, account.ID, account.Email, now)
	if err != nil {
		return authgate.Session{}, err
	}
	return authgate.Session{Account: account, Token: token, IssuedAt: now}, nil
}

func (p *Provider) fireAccountCreated(ctx context.Context, account authgate.Account) {
	p.mu.RLock()
	hooks := append([]AccountCreatedHook(nil), p.hooks...)
	p.mu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, account)
	}
}

func (p *Provider) tokenURL(path string, id uuid.UUID) string {
	q := url.Values{}
	q.Set("token", id.String())
	return p.config.LinkBaseURL + path + "?" + q.Encode()
}
