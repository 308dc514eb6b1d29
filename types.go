package authgate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the logging surface used by every component in this module.
// Args are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// Account is the provider owned view of a user. Verified only ever moves
// from false to true.
type Account struct {
	ID          string
	Email       string
	Verified    bool
	DisplayName string
}

// Session is an authenticated context bound to a single Account.
type Session struct {
	Account  Account
	Token    string
	IssuedAt time.Time
}

// VerificationLink is a single use, time limited link minted by the
// identity provider.
type VerificationLink struct {
	URL             string
	TargetEmail     string
	ContinuationURL string
	SingleUse       bool
	ExpiresAt       time.Time
}

// IdentityProvider owns credentials and the verified flag. The Controller
// consumes it and never writes account state directly.
type IdentityProvider interface {
	// CreateAccount registers the account and returns a signed in session.
	CreateAccount(ctx context.Context, email, password string) (Session, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, session Session) error
	// SendVerification asks the provider to issue and deliver a verification
	// link for the session's account.
	SendVerification(ctx context.Context, session Session, continuationURL string) error
	SendPasswordReset(ctx context.Context, email string) error
}

// LinkMinter mints verification links bound to a continuation URL.
type LinkMinter interface {
	MintVerificationLink(ctx context.Context, email, continuationURL string) (VerificationLink, error)
}

// VerificationDispatcher delivers a verification link for an account.
// LinkIssuer implements it for providers that do not send email themselves.
type VerificationDispatcher interface {
	Dispatch(ctx context.Context, account Account, continuationURL string) error
}

// Email is a rendered message ready for delivery.
type Email struct {
	To      string
	From    string
	Subject string
	HTML    string
}

// EmailSender delivers rendered messages. It reports success or failure only.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

// LinkRequester issues a verification link keyed only by email. It lets
// resend skip re-authentication.
type LinkRequester interface {
	RequestVerification(ctx context.Context, email string) error
}

// LinkRequesterFunc adapts a function to LinkRequester.
type LinkRequesterFunc func(ctx context.Context, email string) error

// RequestVerification implements LinkRequester.
func (f LinkRequesterFunc) RequestVerification(ctx context.Context, email string) error {
	return f(ctx, email)
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println("[ERR] AUTHGATE " + format(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println("[WRN] AUTHGATE " + format(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println("[INF] AUTHGATE " + format(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println("[DBG] AUTHGATE " + format(msg, args...))
}

// DefaultLogger returns the fallback stdout logger.
func DefaultLogger() Logger {
	return defLogger{}
}

// format renders msg followed by key=value pairs. A trailing key without a
// value is printed as is.
func format(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(msg, "\n"))
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 >= len(args) {
			fmt.Fprint(&b, args[i])
			break
		}
		fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
	}
	return b.String()
}
