package local

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"golang.org/x/crypto/bcrypt"
)

// Config configures the local provider.
type Config struct {
	// SigningKey signs session tokens (HS256).
	SigningKey string
	// Issuer is set on session tokens.
	Issuer string
	// LinkBaseURL is the public base URL serving GET /verify.
	LinkBaseURL string

	SessionTTL         time.Duration
	VerificationTTL    time.Duration
	PasswordResetTTL   time.Duration
	BcryptCost         int
	MaxLoginAttempts   int
	LoginAttemptWindow time.Duration
	MinPasswordLength  int
	// DisableSignUp rejects CreateAccount with operation-not-allowed.
	DisableSignUp bool
}

// Validate checks the required settings.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.LinkBaseURL, validation.Required, is.URL),
	)
}

func (c Config) withDefaults() Config {
	c.LinkBaseURL = strings.TrimRight(strings.TrimSpace(c.LinkBaseURL), "/")
	if c.Issuer == "" {
		c.Issuer = "authgate"
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.VerificationTTL <= 0 {
		c.VerificationTTL = 24 * time.Hour
	}
	if c.PasswordResetTTL <= 0 {
		c.PasswordResetTTL = time.Hour
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	if c.MaxLoginAttempts <= 0 {
		c.MaxLoginAttempts = 5
	}
	if c.LoginAttemptWindow <= 0 {
		c.LoginAttemptWindow = 15 * time.Minute
	}
	if c.MinPasswordLength <= 0 {
		c.MinPasswordLength = 6
	}
	return c
}
