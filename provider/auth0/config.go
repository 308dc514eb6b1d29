package auth0

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// DefaultConnection is the Auth0 default database connection.
const DefaultConnection = "Username-Password-Authentication"

// Config holds the Auth0 tenant settings.
type Config struct {
	// Domain is the Auth0 tenant domain (e.g., "example.us.auth0.com").
	Domain string

	// ClientID and ClientSecret belong to an application allowed to use the
	// password grant and the Management API.
	ClientID     string
	ClientSecret string

	// Connection is the database connection accounts live in.
	// Default: DefaultConnection.
	Connection string

	// Audience is requested on password login (optional).
	Audience string

	// Scope requested on password login.
	// Default: "openid profile email".
	Scope string

	// VerificationTTL bounds verification tickets.
	// Default: 24 hours.
	VerificationTTL time.Duration
}

// Validate checks the required settings.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Domain, validation.Required),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.ClientSecret, validation.Required),
	)
}

func (c Config) withDefaults() Config {
	c.Domain = normalizeDomain(c.Domain)
	if c.Connection == "" {
		c.Connection = DefaultConnection
	}
	if c.Scope == "" {
		c.Scope = "openid profile email"
	}
	if c.VerificationTTL <= 0 {
		c.VerificationTTL = 24 * time.Hour
	}
	return c
}

// normalizeDomain strips a scheme and trailing slash.
func normalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	return strings.TrimSuffix(domain, "/")
}
