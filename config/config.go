// Package config loads the service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/joho/godotenv"
)

const (
	ProviderLocal = "local"
	ProviderAuth0 = "auth0"

	TransportResend  = "resend"
	TransportConsole = "console"

	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the full runtime configuration.
type Config struct {
	Environment string
	LogFormat   string
	LogLevel    string

	HTTPAddr        string
	GRPCAddr        string
	PublicBaseURL   string
	CORSAllowOrigin string

	Provider string
	Local    LocalConfig
	Auth0    Auth0Config

	Email EmailConfig

	ContinueURL          string
	ProductName          string
	AllowUnverifiedLogin bool
	OperationTimeout     time.Duration
	VerificationLinkTTL  time.Duration
}

// LocalConfig configures the self hosted provider.
type LocalConfig struct {
	DSN        string
	SigningKey string
}

// Auth0Config configures the Auth0 provider.
type Auth0Config struct {
	Domain       string
	ClientID     string
	ClientSecret string
	Connection   string
}

// EmailConfig configures email delivery. An empty ResendAPIKey is valid;
// sends fail at runtime instead.
type EmailConfig struct {
	Transport    string
	ResendAPIKey string
	From         string
}

// Load reads .env when present and then the process environment.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup and validates it.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	r := reader{lookup: lookup}

	cfg := Config{
		Environment:     strings.ToLower(r.str("APP_ENV", EnvDevelopment)),
		LogFormat:       strings.ToLower(r.str("LOG_FORMAT", "pretty")),
		LogLevel:        strings.ToLower(r.str("LOG_LEVEL", "info")),
		HTTPAddr:        r.str("HTTP_ADDR", ":8080"),
		GRPCAddr:        r.str("GRPC_ADDR", ":9090"),
		PublicBaseURL:   strings.TrimSuffix(r.str("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		CORSAllowOrigin: r.str("CORS_ALLOW_ORIGIN", "http://localhost:5173"),
		Provider:        strings.ToLower(r.str("AUTH_PROVIDER", ProviderLocal)),
		Local: LocalConfig{
			DSN:        r.str("LOCAL_DSN", "file:authgate.db?cache=shared"),
			SigningKey: r.str("LOCAL_SIGNING_KEY", ""),
		},
		Auth0: Auth0Config{
			Domain:       r.str("AUTH0_DOMAIN", ""),
			ClientID:     r.str("AUTH0_CLIENT_ID", ""),
			ClientSecret: r.str("AUTH0_CLIENT_SECRET", ""),
			Connection:   r.str("AUTH0_CONNECTION", ""),
		},
		Email: EmailConfig{
			Transport:    strings.ToLower(r.str("EMAIL_TRANSPORT", TransportResend)),
			ResendAPIKey: r.str("RESEND_API_KEY", ""),
			From:         r.str("RESEND_FROM", "Keeps <onboarding@mail.resend.dev>"),
		},
		ContinueURL:          r.str("CONTINUE_URL", "http://localhost:5173/login"),
		ProductName:          r.str("PRODUCT_NAME", "Keeps"),
		AllowUnverifiedLogin: r.boolean("ALLOW_UNVERIFIED_LOGIN", false),
		OperationTimeout:     r.duration("OPERATION_TIMEOUT", 10*time.Second),
		VerificationLinkTTL:  r.duration("VERIFICATION_LINK_TTL", 24*time.Hour),
	}

	if len(r.errs) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(r.errs, "; "))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Validate checks field level rules.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Environment, validation.In(EnvDevelopment, EnvProduction)),
		validation.Field(&c.LogFormat, validation.In("pretty", "json")),
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderLocal, ProviderAuth0)),
		validation.Field(&c.HTTPAddr, validation.Required),
		validation.Field(&c.PublicBaseURL, validation.Required, is.URL),
		validation.Field(&c.ContinueURL, validation.Required, is.URL),
		validation.Field(&c.OperationTimeout, validation.Min(time.Second)),
		validation.Field(&c.VerificationLinkTTL, validation.Min(time.Minute)),
		validation.Field(&c.Email),
	); err != nil {
		return err
	}

	switch c.Provider {
	case ProviderLocal:
		return validation.ValidateStruct(&c.Local,
			validation.Field(&c.Local.DSN, validation.Required),
			validation.Field(&c.Local.SigningKey, validation.Required, validation.Length(16, 0)),
		)
	case ProviderAuth0:
		return validation.ValidateStruct(&c.Auth0,
			validation.Field(&c.Auth0.Domain, validation.Required),
			validation.Field(&c.Auth0.ClientID, validation.Required),
			validation.Field(&c.Auth0.ClientSecret, validation.Required),
		)
	}
	return nil
}

// Validate checks the email transport.
func (e EmailConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Transport, validation.Required, validation.In(TransportResend, TransportConsole)),
		validation.Field(&e.From, validation.Required),
	)
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []string
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
