package local

import (
	"time"

	authgate "github.com/goliatone/go-auth-gate"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountRecord is the persisted account.
type AccountRecord struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	DisplayName    string     `bun:"display_name" json:"display_name,omitempty"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	Verified       bool       `bun:"is_email_verified,notnull,default:false" json:"is_email_verified"`
	VerifiedAt     *time.Time `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	LoginAttempts  int        `bun:"login_attempts,notnull,default:0" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at,nullzero" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Account converts the record to the public account view.
func (r *AccountRecord) Account() authgate.Account {
	if r == nil {
		return authgate.Account{}
	}
	return authgate.Account{
		ID:          r.ID.String(),
		Email:       r.Email,
		Verified:    r.Verified,
		DisplayName: r.DisplayName,
	}
}

// VerificationTicket backs a single verification link.
type VerificationTicket struct {
	bun.BaseModel   `bun:"table:verification_tickets,alias:vt"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID       uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Email           string     `bun:"email,notnull" json:"email,omitempty"`
	ContinuationURL string     `bun:"continuation_url" json:"continuation_url,omitempty"`
	ExpiresAt       time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	ConsumedAt      *time.Time `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ResetStatus tracks a password reset request.
type ResetStatus string

const (
	ResetRequestedStatus ResetStatus = "requested"
	ResetChangedStatus   ResetStatus = "changed"
)

// PasswordReset backs a password reset request.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwdr"`
	ID            uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID   `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Email         string      `bun:"email,notnull" json:"email,omitempty"`
	Status        ResetStatus `bun:"status,notnull" json:"status,omitempty"`
	ExpiresAt     time.Time   `bun:"expires_at,notnull" json:"expires_at"`
	ResetedAt     *time.Time  `bun:"reseted_at,nullzero" json:"reseted_at,omitempty"`
	CreatedAt     *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// SessionRecord tracks a live session token by its JWT ID. Signing out
// deletes the row.
type SessionRecord struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
