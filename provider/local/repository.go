package local

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Store groups the repositories used by the provider.
type Store struct {
	db       *bun.DB
	accounts repository.Repository[*AccountRecord]
	tickets  repository.Repository[*VerificationTicket]
	resets   repository.Repository[*PasswordReset]
	sessions repository.Repository[*SessionRecord]
}

// NewStore wires the repositories on db.
func NewStore(db *bun.DB) *Store {
	return &Store{
		db:       db,
		accounts: newAccountsRepository(db),
		tickets:  newTicketsRepository(db),
		resets:   newPasswordResetsRepository(db),
		sessions: newSessionsRepository(db),
	}
}

func newAccountsRepository(db *bun.DB) repository.Repository[*AccountRecord] {
	return repository.NewRepository(db, repository.ModelHandlers[*AccountRecord]{
		NewRecord: func() *AccountRecord { return &AccountRecord{} },
		GetID: func(record *AccountRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *AccountRecord, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})
}

func newTicketsRepository(db *bun.DB) repository.Repository[*VerificationTicket] {
	return repository.NewRepository(db, repository.ModelHandlers[*VerificationTicket]{
		NewRecord: func() *VerificationTicket { return &VerificationTicket{} },
		GetID: func(record *VerificationTicket) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *VerificationTicket, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})
}

func newPasswordResetsRepository(db *bun.DB) repository.Repository[*PasswordReset] {
	return repository.NewRepository(db, repository.ModelHandlers[*PasswordReset]{
		NewRecord: func() *PasswordReset { return &PasswordReset{} },
		GetID: func(record *PasswordReset) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *PasswordReset, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})
}

func newSessionsRepository(db *bun.DB) repository.Repository[*SessionRecord] {
	return repository.NewRepository(db, repository.ModelHandlers[*SessionRecord]{
		NewRecord: func() *SessionRecord { return &SessionRecord{} },
		GetID: func(record *SessionRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *SessionRecord, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{
		(*AccountRecord)(nil),
		(*VerificationTicket)(nil),
		(*PasswordReset)(nil),
		(*SessionRecord)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunInTx runs fn in a transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return s.db.RunInTx(ctx, nil, fn)
}

func (s *Store) accountByEmail(ctx context.Context, tx bun.IDB, email string) (*AccountRecord, error) {
	return s.accounts.GetByIdentifierTx(ctx, tx, email)
}

func (s *Store) accountByID(ctx context.Context, tx bun.IDB, id uuid.UUID) (*AccountRecord, error) {
	return s.accounts.GetByIDTx(ctx, tx, id.String())
}

// markVerified only ever sets the flag. verified_at keeps the first value.
func (s *Store) markVerified(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	_, err := tx.NewUpdate().
		Model((*AccountRecord)(nil)).
		Set("is_email_verified = ?", true).
		Set("verified_at = COALESCE(verified_at, ?)", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (s *Store) trackLoginAttempt(ctx context.Context, tx bun.IDB, id uuid.UUID, attempts int, at time.Time) error {
	_, err := tx.NewUpdate().
		Model((*AccountRecord)(nil)).
		Set("login_attempts = ?", attempts).
		Set("login_attempt_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (s *Store) trackSuccessfulLogin(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) error {
	_, err := tx.NewUpdate().
		Model((*AccountRecord)(nil)).
		Set("login_attempts = 0").
		Set("login_attempt_at = NULL").
		Set("loggedin_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (s *Store) updatePassword(ctx context.Context, tx bun.IDB, id uuid.UUID, hash string, at time.Time) error {
	_, err := tx.NewUpdate().
		Model((*AccountRecord)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// consumeTicket marks the ticket used. It reports false when another caller
// consumed it first.
func (s *Store) consumeTicket(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*VerificationTicket)(nil)).
		Set("consumed_at = ?", at).
		Where("id = ?", id).
		Where("consumed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) completeReset(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("status = ?", ResetChangedStatus).
		Set("reseted_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", ResetRequestedStatus).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) saveSession(ctx context.Context, record *SessionRecord) error {
	_, err := s.sessions.Create(ctx, record)
	return err
}

// sessionLive reports whether the session row exists and has not expired.
func (s *Store) sessionLive(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	record, err := s.sessions.GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return now.Before(record.ExpiresAt), nil
}

func (s *Store) deleteSession(ctx context.Context, id uuid.UUID) error {
	return s.sessions.DeleteWhere(ctx, func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("id = ?", id)
	})
}

// pruneSessions drops every session that expired at or before now.
func (s *Store) pruneSessions(ctx context.Context, now time.Time) error {
	return s.sessions.DeleteWhere(ctx, func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("expires_at <= ?", now.UTC())
	})
}

func (s *Store) countSessions(ctx context.Context, now time.Time) (int, error) {
	return s.db.NewSelect().
		Model((*SessionRecord)(nil)).
		Where("expires_at > ?", now.UTC()).
		Count(ctx)
}
