package local

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ErrInvalidSession is returned for unknown, expired or revoked session tokens.
var ErrInvalidSession = goerrors.New("invalid session", goerrors.CategoryAuth).
	WithTextCode("INVALID_SESSION").
	WithCode(goerrors.CodeUnauthorized)

type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// sessionTokens signs session tokens. Live sessions are rows in the store,
// so every provider sharing the database accepts the same tokens.
type sessionTokens struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	store      *Store
}

func newSessionTokens(store *Store, signingKey, issuer string, ttl time.Duration) *sessionTokens {
	return &sessionTokens{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
		store:      store,
	}
}

func (s *sessionTokens) issue(ctx context.Context, accountID, email string, now time.Time) (string, error) {
	owner, err := uuid.Parse(accountID)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "invalid account id for session")
	}

	id := uuid.New()
	expiresAt := now.Add(s.ttl).UTC()
	claims := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Issuer:    s.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	if err := s.store.pruneSessions(ctx, now); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to prune expired sessions")
	}
	if err := s.store.saveSession(ctx, &SessionRecord{ID: id, AccountID: owner, ExpiresAt: expiresAt}); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store session")
	}

	return signed, nil
}

func (s *sessionTokens) parse(token string, opts ...jwt.ParserOption) (*sessionClaims, uuid.UUID, error) {
	claims := &sessionClaims{}
	opts = append(opts, jwt.WithIssuer(s.issuer))
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, uuid.Nil, ErrInvalidSession
	}
	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, uuid.Nil, ErrInvalidSession
	}
	return claims, id, nil
}

// validate returns the claims of a live token.
func (s *sessionTokens) validate(ctx context.Context, token string, now time.Time) (*sessionClaims, error) {
	claims, id, err := s.parse(token, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		return nil, err
	}

	live, err := s.store.sessionLive(ctx, id, now)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session")
	}
	if !live {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// revoke drops the token. Unknown or malformed tokens are ignored.
func (s *sessionTokens) revoke(ctx context.Context, token string) error {
	_, id, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil
	}
	if err := s.store.deleteSession(ctx, id); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke session")
	}
	return nil
}

func (s *sessionTokens) count(ctx context.Context, now time.Time) (int, error) {
	return s.store.countSessions(ctx, now)
}
