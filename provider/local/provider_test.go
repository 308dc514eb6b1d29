package local_test

import (
	"context"
	"database/sql"
	"net/url"
	"sync"
	"testing"
	"time"

	authgate "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-auth-gate/provider/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

type dispatchCall struct {
	account      authgate.Account
	continuation string
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	err   error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, account authgate.Account, continuationURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{account: account, continuation: continuationURL})
	return d.err
}

type recordingResetNotifier struct {
	links []string
}

func (n *recordingResetNotifier) NotifyPasswordReset(ctx context.Context, account authgate.Account, link string) error {
	n.links = append(n.links, link)
	return nil
}

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func setupProvider(t *testing.T, opts ...local.Option) (*local.Provider, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Now().UTC()}
	db := setupDB(t)

	opts = append([]local.Option{
		local.WithLogger(quietLogger{}),
		local.WithClock(clock.Now),
	}, opts...)

	p, err := local.NewProvider(db, local.Config{
		SigningKey:  "test-signing-key-0123456789",
		LinkBaseURL: "http://localhost:8080/",
		BcryptCost:  bcrypt.MinCost,
	}, opts...)
	require.NoError(t, err)
	require.NoError(t, p.Store().Migrate(context.Background()))

	return p, clock
}

func liveSessions(t *testing.T, p *local.Provider) int {
	t.Helper()
	n, err := p.ActiveSessions(context.Background())
	require.NoError(t, err)
	return n
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestNewProviderValidatesConfig(t *testing.T) {
	_, err := local.NewProvider(setupDB(t), local.Config{SigningKey: "short"})
	require.Error(t, err)
	assert.True(t, authgate.IsConfigurationError(err))
}

func TestCreateAccountAndSignIn(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	sess, err := p.CreateAccount(ctx, " New@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", sess.Account.Email)
	assert.False(t, sess.Account.Verified)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, 1, liveSessions(t, p))

	require.NoError(t, p.SignOut(ctx, sess))
	assert.Equal(t, 0, liveSessions(t, p))

	_, err = p.CurrentSession(ctx, sess.Token)
	assert.ErrorIs(t, err, local.ErrInvalidSession)

	again, err := p.SignIn(ctx, "new@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, sess.Account.ID, again.Account.ID)

	current, err := p.CurrentSession(ctx, again.Token)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", current.Account.Email)
}

func TestMultibytePasswordCountsCharacters(t *testing.T) {
	p, _ := setupProvider(t)

	_, err := p.CreateAccount(context.Background(), "a@x.com", "éééééé")
	require.NoError(t, err)
}

func TestSessionsSharedAcrossProviders(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	cfg := local.Config{
		SigningKey:  "test-signing-key-0123456789",
		LinkBaseURL: "http://localhost:8080/",
		BcryptCost:  bcrypt.MinCost,
	}

	cli, err := local.NewProvider(db, cfg, local.WithLogger(quietLogger{}))
	require.NoError(t, err)
	require.NoError(t, cli.Store().Migrate(ctx))

	server, err := local.NewProvider(db, cfg, local.WithLogger(quietLogger{}))
	require.NoError(t, err)

	_, err = cli.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	sess, err := cli.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	current, err := server.CurrentSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", current.Account.Email)

	require.NoError(t, server.SignOut(ctx, sess))

	_, err = cli.CurrentSession(ctx, sess.Token)
	assert.ErrorIs(t, err, local.ErrInvalidSession)
}

func TestExpiredSessionsArePruned(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	clock := &testClock{now: time.Now().UTC()}

	p, err := local.NewProvider(db, local.Config{
		SigningKey:  "test-signing-key-0123456789",
		LinkBaseURL: "http://localhost:8080/",
		BcryptCost:  bcrypt.MinCost,
		SessionTTL:  time.Hour,
	}, local.WithLogger(quietLogger{}), local.WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, p.Store().Migrate(ctx))

	first, err := p.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	_, err = p.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	rows, err := db.NewSelect().Model((*local.SessionRecord)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 0, liveSessions(t, p))

	_, err = p.CurrentSession(ctx, first.Token)
	assert.ErrorIs(t, err, local.ErrInvalidSession)

	_, err = p.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	rows, err = db.NewSelect().Model((*local.SessionRecord)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
}

func TestCreateAccountFailures(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		code     authgate.ProviderCode
	}{
		{name: "duplicate", email: "A@x.com", password: "secret1", code: authgate.CodeEmailAlreadyInUse},
		{name: "invalid email", email: "nope", password: "secret1", code: authgate.CodeInvalidEmail},
		{name: "weak password", email: "b@x.com", password: "123", code: authgate.CodeWeakPassword},
		{name: "weak multibyte password", email: "c@x.com", password: "ééé", code: authgate.CodeWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.CreateAccount(ctx, tt.email, tt.password)
			require.Error(t, err)
			assert.Equal(t, tt.code, authgate.ProviderCodeOf(err))
		})
	}
}

func TestCreateAccountDisabled(t *testing.T) {
	p, err := local.NewProvider(setupDB(t), local.Config{
		SigningKey:    "test-signing-key-0123456789",
		LinkBaseURL:   "http://localhost:8080",
		DisableSignUp: true,
	}, local.WithLogger(quietLogger{}))
	require.NoError(t, err)

	_, err = p.CreateAccount(context.Background(), "a@x.com", "secret1")
	assert.Equal(t, authgate.CodeOperationNotAllowed, authgate.ProviderCodeOf(err))
}

func TestSignInFailuresAndThrottling(t *testing.T) {
	p, clock := setupProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "missing@x.com", "secret1")
	assert.Equal(t, authgate.CodeUserNotFound, authgate.ProviderCodeOf(err))

	for i := 0; i < 5; i++ {
		_, err = p.SignIn(ctx, "a@x.com", "wrong")
		assert.Equal(t, authgate.CodeWrongPassword, authgate.ProviderCodeOf(err), "attempt %d", i)
	}

	_, err = p.SignIn(ctx, "a@x.com", "secret1")
	assert.Equal(t, authgate.CodeTooManyRequests, authgate.ProviderCodeOf(err))

	clock.Advance(16 * time.Minute)

	_, err = p.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "a@x.com", "wrong")
	assert.Equal(t, authgate.CodeWrongPassword, authgate.ProviderCodeOf(err))
}

func TestAccountCreatedHooks(t *testing.T) {
	p, _ := setupProvider(t)

	var created []authgate.Account
	p.OnAccountCreated(func(ctx context.Context, account authgate.Account) {
		created = append(created, account)
	})

	_, err := p.CreateAccount(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	require.Len(t, created, 1)
	assert.Equal(t, "a@x.com", created[0].Email)
	assert.False(t, created[0].Verified)
}

func TestMintAndConfirmVerification(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	link, err := p.MintVerificationLink(ctx, "a@x.com", "http://localhost:5173/login")
	require.NoError(t, err)
	assert.True(t, link.SingleUse)
	assert.Equal(t, "a@x.com", link.TargetEmail)
	assert.Contains(t, link.URL, "http://localhost:8080/verify?token=")

	continuation, account, err := p.ConfirmVerification(ctx, tokenFromLink(t, link.URL))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173/login", continuation)
	assert.True(t, account.Verified)

	_, _, err = p.ConfirmVerification(ctx, tokenFromLink(t, link.URL))
	assert.ErrorIs(t, err, authgate.ErrInvalidVerificationLink)

	sess, err := p.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.True(t, sess.Account.Verified)
}

func TestEarlierLinksStayValid(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	first, err := p.MintVerificationLink(ctx, "a@x.com", "")
	require.NoError(t, err)
	second, err := p.MintVerificationLink(ctx, "a@x.com", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.URL, second.URL)

	_, _, err = p.ConfirmVerification(ctx, tokenFromLink(t, second.URL))
	require.NoError(t, err)

	_, account, err := p.ConfirmVerification(ctx, tokenFromLink(t, first.URL))
	require.NoError(t, err)
	assert.True(t, account.Verified)
}

func TestExpiredAndUnknownLinks(t *testing.T) {
	p, clock := setupProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	link, err := p.MintVerificationLink(ctx, "a@x.com", "")
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)

	_, _, err = p.ConfirmVerification(ctx, tokenFromLink(t, link.URL))
	assert.ErrorIs(t, err, authgate.ErrInvalidVerificationLink)

	_, _, err = p.ConfirmVerification(ctx, "not-a-token")
	assert.ErrorIs(t, err, authgate.ErrInvalidVerificationLink)

	_, _, err = p.ConfirmVerification(ctx, "9b2f3c1e-6d0a-4e5b-8f7c-0a1b2c3d4e5f")
	assert.ErrorIs(t, err, authgate.ErrInvalidVerificationLink)

	_, err = p.MintVerificationLink(ctx, "missing@x.com", "")
	assert.Equal(t, authgate.CodeUserNotFound, authgate.ProviderCodeOf(err))
}

func TestSendVerificationUsesDispatcher(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	sess, err := p.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	err = p.SendVerification(ctx, sess, "http://localhost:5173/login")
	assert.ErrorIs(t, err, local.ErrNoDispatcher)

	dispatcher := &recordingDispatcher{}
	p.SetDispatcher(dispatcher)

	require.NoError(t, p.SendVerification(ctx, sess, "http://localhost:5173/login"))
	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, "a@x.com", dispatcher.calls[0].account.Email)
	assert.Equal(t, "http://localhost:5173/login", dispatcher.calls[0].continuation)

	require.NoError(t, p.SignOut(ctx, sess))
	err = p.SendVerification(ctx, sess, "")
	assert.ErrorIs(t, err, local.ErrInvalidSession)
	assert.Len(t, dispatcher.calls, 1)
}

func TestPasswordResetFlow(t *testing.T) {
	notifier := &recordingResetNotifier{}
	p, _ := setupProvider(t, local.WithResetNotifier(notifier))
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	err = p.SendPasswordReset(ctx, "missing@x.com")
	assert.Equal(t, authgate.CodeUserNotFound, authgate.ProviderCodeOf(err))

	require.NoError(t, p.SendPasswordReset(ctx, "A@x.com"))
	require.Len(t, notifier.links, 1)
	assert.Contains(t, notifier.links[0], "http://localhost:8080/password-reset?token=")

	token := tokenFromLink(t, notifier.links[0])

	err = p.ResetPassword(ctx, token, "123")
	assert.Equal(t, authgate.CodeWeakPassword, authgate.ProviderCodeOf(err))

	err = p.ResetPassword(ctx, token, "ééé")
	assert.Equal(t, authgate.CodeWeakPassword, authgate.ProviderCodeOf(err))

	require.NoError(t, p.ResetPassword(ctx, token, "newsecret"))
	assert.ErrorIs(t, p.ResetPassword(ctx, token, "another1"), local.ErrInvalidResetToken)

	_, err = p.SignIn(ctx, "a@x.com", "secret1")
	assert.Equal(t, authgate.CodeWrongPassword, authgate.ProviderCodeOf(err))

	_, err = p.SignIn(ctx, "a@x.com", "newsecret")
	require.NoError(t, err)
}
