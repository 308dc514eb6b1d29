package authgate_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	authgate "github.com/goliatone/go-auth-gate"
	"github.com/stretchr/testify/mock"
)

// MockLinkMinter implements authgate.LinkMinter
type MockLinkMinter struct {
	mock.Mock
}

func (m *MockLinkMinter) MintVerificationLink(ctx context.Context, email, continuationURL string) (authgate.VerificationLink, error) {
	args := m.Called(ctx, email, continuationURL)
	return args.Get(0).(authgate.VerificationLink), args.Error(1)
}

// MockEmailSender implements authgate.EmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, email authgate.Email) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// MockVerificationIssuer implements authgate.VerificationIssuer
type MockVerificationIssuer struct {
	mock.Mock
}

func (m *MockVerificationIssuer) Issue(ctx context.Context, email, displayName string) error {
	args := m.Called(ctx, email, displayName)
	return args.Error(0)
}

type fakeAccount struct {
	id       string
	password string
	verified bool
}

// fakeProvider is a stateful in memory identity provider.
type fakeProvider struct {
	mu sync.Mutex

	accounts map[string]*fakeAccount
	active   map[string]authgate.Session
	seq      int

	sendCalls   int
	sendErr     error
	signInErr   error
	createErr   error
	resetErr    error
	resetCalls  int
	signInCalls int
	signOuts    int

	// signInGate blocks SignIn until closed, ignoring the context.
	signInGate chan struct{}
	// signInEntered is signalled once SignIn starts waiting on signInGate.
	signInEntered chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts: map[string]*fakeAccount{},
		active:   map[string]authgate.Session{},
	}
}

func (p *fakeProvider) addAccount(email, password string, verified bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[email] = &fakeAccount{id: "acc-" + email, password: password, verified: verified}
}

func (p *fakeProvider) markVerified(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if acc, ok := p.accounts[email]; ok {
		acc.verified = true
	}
}

func (p *fakeProvider) isVerified(email string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.accounts[email]
	return ok && acc.verified
}

func (p *fakeProvider) activeSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func (p *fakeProvider) signOutCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOuts
}

func (p *fakeProvider) sends() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sendCalls
}

func (p *fakeProvider) newSession(email string, acc *fakeAccount) authgate.Session {
	p.seq++
	sess := authgate.Session{
		Account: authgate.Account{
			ID:       acc.id,
			Email:    email,
			Verified: acc.verified,
		},
		Token:    fmt.Sprintf("tok-%d", p.seq),
		IssuedAt: time.Now(),
	}
	p.active[sess.Token] = sess
	return sess
}

func (p *fakeProvider) CreateAccount(ctx context.Context, email, password string) (authgate.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return authgate.Session{}, p.createErr
	}
	if _, ok := p.accounts[email]; ok {
		return authgate.Session{}, authgate.NewProviderError(authgate.CodeEmailAlreadyInUse, nil)
	}
	acc := &fakeAccount{id: "acc-" + email, password: password}
	p.accounts[email] = acc
	return p.newSession(email, acc), nil
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (authgate.Session, error) {
	p.mu.Lock()
	gate := p.signInGate
	entered := p.signInEntered
	p.signInCalls++
	p.mu.Unlock()

	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signInErr != nil {
		return authgate.Session{}, p.signInErr
	}
	acc, ok := p.accounts[email]
	if !ok {
		return authgate.Session{}, authgate.NewProviderError(authgate.CodeUserNotFound, nil)
	}
	if acc.password != password {
		return authgate.Session{}, authgate.NewProviderError(authgate.CodeWrongPassword, nil)
	}
	return p.newSession(email, acc), nil
}

func (p *fakeProvider) SignOut(ctx context.Context, session authgate.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	delete(p.active, session.Token)
	return nil
}

func (p *fakeProvider) SendVerification(ctx context.Context, session authgate.Session, continuationURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendCalls++
	return p.sendErr
}

func (p *fakeProvider) SendPasswordReset(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetCalls++
	if p.resetErr != nil {
		return p.resetErr
	}
	if _, ok := p.accounts[email]; !ok {
		return authgate.NewProviderError(authgate.CodeUserNotFound, nil)
	}
	return nil
}

type silentLogger struct{}

func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}
