package authgate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// ControllerState is the observable state of a Controller.
type ControllerState int

const (
	StateIdle ControllerState = iota
	StateBusy
	StateAwaitingVerification
	StateActive
	StateFailed
)

func (s ControllerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateAwaitingVerification:
		return "awaiting_verification"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// EnvironmentDevelopment is the only environment where the dev bypass applies.
const EnvironmentDevelopment = "development"

const (
	DefaultOperationTimeout  = 10 * time.Second
	DefaultMinPasswordLength = 6
	signOutTimeout           = 5 * time.Second
)

// Snapshot is what the presentation layer renders. Kind describes Error and
// is KindNone when there is no error. A Failed(kind) state is State ==
// StateFailed with Kind set.
type Snapshot struct {
	State       ControllerState
	Operation   Operation
	Email       string
	Kind        ErrorKind
	Error       string
	Notice      string
	Warning     string
	WarningKind ErrorKind
}

// Failed reports whether the snapshot is Failed(kind).
func (s Snapshot) Failed(kind ErrorKind) bool {
	return s.State == StateFailed && s.Kind == kind
}

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	// ContinuationURL is bound to every verification link the Controller requests.
	ContinuationURL string
	// DevBypass asks for the unverified login escape hatch. It is ignored
	// unless the binary is built with the authgate_devbypass tag.
	DevBypass bool
	// Environment is the runtime environment name.
	Environment string
	// OperationTimeout bounds every operation.
	OperationTimeout time.Duration
	// MinPasswordLength applies to sign up only.
	MinPasswordLength int
}

// ControllerOption configures optional Controller collaborators.
type ControllerOption func(*Controller)

// WithControllerLogger sets the logger.
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithControllerActivitySink sets the activity sink.
func WithControllerActivitySink(sink ActivitySink) ControllerOption {
	return func(c *Controller) {
		c.activity = normalizeActivitySink(sink)
	}
}

// WithLinkRequester makes ResendVerification request links by email only,
// without re-authenticating.
func WithLinkRequester(requester LinkRequester) ControllerOption {
	return func(c *Controller) {
		c.requester = requester
	}
}

// WithControllerClock overrides the clock used for activity timestamps.
func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller drives sign up, login, resend, recheck and password reset
// against an IdentityProvider. At most one operation runs at a time and an
// unverified session never outlives the check that produced it.
type Controller struct {
	provider  IdentityProvider
	requester LinkRequester
	config    ControllerConfig
	logger    Logger
	activity  ActivitySink
	now       func() time.Time

	busy atomic.Bool

	mu          sync.RWMutex
	snapshot    Snapshot
	session     *Session
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// NewController creates a Controller in the Idle state.
func NewController(provider IdentityProvider, cfg ControllerConfig, opts ...ControllerOption) *Controller {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultOperationTimeout
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = DefaultMinPasswordLength
	}
	if strings.TrimSpace(cfg.ContinuationURL) == "" {
		cfg.ContinuationURL = DefaultContinuationURL
	}

	c := &Controller{
		provider:    provider,
		config:      cfg,
		logger:      defLogger{},
		activity:    noopActivitySink{},
		now:         time.Now,
		snapshot:    Snapshot{State: StateIdle},
		subscribers: map[int]func(Snapshot){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// State returns the current ControllerState.
func (c *Controller) State() ControllerState {
	return c.Snapshot().State
}

// Session returns the active session. It is only ever set while Active.
func (c *Controller) Session() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil || c.snapshot.State != StateActive {
		return Session{}, false
	}
	return *c.session, true
}

// Subscribe registers fn for every published snapshot and returns a
// function that removes it.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// SignUp creates the account, requests a verification link and signs the
// new session out. It ends in AwaitingVerification, with a warning when the
// email could not be sent.
func (c *Controller) SignUp(ctx context.Context, email, password string) (Snapshot, error) {
	return c.run(ctx, OpSignUp, email, func(ctx context.Context) outcome {
		c.releaseSession(ctx)

		emailNorm := NormalizeEmail(email)
		if out, ok := c.validateEmail(OpSignUp, emailNorm, MsgEmailRequired); !ok {
			return out
		}
		if utf8.RuneCountInString(password) < c.config.MinPasswordLength {
			return failed(OpSignUp, emailNorm, KindValidation, MsgPasswordTooShort)
		}

		sess, err := c.provider.CreateAccount(ctx, emailNorm, password)
		if err != nil {
			return c.providerFailure(ctx, OpSignUp, emailNorm, err)
		}

		c.record(ctx, ActivityEventSignUp, sess.Account, nil)

		sendErr := c.provider.SendVerification(ctx, sess, c.config.ContinuationURL)
		c.signOut(ctx, sess)

		snap := Snapshot{
			State:     StateAwaitingVerification,
			Operation: OpSignUp,
			Email:     emailNorm,
		}
		if sendErr != nil {
			c.logger.Warn("verification email after sign up failed", "email", emailNorm, "error", sendErr)
			snap.Warning = MsgSignUpSendFailed
			snap.WarningKind = KindDelivery
		} else {
			snap.Notice = MsgSignUpSent
		}
		return outcome{snap: snap}
	})
}

// LogIn checks credentials and consults the session gate. Unverified
// accounts are signed out and left in AwaitingVerification unless the dev
// bypass is in effect.
func (c *Controller) LogIn(ctx context.Context, email, password string) (Snapshot, error) {
	return c.run(ctx, OpLogIn, email, func(ctx context.Context) outcome {
		c.releaseSession(ctx)

		emailNorm := NormalizeEmail(email)
		if out, ok := c.validateEmail(OpLogIn, emailNorm, MsgEmailRequired); !ok {
			return out
		}

		sess, err := c.provider.SignIn(ctx, emailNorm, password)
		if err != nil {
			c.record(ctx, ActivityEventLoginFailure, Account{Email: emailNorm}, map[string]any{
				"code": string(ProviderCodeOf(err)),
			})
			return c.providerFailure(ctx, OpLogIn, emailNorm, err)
		}

		verified := sess.Account.Verified
		if !CanProceed(true, verified, c.devBypass(), c.isDevEnvironment()) {
			c.signOut(ctx, sess)
			c.record(ctx, ActivityEventLoginUnverified, sess.Account, nil)
			return outcome{snap: Snapshot{
				State:     StateAwaitingVerification,
				Operation: OpLogIn,
				Email:     emailNorm,
				Kind:      KindCredential,
				Error:     MsgLoginUnverified,
			}}
		}

		snap := Snapshot{State: StateActive, Operation: OpLogIn, Email: emailNorm}
		if !verified {
			c.logger.Warn("dev bypass admitted unverified account", "email", emailNorm)
			snap.Warning = MsgDevBypass
		}
		c.record(ctx, ActivityEventLoginSuccess, sess.Account, map[string]any{"verified": verified})
		return outcome{snap: snap, session: &sess}
	})
}

// ResendVerification requests another verification link. With a
// LinkRequester configured only the email is used. Otherwise the account is
// signed in transiently to reach the provider. The verified flag is never
// touched.
func (c *Controller) ResendVerification(ctx context.Context, email, password string) (Snapshot, error) {
	return c.run(ctx, OpResend, email, func(ctx context.Context) outcome {
		c.releaseSession(ctx)

		emailNorm := NormalizeEmail(email)
		if out, ok := c.validateEmail(OpResend, emailNorm, MsgResendEmailMissing); !ok {
			return out
		}

		if c.requester != nil {
			if err := c.requester.RequestVerification(ctx, emailNorm); err != nil {
				if ctx.Err() != nil {
					return timedOut(OpResend, emailNorm, ctx.Err())
				}
				if errors.Is(err, ErrEmailRequired) {
					return failed(OpResend, emailNorm, KindValidation, MsgResendEmailMissing)
				}
				c.logger.Warn("verification resend failed", "email", emailNorm, "error", err)
				return failed(OpResend, emailNorm, KindDelivery, MsgResendSendFailed)
			}
			return resent(emailNorm)
		}

		sess, err := c.provider.SignIn(ctx, emailNorm, password)
		if err != nil {
			return c.providerFailure(ctx, OpResend, emailNorm, err)
		}

		sendErr := c.provider.SendVerification(ctx, sess, c.config.ContinuationURL)
		c.signOut(ctx, sess)

		if sendErr != nil {
			if ctx.Err() != nil {
				return timedOut(OpResend, emailNorm, ctx.Err())
			}
			c.logger.Warn("verification resend failed", "email", emailNorm, "error", sendErr)
			return failed(OpResend, emailNorm, KindDelivery, MsgResendSendFailed)
		}
		return resent(emailNorm)
	})
}

// RecheckVerification signs in transiently and reads the verified flag. A
// verified account has its transient session promoted to the active one.
// The dev bypass does not apply here.
func (c *Controller) RecheckVerification(ctx context.Context, email, password string) (Snapshot, error) {
	return c.run(ctx, OpRecheck, email, func(ctx context.Context) outcome {
		c.releaseSession(ctx)

		emailNorm := NormalizeEmail(email)
		if out, ok := c.validateEmail(OpRecheck, emailNorm, MsgEmailRequired); !ok {
			return out
		}

		sess, err := c.provider.SignIn(ctx, emailNorm, password)
		if err != nil {
			return c.providerFailure(ctx, OpRecheck, emailNorm, err)
		}

		if CanProceed(true, sess.Account.Verified, false, false) {
			c.record(ctx, ActivityEventVerificationConfirmed, sess.Account, nil)
			return outcome{
				snap:    Snapshot{State: StateActive, Operation: OpRecheck, Email: emailNorm},
				session: &sess,
			}
		}

		c.signOut(ctx, sess)
		return outcome{snap: Snapshot{
			State:     StateAwaitingVerification,
			Operation: OpRecheck,
			Email:     emailNorm,
			Kind:      KindCredential,
			Error:     MsgStillUnverified,
		}}
	})
}

// RequestPasswordReset asks the provider to send a reset email. The
// ControllerState is left as it was.
func (c *Controller) RequestPasswordReset(ctx context.Context, email string) (Snapshot, error) {
	return c.run(ctx, OpPasswordReset, email, func(ctx context.Context) outcome {
		emailNorm := NormalizeEmail(email)
		if emailNorm == "" {
			return outcome{snap: Snapshot{Operation: OpPasswordReset, Kind: KindValidation, Error: MsgResetEmailMissing}}
		}

		if err := c.provider.SendPasswordReset(ctx, emailNorm); err != nil {
			if ctx.Err() != nil {
				return timedOut(OpPasswordReset, emailNorm, ctx.Err())
			}
			code := ProviderCodeOf(err)
			c.logger.Info("password reset request failed", "email", emailNorm, "code", code)
			return outcome{snap: Snapshot{
				Operation: OpPasswordReset,
				Email:     emailNorm,
				Kind:      code.Kind(),
				Error:     MessageFor(OpPasswordReset, code),
			}}
		}

		c.record(ctx, ActivityEventPasswordResetRequest, Account{Email: emailNorm}, nil)
		return outcome{snap: Snapshot{Operation: OpPasswordReset, Email: emailNorm, Notice: MsgResetSent}}
	})
}

// SignOut ends the active session, if any, and returns to Idle.
func (c *Controller) SignOut(ctx context.Context) (Snapshot, error) {
	return c.run(ctx, OpSignOut, "", func(ctx context.Context) outcome {
		c.releaseSession(ctx)
		return outcome{snap: Snapshot{State: StateIdle, Operation: OpSignOut}}
	})
}

type outcome struct {
	snap    Snapshot
	session *Session
}

func (c *Controller) run(ctx context.Context, op Operation, email string, fn func(ctx context.Context) outcome) (Snapshot, error) {
	if !c.busy.CompareAndSwap(false, true) {
		c.logger.Debug("operation ignored, controller busy", "operation", op)
		return c.Snapshot(), ErrBusy
	}
	defer c.busy.Store(false)

	preserveState := op == OpPasswordReset
	if !preserveState {
		c.publish(Snapshot{State: StateBusy, Operation: op, Email: NormalizeEmail(email)}, nil, false)
	}

	opCtx, cancel := context.WithTimeout(ctx, c.config.OperationTimeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		done <- fn(opCtx)
	}()

	var out outcome
	select {
	case out = <-done:
	case <-opCtx.Done():
		go c.discardLate(done)
		out = timedOut(op, NormalizeEmail(email), opCtx.Err())
	}

	return c.publish(out.snap, out.session, preserveState), nil
}

// discardLate waits for an abandoned operation and signs out any session it
// produced so a timed out login cannot leave a live session behind.
func (c *Controller) discardLate(done <-chan outcome) {
	out := <-done
	if out.session != nil {
		c.signOut(context.Background(), *out.session)
	}
}

func (c *Controller) publish(snap Snapshot, session *Session, preserveState bool) Snapshot {
	c.mu.Lock()
	var transitionErr error
	if !preserveState {
		transitionErr = checkTransition(c.snapshot.State, snap.State)
	}
	if preserveState {
		snap.State = c.snapshot.State
	} else if snap.State == StateActive {
		c.session = session
	} else if snap.State != StateBusy {
		c.session = nil
	}
	c.snapshot = snap

	subs := make([]func(Snapshot), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	if transitionErr != nil {
		c.logger.Error("unexpected controller transition", "error", transitionErr)
	}

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}

// releaseSession signs out the active session before a new credential
// operation starts.
func (c *Controller) releaseSession(ctx context.Context) {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()

	if sess != nil {
		c.signOut(ctx, *sess)
		c.record(ctx, ActivityEventLogout, sess.Account, nil)
	}
}

// signOut runs detached from the operation context so it is still issued
// when the operation was cancelled.
func (c *Controller) signOut(ctx context.Context, sess Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), signOutTimeout)
	defer cancel()

	if err := c.provider.SignOut(ctx, sess); err != nil {
		c.logger.Error("sign out failed", "email", sess.Account.Email, "error", err)
	}
}

func (c *Controller) validateEmail(op Operation, email, emptyMsg string) (outcome, bool) {
	if email == "" {
		return failed(op, email, KindValidation, emptyMsg), false
	}
	if err := validation.Validate(email, is.Email); err != nil {
		return failed(op, email, KindValidation, MessageFor(OpLogIn, CodeInvalidEmail)), false
	}
	return outcome{}, true
}

func (c *Controller) providerFailure(ctx context.Context, op Operation, email string, err error) outcome {
	if ctx.Err() != nil {
		return timedOut(op, email, ctx.Err())
	}
	code := ProviderCodeOf(err)
	c.logger.Info("provider operation failed", "operation", op, "email", email, "code", code, "error", err)
	return failed(op, email, code.Kind(), MessageFor(op, code))
}

func (c *Controller) devBypass() bool {
	return EffectiveDevBypass(c.config.DevBypass)
}

func (c *Controller) isDevEnvironment() bool {
	return strings.EqualFold(strings.TrimSpace(c.config.Environment), EnvironmentDevelopment)
}

func (c *Controller) record(ctx context.Context, eventType ActivityEventType, account Account, metadata map[string]any) {
	recordActivity(ctx, c.activity, c.logger, ActivityEvent{
		EventType:  eventType,
		Email:      account.Email,
		AccountID:  account.ID,
		Source:     "controller",
		Metadata:   metadata,
		OccurredAt: c.now(),
	})
}

func failed(op Operation, email string, kind ErrorKind, msg string) outcome {
	return outcome{snap: Snapshot{
		State:     StateFailed,
		Operation: op,
		Email:     email,
		Kind:      kind,
		Error:     msg,
	}}
}

func timedOut(op Operation, email string, cause error) outcome {
	msg := MsgOperationTimedOut
	if errors.Is(cause, context.Canceled) {
		msg = MsgOperationCancelled
	}
	return failed(op, email, KindTimeout, msg)
}

func resent(email string) outcome {
	return outcome{snap: Snapshot{
		State:     StateAwaitingVerification,
		Operation: OpResend,
		Email:     email,
		Notice:    MsgResendSent,
	}}
}
