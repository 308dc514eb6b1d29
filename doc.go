// Package authgate gates access to an application on a verified email
// address.
//
// Controller:
//   - Controller drives sign-up, login, verification resend, verification
//     recheck and password reset against an IdentityProvider. Every operation
//     passes through Busy and settles in Idle, AwaitingVerification, Active or
//     Failed. A second call while Busy is rejected with ErrBusy.
//   - A session is only kept once the account is verified. Unverified
//     sessions are signed out before the controller settles.
//
// Session gate:
//   - CanProceed decides whether a session may enter the application. The
//     development bypass only applies in binaries built with the
//     authgate_devbypass tag and running in a development environment.
//   - ProtectedRoute applies the same decision to go-router handlers.
//
// Link issuer:
//   - LinkIssuer mints a verification link through a LinkMinter, renders the
//     email and hands it to a Sender. It serves the account-created hook, the
//     POST /send-verification endpoint and the gRPC SendVerification call.
//
// Activity sinks:
//   - ActivitySink receives best-effort audit events for sign-ups, logins,
//     verification and password resets. Sink errors are logged, never returned.
package authgate
