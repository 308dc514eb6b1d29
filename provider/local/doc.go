// Package local is a self hosted identity provider backed by bun.
//
// It owns everything the verification gate treats as external: account
// records with bcrypt password hashes, single use verification tickets with an
// expiry, the monotonic verified flag, login throttling and signed session
// tokens. Verification emails are delivered through an authgate.VerificationDispatcher,
// normally a LinkIssuer, so the same issuance path serves the account creation
// hook and on demand requests.
package local
