// Package auth0 adapts an Auth0 tenant to authgate.IdentityProvider.
//
// Sign up and password login go through the Authentication API against a
// database connection. Verification links are Auth0 email verification
// tickets minted through the Management API, so they can be delivered by an
// authgate.LinkIssuer with the product's own template.
//
// Auth0 does not tell an unknown email apart from a wrong password on login.
// Both map to authgate.CodeWrongPassword, so the Controller shows the
// incorrect password message where the local provider would report that no
// account exists.
package auth0
