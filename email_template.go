package authgate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

const verificationEmailTemplate = `<div style="font-family: Arial, sans-serif; line-height: 1.6; color: #111;">
  <h2>Verify your email</h2>
  <p>{% if name %}Hi {{ name }},{% else %}Hi,{% endif %}</p>
  <p>Thanks for signing up for {{ product }}. Please confirm your email address by clicking the button below.</p>
  <p><a href="{{ link }}" style="display: inline-block; padding: 10px 16px; background: #111; color: #fff; border-radius: 6px; text-decoration: none;">Verify Email</a></p>
  <p>If the button does not work, copy and paste this link into your browser:</p>
  <p><code>{{ link }}</code></p>
  <p>If you did not create an account, you can ignore this email.</p>
</div>`

const passwordResetEmailTemplate = `<div style="font-family: Arial, sans-serif; line-height: 1.6; color: #111;">
  <h2>Reset your password</h2>
  <p>{% if name %}Hi {{ name }},{% else %}Hi,{% endif %}</p>
  <p>We received a request to reset the password for your {{ product }} account.</p>
  <p><a href="{{ link }}" style="display: inline-block; padding: 10px 16px; background: #111; color: #fff; border-radius: 6px; text-decoration: none;">Reset Password</a></p>
  <p>If the button does not work, copy and paste this link into your browser:</p>
  <p><code>{{ link }}</code></p>
  <p>If you did not ask for a reset, you can ignore this email.</p>
</div>`

var (
	resetTplOnce sync.Once
	resetTpl     *pongo2.Template
	resetTplErr  error

	verificationTplOnce sync.Once
	verificationTpl     *pongo2.Template
	verificationTplErr  error
)

// VerificationSubject is the fixed subject line for verification emails.
func VerificationSubject(product string) string {
	return fmt.Sprintf("Verify your email for %s", product)
}

// RenderVerificationEmail renders the HTML body embedding link. The greeting
// uses displayName when present.
func RenderVerificationEmail(product, link, displayName string) (string, error) {
	verificationTplOnce.Do(func() {
		verificationTpl, verificationTplErr = pongo2.FromString(verificationEmailTemplate)
	})
	if verificationTplErr != nil {
		return "", verificationTplErr
	}

	return verificationTpl.Execute(pongo2.Context{
		"name":    strings.TrimSpace(displayName),
		"product": product,
		"link":    link,
	})
}

// PasswordResetSubject is the subject line for password reset emails.
func PasswordResetSubject(product string) string {
	return fmt.Sprintf("Reset your %s password", product)
}

// RenderPasswordResetEmail renders the HTML body for a reset link.
func RenderPasswordResetEmail(product, link, displayName string) (string, error) {
	resetTplOnce.Do(func() {
		resetTpl, resetTplErr = pongo2.FromString(passwordResetEmailTemplate)
	})
	if resetTplErr != nil {
		return "", resetTplErr
	}

	return resetTpl.Execute(pongo2.Context{
		"name":    strings.TrimSpace(displayName),
		"product": product,
		"link":    link,
	})
}
