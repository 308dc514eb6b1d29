package authgate_test

import (
	"strings"
	"testing"

	authgate "github.com/goliatone/go-auth-gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

func TestRenderVerificationEmail(t *testing.T) {
	link := "https://auth.example.com/verify?token=abc123"

	html, err := authgate.RenderVerificationEmail("Keeps", link, "Ada")
	require.NoError(t, err)

	assert.Contains(t, html, "Hi Ada,")
	assert.Contains(t, html, "Verify Email")
	assert.Contains(t, html, `href="`+link+`"`)
	assert.Contains(t, html, "<code>"+link+"</code>")
	assert.Contains(t, html, "Keeps")
}

func TestRenderVerificationEmailWithoutName(t *testing.T) {
	html, err := authgate.RenderVerificationEmail("Keeps", "https://x/verify?token=1", "  ")
	require.NoError(t, err)

	assert.Contains(t, html, "<p>Hi,</p>")
}

func TestRenderVerificationEmailEscapesName(t *testing.T) {
	html, err := authgate.RenderVerificationEmail("Keeps", "https://x/verify?token=1", "<script>")
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestVerificationSubject(t *testing.T) {
	assert.Equal(t, "Verify your email for Keeps", authgate.VerificationSubject("Keeps"))
}

func TestRenderPasswordResetEmail(t *testing.T) {
	link := "https://auth.example.com/password-reset?token=xyz"

	html, err := authgate.RenderPasswordResetEmail("Keeps", link, "")
	require.NoError(t, err)

	assert.True(t, containsAll(html, "Reset Password", "<p>Hi,</p>", `href="`+link+`"`, "Keeps"))
	assert.Equal(t, "Reset your Keeps password", authgate.PasswordResetSubject("Keeps"))
}
