package authgate

// Operation names a Controller operation. Message lookups are keyed on it.
type Operation string

const (
	OpSignUp        Operation = "signup"
	OpLogIn         Operation = "login"
	OpResend        Operation = "resend"
	OpRecheck       Operation = "recheck"
	OpPasswordReset Operation = "password_reset"
	OpSignOut       Operation = "signout"

	// OpPasswordResetConfirm is the server side step that sets the new
	// password. The Controller never runs it.
	OpPasswordResetConfirm Operation = "password_reset_confirm"
)

const (
	MsgEmailRequired      = "Please enter your email."
	MsgPasswordTooShort   = "Password must be at least 6 characters."
	MsgResendEmailMissing = "Enter your email above, then click Resend."
	MsgResetEmailMissing  = "Enter your email above, then click Forgot password."

	MsgSignUpSent         = "We sent a verification email. Please verify your email, then log in."
	MsgSignUpSendFailed   = "Could not send verification email. Check the email sender configuration and try Resend."
	MsgLoginUnverified    = "Your email isn't verified. Click 'Resend verification'. Then check your inbox/spam and use 'I verified, continue'."
	MsgDevBypass          = "[DEV] Email not verified, but bypass is enabled. Rebuild without the dev bypass tag for production."
	MsgResendSent         = "Verification email re-sent. Check your inbox (and spam)."
	MsgResendSendFailed   = "Could not resend verification email. Check the email sender configuration."
	MsgStillUnverified    = "Still not verified. Check your inbox or click Resend."
	MsgResetSent          = "Password reset email sent. Check your inbox."
	MsgOperationTimedOut  = "The request took too long. Try again."
	MsgOperationCancelled = "The request was cancelled."
)

var fallbackMessages = map[Operation]string{
	OpSignUp:        "Sign up failed. Try a different email or password.",
	OpLogIn:         "Login failed. Check email/password.",
	OpResend:        "Could not resend verification email. Try again later.",
	OpRecheck:       "Could not check verification. Try again.",
	OpPasswordReset: "Could not send reset email. Try again later.",
	OpSignOut:       "Sign out failed. Try again.",

	OpPasswordResetConfirm: "Could not reset your password. Request a new reset link.",
}

var operationMessages = map[Operation]map[ProviderCode]string{
	OpSignUp: {
		CodeEmailAlreadyInUse:   "That email is already registered. Try logging in.",
		CodeInvalidEmail:        "That email looks invalid.",
		CodeWeakPassword:        "Password must be at least 6 characters.",
		CodeOperationNotAllowed: "Email/Password sign up is disabled for this project. Enable it in the identity provider settings.",
		CodeTooManyRequests:     "Too many attempts. Please wait and try again.",
	},
	OpLogIn: {
		CodeUserNotFound:      "No account found for that email. Create an account first.",
		CodeWrongPassword:     "Incorrect password. Try again.",
		CodeInvalidEmail:      "That email looks invalid.",
		CodeTooManyRequests:   "Too many attempts. Please wait and try again.",
		CodeInvalidCredential: "This email may be registered with a different sign-in method (e.g., Google). Try that method.",
	},
	OpResend: {
		CodeUserNotFound:    "No account found for that email. Create an account first.",
		CodeWrongPassword:   "Password incorrect. Enter the same password you used when signing up.",
		CodeTooManyRequests: "Too many attempts. Please wait and try again.",
	},
	OpRecheck: {
		CodeTooManyRequests: "Too many attempts. Please wait and try again.",
	},
	OpPasswordReset: {
		CodeUserNotFound: "No account found for that email.",
	},
	OpPasswordResetConfirm: {
		CodeWeakPassword:    "Password must be at least 6 characters.",
		CodeUserNotFound:    "No account found for that reset link.",
		CodeTooManyRequests: "Too many attempts. Please wait and try again.",
	},
}

// MessageFor returns the user facing message for a provider failure during op.
// Unmapped codes fall back to the operation's generic retry message.
func MessageFor(op Operation, code ProviderCode) string {
	if msg, ok := operationMessages[op][code]; ok {
		return msg
	}
	if msg, ok := fallbackMessages[op]; ok {
		return msg
	}
	return "Something went wrong. Try again."
}
