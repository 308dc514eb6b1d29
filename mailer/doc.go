// Package mailer provides authgate.EmailSender transports and the password
// reset notifier used by the local provider.
package mailer
