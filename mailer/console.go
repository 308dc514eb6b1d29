package mailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	authgate "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-print"
)

// ConsoleSender writes messages to an io.Writer. Used in development when no
// email API key is available.
type ConsoleSender struct {
	mu  sync.Mutex
	out io.Writer
}

var _ authgate.EmailSender = (*ConsoleSender)(nil)

// NewConsoleSender creates a sender writing to out, or stdout when nil.
func NewConsoleSender(out io.Writer) *ConsoleSender {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSender{out: out}
}

// Send implements authgate.EmailSender.
func (s *ConsoleSender) Send(ctx context.Context, email authgate.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintln(s.out, print.MaybePrettyJSON(map[string]any{
		"to":      email.To,
		"from":    email.From,
		"subject": email.Subject,
		"html":    email.HTML,
	}))
	return err
}
