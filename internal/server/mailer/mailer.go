// Package mailer renders and delivers transactional HTML email.
package mailer

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/xtouch/internal/logging"
)

// Message is a single HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer logs messages instead of sending them. It is used when no SMTP
// host is configured.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log.With("module", "mailer")}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.log.Info(ctx, "email not sent, smtp disabled", "to", msg.To, "subject", msg.Subject)
	return nil
}

// headerSafe drops CR and LF so user-supplied values cannot inject headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
