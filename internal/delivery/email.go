package delivery

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/mail.v2"
)

// RunHeader carries the export run id on every email.
const RunHeader = "X-Export-Run"

// MailSender sends composed messages. *mail.Dialer implements it.
type MailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPSettings configures NewDialer.
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
}

// NewDialer returns an SMTP dialer that does not retry failed sends; a run
// either delivers once or fails.
func NewDialer(s SMTPSettings) *mail.Dialer {
	d := mail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	d.RetryFailure = false
	return d
}

// Email sends documents as attachments.
type Email struct {
	Sender     MailSender
	From       string
	Recipients []string
	Subject    string

	// RunID is sent in the RunHeader header when set.
	RunID string

	Logger *log.Logger
}

// Deliver composes and sends the message. Text documents are also used as
// the message body.
func (e *Email) Deliver(ctx context.Context, doc Document) error {
	if len(e.Recipients) == 0 {
		return fmt.Errorf("failed to send export: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := e.Compose(doc)

	if err := e.Sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send export to %s: %w", strings.Join(e.Recipients, ", "), err)
	}

	if e.Logger != nil {
		e.Logger.Info("export sent",
			"to", strings.Join(e.Recipients, ", "),
			"subject", e.Subject,
			"attachment", doc.Name,
		)
	}

	return nil
}

// Compose builds the message for doc.
func (e *Email) Compose(doc Document) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", e.From)
	m.SetHeader("To", e.Recipients...)
	m.SetHeader("Subject", e.Subject)
	if e.RunID != "" {
		m.SetHeader(RunHeader, e.RunID)
	}

	if strings.HasPrefix(doc.ContentType, "text/") {
		m.SetBody("text/plain", string(doc.Content))
	} else {
		m.SetBody("text/plain", doc.Name)
	}

	m.AttachReader(doc.Name, bytes.NewReader(doc.Content), mail.SetHeader(map[string][]string{
		"Content-Type": {doc.ContentType},
	}))

	return m
}
