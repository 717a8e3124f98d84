// Package notifier composes the activity report into an e-mail message and
// submits it over SMTP.
package notifier

import (
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/spiffcs/reponews/config"
	"github.com/spiffcs/reponews/internal/log"
)

// ErrDelivery marks a failure to hand the report off to the mail server.
// Callers must not persist new state after seeing it: the next run has to
// re-report everything the lost message contained.
var ErrDelivery = errors.New("report delivery failed")

// Message is a composed report ready for submission.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Compose builds the report message from config and the rendered body. The
// sender defaults to the recipient when unset, matching what most
// submission servers accept for self-addressed notification mail.
func Compose(cfg *config.Config, body string) (Message, error) {
	if cfg.Recipient == "" {
		return Message{}, fmt.Errorf("no recipient configured: set recipient in the config file")
	}
	from := cfg.Sender
	if from == "" {
		from = cfg.Recipient
	}
	return Message{
		From:    from,
		To:      cfg.Recipient,
		Subject: cfg.Subject,
		Body:    body,
	}, nil
}

// Encode renders the message as an RFC 5322 document with a
// quoted-printable UTF-8 text body.
func (m Message) Encode() (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", m.From)
	fmt.Fprintf(&sb, "To: %s\r\n", m.To)
	fmt.Fprintf(&sb, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&sb, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	sb.WriteString("\r\n")
	qp := quotedprintable.NewWriter(&sb)
	if _, err := qp.Write([]byte(m.Body)); err != nil {
		return "", fmt.Errorf("failed to encode message body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return "", fmt.Errorf("failed to encode message body: %w", err)
	}
	return sb.String(), nil
}

// Mailer submits messages to a single SMTP server.
type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	StartTLS bool
}

// NewMailer builds a Mailer from the smtp config section.
func NewMailer(cfg config.SMTPConfig) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("no SMTP server configured: set smtp.host in the config file")
	}
	return &Mailer{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		StartTLS: cfg.UseStartTLS(),
	}, nil
}

// Send submits the message. Every failure wraps ErrDelivery.
func (m *Mailer) Send(msg Message) error {
	encoded, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return fmt.Errorf("%w: invalid sender %q: %v", ErrDelivery, msg.From, err)
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("%w: invalid recipient %q: %v", ErrDelivery, msg.To, err)
	}

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	log.Debug("submitting report", "server", addr, "to", to.Address)
	if err := m.submit(addr, from.Address, to.Address, []byte(encoded)); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}

func (m *Mailer) submit(addr, from, to string, body []byte) error {
	c, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if m.StartTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return fmt.Errorf("server %s does not support STARTTLS", addr)
		}
		if err := c.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
			return err
		}
	}
	if m.Username != "" {
		auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
