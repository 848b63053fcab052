// Package mailer delivers transactional email.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"resume-insight/internal/shared/telemetry"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig addresses an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay using PLAIN auth when credentials are set.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return errors.New("mail header contains a line break")
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	start := time.Now()
	if err := m.send(addr, auth, m.cfg.From, []string{msg.To}, m.render(msg)); err != nil {
		telemetry.Error("mail.send_failed", map[string]any{
			"to":      msg.To,
			"subject": msg.Subject,
			"error":   err.Error(),
		})
		return errors.Wrap(err, "send mail")
	}
	telemetry.Info("mail.sent", map[string]any{
		"to":          msg.To,
		"subject":     msg.Subject,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func (m *SMTPMailer) render(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogMailer writes messages to the log instead of sending them. Used when SMTP is not configured.
// Bodies carry one-time codes, so they are logged only when IncludeBody is set.
type LogMailer struct {
	IncludeBody bool
}

func (l LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fields := map[string]any{
		"to":         msg.To,
		"subject":    msg.Subject,
		"body_bytes": len(msg.Body),
	}
	if l.IncludeBody {
		fields["body"] = msg.Body
	}
	telemetry.Info("mail.logged", fields)
	return nil
}
