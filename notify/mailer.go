// Package notify delivers the matrix digest by email and push notification.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/wneessen/go-mail"
)

// CalendarContentType is the MIME type of attached trip exports.
const CalendarContentType = mail.ContentType("text/calendar")

// Email is one outgoing HTML message.
type Email struct {
	Subject     string
	HTML        string
	Attachments []string
}

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
	Timeout  time.Duration
}

// SMTPMailer sends messages through an authenticated STARTTLS relay.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer validates cfg and returns a mailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("notify: smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("notify: invalid smtp port %d", cfg.Port)
	}
	if cfg.From == "" || cfg.To == "" {
		return nil, errors.New("notify: sender and receiver are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// Message builds the MIME message for e without sending it.
func (m *SMTPMailer) Message(e *Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("notify: from address: %w", err)
	}
	if err := msg.To(m.cfg.To); err != nil {
		return nil, fmt.Errorf("notify: to address: %w", err)
	}
	msg.Subject(e.Subject)
	msg.SetBodyString(mail.TypeTextHTML, e.HTML)
	for _, path := range e.Attachments {
		msg.AttachFile(path,
			mail.WithFileName(filepath.Base(path)),
			mail.WithFileContentType(CalendarContentType),
		)
	}
	return msg, nil
}

// Send dials the relay and delivers e.
func (m *SMTPMailer) Send(ctx context.Context, e *Email) error {
	msg, err := m.Message(e)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTimeout(m.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("notify: smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: send email: %w", err)
	}
	return nil
}

// ErrNotSent is returned by mailers that accept a message without
// delivering it.
var ErrNotSent = errors.New("notify: email not sent")

// LogMailer logs the email instead of sending it. Used for dry runs and
// when no SMTP credentials are configured.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs the subject and attachment names and returns ErrNotSent.
func (l LogMailer) Send(_ context.Context, e *Email) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	names := make([]string, 0, len(e.Attachments))
	for _, a := range e.Attachments {
		names = append(names, filepath.Base(a))
	}
	logger.Info("email skipped",
		"subject", e.Subject,
		"attachments", names,
		"html_bytes", len(e.HTML),
	)
	return ErrNotSent
}
