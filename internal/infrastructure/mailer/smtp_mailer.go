package mailer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/bivex/subscription-renewals/internal/infrastructure/config"
)

// ErrNoRecipient is returned when an email has no To address
var ErrNoRecipient = errors.New("email has no recipient")

// Email is a rendered message ready for delivery
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer delivers rendered emails
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type dialAndSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	sender   dialAndSender
	from     string
	fromName string
	logger   *zap.Logger
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer from the SMTP config section
func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return newSMTPMailer(d, cfg.From, cfg.FromName, logger)
}

func newSMTPMailer(sender dialAndSender, from, fromName string, logger *zap.Logger) *SMTPMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPMailer{sender: sender, from: from, fromName: fromName, logger: logger}
}

// Send builds a multipart message with a plain text part and an optional HTML alternative
func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, m.fromName)
	msg.SetHeader("To", email.To)
	msg.SetHeader("Subject", email.Subject)
	msg.SetBody("text/plain", email.TextBody)
	if email.HTMLBody != "" {
		msg.AddAlternative("text/html", email.HTMLBody)
	}

	if err := m.sender.DialAndSend(msg); err != nil {
		m.logger.Warn("failed to send email", zap.String("to", email.To), zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Debug("email sent", zap.String("to", email.To), zap.String("subject", email.Subject))
	return nil
}
