package notifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

// SMTPConfig holds the outbound mail transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer implements Mailer over gomail. Each Send dials a fresh
// connection; alert volume is one email per matched user per event, so
// connection reuse isn't worth the state.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer builds an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers one plain-text message.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send aborted: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp dial and send: %w", err)
	}
	return nil
}

// LogMailer implements Mailer by logging the message instead of delivering
// it. Used when no SMTP host is configured.
type LogMailer struct {
	Logger *zap.Logger
}

// Send logs the message and reports success.
func (m LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.Logger.Info("mail delivery skipped, no SMTP host configured",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}
