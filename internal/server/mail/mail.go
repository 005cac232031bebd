// Package mail delivers the "new password" notification sent after
// registration, admin creation and password reset.
package mail

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/userportal/internal/common"
	"gopkg.in/gomail.v2"
)

const (
	Subject    = "User Portal - New Password"
	senderName = "User Portal"
)

// Sender delivers password notifications. Errors wrap common.ErrMailDelivery.
type Sender interface {
	SendNewPassword(ctx context.Context, firstName, password, email string) error
}

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// dialAndSend is a seam so tests can capture messages without an SMTP server.
var dialAndSend = func(d *gomail.Dialer, m ...*gomail.Message) error {
	return d.DialAndSend(m...)
}

// SMTPSender sends mail through gomail. Port 465 implies implicit TLS.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func newPasswordBody(firstName, password string) string {
	return fmt.Sprintf("Hello %s,\n\nYour new account password is: %s\n\nThe Support Team", firstName, password)
}

func (s *SMTPSender) SendNewPassword(ctx context.Context, firstName, password, email string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrMailDelivery, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.From, senderName))
	m.SetHeader("To", email)
	m.SetHeader("Subject", Subject)
	m.SetBody("text/plain", newPasswordBody(firstName, password))

	if err := dialAndSend(s.dialer, m); err != nil {
		return fmt.Errorf("%w: %w", common.ErrMailDelivery, err)
	}
	return nil
}

// Nop discards messages. It is used when no SMTP host is configured.
type Nop struct{}

func (Nop) SendNewPassword(context.Context, string, string, string) error { return nil }
