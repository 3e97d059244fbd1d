package mail

import (
	"context"
	"fmt"

	"campusbook/internal/config"

	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"
)

// SMTPMailer delivers messages through a plain SMTP relay. A dialer is cheap
// to keep around; connections are opened per send, which matches the low mail
// volume of an approval workflow.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zerolog.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *zerolog.Logger) *SMTPMailer {
	childLogger := logger.With().Str("component", "mailer").Logger()
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: &childLogger,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}

	m.logger.Debug().Str("to", to).Str("subject", subject).Msg("Mail sent")
	return nil
}
