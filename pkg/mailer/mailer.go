package mailer

import (
	"fmt"

	"socialplane/pkg/config"

	"go.uber.org/fx"
	"gopkg.in/gomail.v2"
)

// Sender delivers a single HTML email. The notifier depends on this
// interface so tests never open an SMTP connection.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

var Module = fx.Module("mailer",
	fx.Provide(
		fx.Annotate(NewSMTPSender, fx.As(new(Sender))),
	),
)

type SMTPSender struct {
	dialer    *gomail.Dialer
	fromName  string
	fromEmail string
}

func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{
		dialer:    gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password),
		fromName:  cfg.SMTP.FromName,
		fromEmail: cfg.SMTP.FromEmail,
	}
}

func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	return s.dialer.DialAndSend(msg)
}
