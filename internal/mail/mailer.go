// Package mail delivers OTP mail over SMTP.
package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/iliyamo/blog-auth-service/internal/config"
)

// Mailer sends transactional mail through a single SMTP endpoint. An
// empty host leaves it unconfigured; callers check Configured before
// relying on delivery.
type Mailer struct {
	host    string
	port    int
	user    string
	pass    string
	from    string
	timeout time.Duration
}

// New builds a Mailer from config. It never fails: an unconfigured
// mailer is a valid state the OTP flow reports as unavailable.
func New(cfg config.Config) *Mailer {
	return &Mailer{
		host:    cfg.SMTPHost,
		port:    cfg.SMTPPort,
		user:    cfg.SMTPUser,
		pass:    cfg.SMTPPass,
		from:    cfg.MailFrom,
		timeout: cfg.MailTimeout,
	}
}

// Configured reports whether the transport has a host and a From
// address to send with.
func (m *Mailer) Configured() bool {
	return m.host != "" && m.from != ""
}

// Send delivers one message with a plain-text body and an HTML
// alternative. The configured timeout bounds the dial and the send, on
// top of whatever deadline ctx already carries.
func (m *Mailer) Send(ctx context.Context, to, subject, text, html string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, text)
	msg.AddAlternativeString(gomail.TypeTextHTML, html)

	opts := []gomail.Option{
		gomail.WithPort(m.port),
		gomail.WithTimeout(m.timeout),
	}
	if m.user != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.user),
			gomail.WithPassword(m.pass),
		)
	}
	client, err := gomail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("mail client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail send: %w", err)
	}
	return nil
}
