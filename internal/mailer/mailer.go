package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/config"
)

// Dialer sends prepared messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer notifies sellers about their listings.
type SMTPMailer struct {
	from   string
	dialer Dialer
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// NewWithDialer builds a mailer on a custom transport.
func NewWithDialer(from string, d Dialer) *SMTPMailer {
	return &SMTPMailer{from: from, dialer: d}
}

func (m *SMTPMailer) SendListingCreatedEmail(toEmail, listingName string) error {
	if toEmail == "" {
		return fmt.Errorf("mailer: empty recipient")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", toEmail)
	msg.SetHeader("Subject", "New Listing Created")
	msg.SetBody("text/plain", "Your listing '"+listingName+"' has been created successfully.")

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", toEmail, err)
	}
	return nil
}
