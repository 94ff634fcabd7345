// Package mailer delivers transactional email through an HTTP email API.
// Mailtrap (sandbox or production) and SendGrid are supported.
package mailer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/server/config"
)

const (
	ProviderMailtrap = "mailtrap"
	ProviderSendGrid = "sendgrid"

	ModeSandbox    = "sandbox"
	ModeProduction = "production"
)

// Message is a plain-text email to a single recipient.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender delivers a Message. A nil error means the provider accepted it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 10 * time.Second

// New returns the Sender selected by cfg.EmailProvider. A nil client gets
// one with DefaultTimeout.
func New(cfg *config.Config, client *http.Client) (Sender, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	switch cfg.EmailProvider {
	case ProviderMailtrap, "":
		return NewMailtrap(client, cfg.EmailAPIURL, cfg.EmailHostToken, cfg.EmailMode, cfg.EmailSandboxInbox,
			Address{Email: cfg.EmailHostSender, Name: cfg.EmailSenderName})
	case ProviderSendGrid:
		return NewSendGrid(client, cfg.EmailAPIURL, cfg.EmailHostToken,
			Address{Email: cfg.EmailHostSender, Name: cfg.EmailSenderName}), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.EmailProvider)
	}
}

// Address is an email address with an optional display name.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
