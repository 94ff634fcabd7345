package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/accountkeeper/internal/netx"
)

// Mailtrap sends through the Mailtrap send API. In sandbox mode mail lands
// in the configured testing inbox instead of being delivered.
type Mailtrap struct {
	client *http.Client
	url    string
	token  string
	from   Address
}

type mailtrapRequest struct {
	To      []Address `json:"to"`
	From    Address   `json:"from"`
	Subject string    `json:"subject"`
	Text    string    `json:"text"`
}

type mailtrapResponse struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

func NewMailtrap(client *http.Client, apiURL, token, mode, inbox string, from Address) (*Mailtrap, error) {
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}

	var url string
	switch mode {
	case ModeSandbox:
		if inbox == "" {
			return nil, errors.New("mailtrap sandbox mode needs an inbox id")
		}
		url = apiURL + "send/" + inbox
	case ModeProduction:
		url = apiURL + "send"
	default:
		return nil, fmt.Errorf("unknown email mode %q", mode)
	}

	return &Mailtrap{client: client, url: url, token: token, from: from}, nil
}

func (m *Mailtrap) Send(ctx context.Context, msg Message) error {
	req := mailtrapRequest{
		To:      []Address{{Email: msg.To}},
		From:    m.from,
		Subject: msg.Subject,
		Text:    msg.Text,
	}

	var resp mailtrapResponse
	if err := netx.PostJSON(ctx, m.client, m.url, map[string]string{"Api-Token": m.token}, req, &resp); err != nil {
		return fmt.Errorf("mailtrap: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("mailtrap: not accepted: %s", strings.Join(resp.Errors, "; "))
	}
	return nil
}
