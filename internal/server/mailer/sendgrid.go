package mailer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/accountkeeper/internal/netx"
)

const DefaultSendGridURL = "https://api.sendgrid.com/v3/"

// SendGrid sends through the SendGrid v3 mail/send endpoint, which answers
// 202 with an empty body on success.
type SendGrid struct {
	client *http.Client
	url    string
	token  string
	from   Address
}

type sendGridPersonalization struct {
	To []Address `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             Address                   `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// NewSendGrid builds a SendGrid sender. An apiURL that is empty or points at
// Mailtrap falls back to DefaultSendGridURL.
func NewSendGrid(client *http.Client, apiURL, token string, from Address) *SendGrid {
	if apiURL == "" || strings.Contains(apiURL, "mailtrap.io") {
		apiURL = DefaultSendGridURL
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	return &SendGrid{client: client, url: apiURL + "mail/send", token: token, from: from}
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	req := sendGridRequest{
		Personalizations: []sendGridPersonalization{{To: []Address{{Email: msg.To}}}},
		From:             s.from,
		Subject:          msg.Subject,
		Content:          []sendGridContent{{Type: "text/plain", Value: msg.Text}},
	}

	headers := map[string]string{"Authorization": "Bearer " + s.token}
	if err := netx.PostJSON(ctx, s.client, s.url, headers, req, nil); err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	return nil
}
