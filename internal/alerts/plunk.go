package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sudo-init-do/bazaar/internal/config"
)

const defaultPlunkURL = "https://api.useplunk.com/v1/send"

// PlunkMailer sends through the Plunk transactional API.
type PlunkMailer struct {
	apiKey  string
	apiURL  string
	from    string
	replyTo string
	client  *http.Client
}

func NewPlunkMailer(cfg config.MailConfig, client *http.Client) *PlunkMailer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	url := cfg.PlunkAPIURL
	if url == "" {
		url = defaultPlunkURL
	}
	return &PlunkMailer{apiKey: cfg.PlunkAPIKey, apiURL: url, from: cfg.From, replyTo: cfg.ReplyTo, client: client}
}

type plunkSendBody struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from,omitempty"`
	Reply   string `json:"reply,omitempty"`
}

func (p *PlunkMailer) Send(ctx context.Context, env EmailEnvelope) error {
	if p.apiKey == "" {
		return fmt.Errorf("plunk not configured: set PLUNK_API_KEY")
	}
	b, err := json.Marshal(plunkSendBody{
		To:      env.To,
		Subject: env.Subject,
		Body:    env.Body,
		From:    p.from,
		Reply:   p.replyTo,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if len(body) > 0 {
			return fmt.Errorf("plunk send failed: status=%d body=%s", resp.StatusCode, body)
		}
		return fmt.Errorf("plunk send failed: status=%d", resp.StatusCode)
	}
	return nil
}
