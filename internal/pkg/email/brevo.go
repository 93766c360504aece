package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/applysmartuk/statement_server/config"
)

// BrevoSender 通过 Brevo 事务邮件 API 发送
type BrevoSender struct {
	apiKey   string
	baseURL  string
	from     string
	fromName string
	client   *http.Client
}

func NewBrevoSender(cfg *config.EmailConfig) *BrevoSender {
	baseURL := cfg.BrevoBaseURL
	if baseURL == "" {
		baseURL = "https://api.brevo.com/v3"
	}
	return &BrevoSender{
		apiKey:   cfg.BrevoAPIKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		from:     cfg.From,
		fromName: cfg.FromName,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	TextContent string         `json:"textContent"`
}

func (s *BrevoSender) Send(ctx context.Context, msg *Message) error {
	payload, err := json.Marshal(brevoRequest{
		Sender:      brevoContact{Email: s.from, Name: s.fromName},
		To:          []brevoContact{{Email: msg.To}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		TextContent: msg.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal brevo request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/smtp/email", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("brevo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("brevo returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
