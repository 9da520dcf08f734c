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

	"github.com/dropDatabas3/verimail/internal/config"
	"github.com/dropDatabas3/verimail/internal/observability/logger"
)

// ResendSender implements Sender against the Resend transactional email API:
// a single authenticated POST /emails per delivery.
type ResendSender struct {
	APIKey  string
	BaseURL string
	From    string
	Client  *http.Client
}

// resendRequest matches the Resend send email API request body.
type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// NewResendSender builds a Resend backend from resolved configuration.
func NewResendSender(cfg *config.Config) *ResendSender {
	return &ResendSender{
		APIKey:  cfg.Resend.APIKey,
		BaseURL: strings.TrimRight(cfg.Resend.BaseURL, "/"),
		From:    cfg.Email.From,
		Client:  &http.Client{Timeout: cfg.Email.SendTimeout},
	}
}

func (s *ResendSender) Name() config.Provider { return config.ProviderResend }

// Send issues one authenticated request. Non-2xx responses and transport
// errors map to a plain error; the API key never appears in error text.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(resendRequest{
		From:    s.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("resend: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("resend: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("resend: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		logger.From(ctx).Debug("resend accepted message",
			logger.Component("ResendSender"),
			logger.Duration(time.Since(start)))
		return nil
	}

	// bounded slice of the body for diagnostics
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("resend: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}
