package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"gm-occasions/internal/config"
	"gm-occasions/internal/logger"
)

const resendEndpoint = "https://api.resend.com/emails"

var ErrMissingRecipient = errors.New("missing recipient email")

// ResendClient delivers email through the Resend REST API.
type ResendClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
	log      *logger.Logger
}

func NewResendClient(cfg config.EmailConfig, client *http.Client, log *logger.Logger) *ResendClient {
	if client == nil {
		client = &http.Client{}
	}
	return &ResendClient{
		apiKey:   cfg.ResendAPIKey,
		endpoint: resendEndpoint,
		client:   client,
		log:      log,
	}
}

type resendEmail struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	ReplyTo string `json:"reply_to,omitempty"`
}

type resendResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// Send delivers a single rendered email. Returns the provider message ID.
func (c *ResendClient) Send(ctx context.Context, email resendEmail) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("RESEND_API_KEY is not configured")
	}
	if email.To == "" {
		return "", ErrMissingRecipient
	}

	payload, err := json.Marshal(email)
	if err != nil {
		return "", fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var result resendResponse
	_ = json.Unmarshal(raw, &result)

	if resp.StatusCode >= 300 {
		detail := result.Message
		if result.Error != nil && result.Error.Message != "" {
			detail = result.Error.Message
		}
		if detail == "" {
			detail = string(raw)
		}
		c.log.Error("EMAIL", fmt.Sprintf("resend returned %d: %s", resp.StatusCode, detail))
		return "", fmt.Errorf("email provider returned %d: %s", resp.StatusCode, detail)
	}

	c.log.Info("EMAIL", fmt.Sprintf("sent %s to %s (id %s)", email.Subject, email.To, result.ID))
	return result.ID, nil
}
