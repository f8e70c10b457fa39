// Package notify holds the HTTP adapters for the email and push providers.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/familyboard/core/internal/infrastructure/config"
	"github.com/familyboard/core/internal/ports"
)

const emailSendPath = "/api/v1.0/email/send"

// EmailJSClient sends templated email through the EmailJS REST API.
type EmailJSClient struct {
	baseURL    string
	publicKey  string
	privateKey string
	http       *http.Client
}

var _ ports.EmailSender = (*EmailJSClient)(nil)

// NewEmailJSClient creates a client from the email configuration.
func NewEmailJSClient(cfg config.EmailConfig) *EmailJSClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EmailJSClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		publicKey:  cfg.PublicKey,
		privateKey: cfg.PrivateKey,
		http:       &http.Client{Timeout: timeout},
	}
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams ports.EmailParams `json:"template_params"`
}

// Send posts one email and returns the HTTP status reported by EmailJS.
func (c *EmailJSClient) Send(ctx context.Context, serviceID, templateID string, params ports.EmailParams) (int, error) {
	body, err := json.Marshal(emailJSRequest{
		ServiceID:      serviceID,
		TemplateID:     templateID,
		UserID:         c.publicKey,
		AccessToken:    c.privateKey,
		TemplateParams: params,
	})
	if err != nil {
		return 0, fmt.Errorf("encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+emailSendPath, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}
