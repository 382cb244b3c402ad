// Package notify renders and sends transactional email.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/config"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers a message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type zeptoAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type zeptoRecipient struct {
	EmailAddress zeptoAddress `json:"email_address"`
}

type zeptoRequest struct {
	From     zeptoAddress     `json:"from"`
	To       []zeptoRecipient `json:"to"`
	Subject  string           `json:"subject"`
	HTMLBody string           `json:"htmlbody"`
}

type zeptoResponse struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}

// Zeptomail sends mail through the Zeptomail HTTP API.
type Zeptomail struct {
	token      string
	baseURL    string
	from       zeptoAddress
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Mailer = (*Zeptomail)(nil)

// NewZeptomail creates a Zeptomail client.
func NewZeptomail(cfg config.MailConfig, logger *zap.Logger) *Zeptomail {
	return &Zeptomail{
		token:      cfg.APIToken,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		from:       zeptoAddress{Address: cfg.FromEmail, Name: cfg.FromName},
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("zeptomail"),
	}
}

// Send posts msg to /v1.1/email.
func (z *Zeptomail) Send(ctx context.Context, msg Message) (string, error) {
	if z.token == "" {
		return "", &apperr.ConfigurationError{Key: "MAIL_API_TOKEN"}
	}

	body, err := json.Marshal(zeptoRequest{
		From:     z.from,
		To:       []zeptoRecipient{{EmailAddress: zeptoAddress{Address: msg.To}}},
		Subject:  msg.Subject,
		HTMLBody: msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("zeptomail: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.baseURL+"/v1.1/email", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("zeptomail: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", z.token)

	resp, err := z.httpClient.Do(req)
	if err != nil {
		return "", &apperr.ExternalServiceError{Service: "zeptomail", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &apperr.ExternalServiceError{
			Service:    "zeptomail",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
		}
	}

	var out zeptoResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &apperr.ExternalServiceError{Service: "zeptomail", StatusCode: resp.StatusCode, Err: err}
	}
	z.logger.Debug("email accepted", zap.String("to", msg.To), zap.String("request_id", out.RequestID))
	return out.RequestID, nil
}
