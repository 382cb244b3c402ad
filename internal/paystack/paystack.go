// Package paystack is a small client for the Paystack transaction API.
//
// Amounts cross this package boundary in major units (naira). The client
// converts to kobo on the way out and back to naira on the way in; nothing
// else in the module deals with minor units.
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/config"
	"github.com/kkkkikiki/checkout/internal/metrics"
)

const serviceName = "paystack"

// Transaction statuses reported by verify.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// DefaultChannels are the payment channels offered at checkout.
var DefaultChannels = []string{"card", "bank", "ussd", "bank_transfer"}

// Metadata is the structured bag attached to a transaction. Pricing fields
// are informational and recorded as sent by the checkout form.
type Metadata struct {
	FullName      string `json:"fullName,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Package       string `json:"package,omitempty"`
	CouponCode    string `json:"couponCode,omitempty"`
	OriginalPrice *int64 `json:"originalPrice,omitempty"`
	Discount      *int64 `json:"discount,omitempty"`
	FinalPrice    *int64 `json:"finalPrice,omitempty"`
}

// InitializeRequest starts a transaction. Amount is in naira.
type InitializeRequest struct {
	Email       string
	Amount      int64
	Reference   string
	CallbackURL string
	Metadata    Metadata
	Channels    []string
}

// Authorization is the checkout handle returned by initialize.
type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializeResponse is the gateway's initialize payload. Raw holds the body
// exactly as received.
type InitializeResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    Authorization   `json:"data"`
	Raw     json.RawMessage `json:"-"`
}

// Customer identifies the payer.
type Customer struct {
	Email string `json:"email"`
	Code  string `json:"customer_code"`
}

// Transaction is the verified state of a payment. Amount and Fees are in naira.
type Transaction struct {
	Reference string
	Status    string
	Amount    decimal.Decimal
	Fees      decimal.Decimal
	Metadata  Metadata
	PaidAt    *time.Time
	Customer  Customer
}

// Succeeded reports whether the gateway settled the payment.
func (t *Transaction) Succeeded() bool {
	return t.Status == StatusSuccess
}

// Verification is the gateway's verify payload. Raw holds the body exactly
// as received and is what API callers get back.
type Verification struct {
	Status  bool
	Message string
	Data    Transaction
	Raw     json.RawMessage
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type transactionWire struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    int64           `json:"amount"`
	Fees      int64           `json:"fees"`
	Metadata  json.RawMessage `json:"metadata"`
	PaidAt    *time.Time      `json:"paid_at"`
	Customer  Customer        `json:"customer"`
}

type initializeWire struct {
	Email       string   `json:"email"`
	Amount      int64    `json:"amount"`
	Reference   string   `json:"reference"`
	CallbackURL string   `json:"callback_url,omitempty"`
	Metadata    Metadata `json:"metadata"`
	Channels    []string `json:"channels,omitempty"`
}

// Client calls the Paystack REST API.
type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client with an explicit request timeout.
func NewClient(cfg config.PaystackConfig, logger *zap.Logger) *Client {
	return &Client{
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("paystack"),
	}
}

// Configured reports whether a secret key is set.
func (c *Client) Configured() bool {
	return c.secretKey != ""
}

// ToMinor converts naira to kobo.
func ToMinor(amount int64) int64 {
	return amount * 100
}

// FromMinor converts kobo to naira.
func FromMinor(kobo int64) decimal.Decimal {
	return decimal.New(kobo, -2)
}

// Initialize creates a transaction and returns the checkout authorization.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	body, err := json.Marshal(initializeWire{
		Email:       req.Email,
		Amount:      ToMinor(req.Amount),
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
		Channels:    req.Channels,
	})
	if err != nil {
		return nil, fmt.Errorf("paystack: encode initialize request: %w", err)
	}

	raw, env, err := c.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", body,
		"Failed to initialize payment")
	if err != nil {
		return nil, err
	}

	res := &InitializeResponse{Status: env.Status, Message: env.Message, Raw: raw}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &res.Data); err != nil {
			return nil, fmt.Errorf("paystack: decode initialize data: %w", err)
		}
	}
	return res, nil
}

// Verify fetches the current state of the transaction identified by reference.
func (c *Client) Verify(ctx context.Context, reference string) (*Verification, error) {
	raw, env, err := c.do(ctx, "verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil,
		"Failed to verify payment")
	if err != nil {
		return nil, err
	}

	var wire transactionWire
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &wire); err != nil {
			return nil, fmt.Errorf("paystack: decode verify data: %w", err)
		}
	}

	return &Verification{
		Status:  env.Status,
		Message: env.Message,
		Raw:     raw,
		Data: Transaction{
			Reference: wire.Reference,
			Status:    wire.Status,
			Amount:    FromMinor(wire.Amount),
			Fees:      FromMinor(wire.Fees),
			Metadata:  decodeMetadata(wire.Metadata),
			PaidAt:    wire.PaidAt,
			Customer:  wire.Customer,
		},
	}, nil
}

// ValidSignature reports whether signature is the hex HMAC-SHA512 of body
// under the secret key.
func (c *Client) ValidSignature(body []byte, signature string) (bool, error) {
	if c.secretKey == "" {
		return false, &apperr.ConfigurationError{Key: "PAYSTACK_SECRET_KEY"}
	}
	if signature == "" {
		return false, nil
	}
	expected := Sign(c.secretKey, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))), nil
}

// Sign returns the hex HMAC-SHA512 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, fallback string) (json.RawMessage, *envelope, error) {
	if c.secretKey == "" {
		return nil, nil, &apperr.ConfigurationError{Key: "PAYSTACK_SECRET_KEY"}
	}

	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.RecordGatewayCall(op, outcome, time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("paystack: build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("gateway call failed", zap.String("operation", op), zap.Error(err))
		return nil, nil, &apperr.ExternalServiceError{Service: serviceName, Message: fallback, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &apperr.ExternalServiceError{Service: serviceName, StatusCode: resp.StatusCode, Message: fallback, Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || decodeErr != nil || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = fallback
		}
		c.logger.Warn("gateway rejected request",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
		)
		outcome = "rejected"
		return nil, nil, &apperr.ExternalServiceError{Service: serviceName, StatusCode: resp.StatusCode, Message: msg, Err: decodeErr}
	}

	outcome = "ok"
	return raw, &env, nil
}

// decodeMetadata tolerates the empty string and other non-object values
// Paystack returns when a transaction carries no metadata.
func decodeMetadata(raw json.RawMessage) Metadata {
	var md Metadata
	if len(raw) == 0 || raw[0] != '{' {
		return md
	}
	_ = json.Unmarshal(raw, &md)
	return md
}
