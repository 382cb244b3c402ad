package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.PaystackConfig{
		SecretKey: "sk_test_123",
		BaseURL:   srv.URL,
		Timeout:   2 * time.Second,
	}, zap.NewNop())
}

func TestInitializeSendsMinorUnits(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk_test_123" {
			t.Errorf("Authorization: got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"ECOM1"}}`))
	})

	res, err := c.Initialize(context.Background(), InitializeRequest{
		Email:     "ada@example.com",
		Amount:    60000,
		Reference: "ECOM1",
		Metadata:  Metadata{FullName: "Ada", Package: "Template", CouponCode: "LAUNCH50"},
		Channels:  DefaultChannels,
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got["amount"].(float64) != 6000000 {
		t.Errorf("amount: got %v, want 6000000 kobo", got["amount"])
	}
	md := got["metadata"].(map[string]any)
	if md["couponCode"] != "LAUNCH50" || md["package"] != "Template" {
		t.Errorf("metadata: got %v", md)
	}
	if res.Data.AuthorizationURL != "https://checkout.paystack.com/abc" {
		t.Errorf("AuthorizationURL: got %q", res.Data.AuthorizationURL)
	}
	if len(res.Raw) == 0 {
		t.Error("expected raw payload")
	}
}

func TestVerifyConvertsToMajorUnits(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ECOM1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"reference":"ECOM1","status":"success","amount":6000050,"fees":9000,"paid_at":"2026-01-02T03:04:05Z","metadata":{"couponCode":"LAUNCH50"},"customer":{"email":"ada@example.com","customer_code":"CUS_1"}}}`))
	})

	v, err := c.Verify(context.Background(), "ECOM1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !v.Data.Succeeded() {
		t.Errorf("expected success, got %q", v.Data.Status)
	}
	if v.Data.Amount.String() != "60000.5" {
		t.Errorf("Amount: got %s", v.Data.Amount)
	}
	if v.Data.Metadata.CouponCode != "LAUNCH50" {
		t.Errorf("CouponCode: got %q", v.Data.Metadata.CouponCode)
	}
	if v.Data.PaidAt == nil || v.Data.PaidAt.Year() != 2026 {
		t.Errorf("PaidAt: got %v", v.Data.PaidAt)
	}
}

func TestVerifyToleratesEmptyMetadata(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":true,"message":"ok","data":{"reference":"R","status":"abandoned","amount":100,"metadata":""}}`))
	})

	v, err := c.Verify(context.Background(), "R")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.Data.Succeeded() || v.Data.Metadata.CouponCode != "" {
		t.Errorf("unexpected transaction: %+v", v.Data)
	}
}

func TestGatewayErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"upstream 400", http.StatusBadRequest, `{"status":false,"message":"Transaction reference not found"}`, 400, "Transaction reference not found"},
		{"status false on 200", http.StatusOK, `{"status":false,"message":"Invalid key"}`, 200, "Invalid key"},
		{"garbage body", http.StatusInternalServerError, `<html>`, 500, "Failed to verify payment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Verify(context.Background(), "R")
			var ext *apperr.ExternalServiceError
			if !errors.As(err, &ext) {
				t.Fatalf("expected ExternalServiceError, got %v", err)
			}
			if ext.StatusCode != tt.wantStatus || ext.Message != tt.wantMsg {
				t.Errorf("got status=%d msg=%q", ext.StatusCode, ext.Message)
			}
		})
	}
}

func TestMissingSecretKey(t *testing.T) {
	c := NewClient(config.PaystackConfig{BaseURL: "http://unused"}, zap.NewNop())

	if _, err := c.Verify(context.Background(), "R"); !apperr.IsConfiguration(err) {
		t.Errorf("Verify: expected ConfigurationError, got %v", err)
	}
	if _, err := c.ValidSignature([]byte("{}"), "abc"); !apperr.IsConfiguration(err) {
		t.Errorf("ValidSignature: expected ConfigurationError, got %v", err)
	}
}

func TestValidSignature(t *testing.T) {
	c := NewClient(config.PaystackConfig{SecretKey: "sk_test_123"}, zap.NewNop())
	body := []byte(`{"event":"charge.success","data":{"reference":"R1"}}`)

	ok, err := c.ValidSignature(body, Sign("sk_test_123", body))
	if err != nil || !ok {
		t.Fatalf("expected valid signature, ok=%v err=%v", ok, err)
	}
	if ok, _ := c.ValidSignature(body, Sign("other", body)); ok {
		t.Error("signature under another key accepted")
	}
	if ok, _ := c.ValidSignature(body, ""); ok {
		t.Error("empty signature accepted")
	}
}

func TestUnreachableGateway(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(config.PaystackConfig{SecretKey: "sk", BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())

	_, err := c.Verify(context.Background(), "R")
	if !apperr.IsExternal(err) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
	if apperr.HTTPStatus(err) != http.StatusBadGateway {
		t.Errorf("HTTPStatus: got %d", apperr.HTTPStatus(err))
	}
}
