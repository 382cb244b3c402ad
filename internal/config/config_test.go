package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestProcessDefaults(t *testing.T) {
	cfg, err := Process(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got := cfg.Server.GetServerAddr(); got != "0.0.0.0:8080" {
		t.Errorf("server addr: got %q", got)
	}
	if cfg.Paystack.BaseURL != "https://api.paystack.co" {
		t.Errorf("paystack base url: got %q", cfg.Paystack.BaseURL)
	}
	if cfg.Paystack.Timeout != 15*time.Second {
		t.Errorf("paystack timeout: got %v", cfg.Paystack.Timeout)
	}
	if cfg.Referral.CommissionRate != 0.2 {
		t.Errorf("commission rate: got %v", cfg.Referral.CommissionRate)
	}
	if cfg.Paystack.SecretKey != "" || cfg.Admin.Key != "" {
		t.Error("secrets must not have defaults")
	}
	if !cfg.App.IsDevelopment() || cfg.App.UsesFileStore() {
		t.Errorf("unexpected app defaults: %+v", cfg.App)
	}
}

func TestProcessOverrides(t *testing.T) {
	cfg, err := Process(context.Background(), envconfig.MapLookuper(map[string]string{
		"APP_STORE":           "file",
		"APP_DATA_DIR":        "/tmp/checkout",
		"DB_NAME":             "shop",
		"PAYSTACK_SECRET_KEY": "sk_test_123",
		"MAIL_ADMIN_EMAIL":    "ops@example.com",
		"RATE_LIMIT_BURST":    "3",
	}))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if !cfg.App.UsesFileStore() || cfg.App.DataDir != "/tmp/checkout" {
		t.Errorf("app store: got %+v", cfg.App)
	}
	want := "host=localhost port=5432 user=postgres password=postgres dbname=shop sslmode=disable"
	if got := cfg.Database.GetDatabaseURL(); got != want {
		t.Errorf("database url: got %q, want %q", got, want)
	}
	if cfg.Paystack.SecretKey != "sk_test_123" || cfg.Mail.AdminEmail != "ops@example.com" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Paystack, cfg.Mail)
	}
	if cfg.RateLimit.Burst != 3 {
		t.Errorf("burst: got %d", cfg.RateLimit.Burst)
	}
}

func TestProcessRejectsUnknownStore(t *testing.T) {
	_, err := Process(context.Background(), envconfig.MapLookuper(map[string]string{
		"APP_STORE": "redis",
	}))
	if err == nil {
		t.Fatal("expected error for unknown store")
	}
}
