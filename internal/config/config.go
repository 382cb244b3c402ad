package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `env:",prefix=SERVER_"`

	// Database configuration
	Database DatabaseConfig `env:",prefix=DB_"`

	// MongoDB mirror configuration
	Mongo MongoConfig `env:",prefix=MONGO_"`

	// Application configuration
	App AppConfig `env:",prefix=APP_"`

	// Payment gateway configuration
	Paystack PaystackConfig `env:",prefix=PAYSTACK_"`

	// Transactional email configuration
	Mail MailConfig `env:",prefix=MAIL_"`

	// Admin endpoints configuration
	Admin AdminConfig `env:",prefix=ADMIN_"`

	// Referral ledger configuration
	Referral ReferralConfig `env:",prefix=REFERRAL_"`

	// Public endpoint rate limiting
	RateLimit RateLimitConfig `env:",prefix=RATE_LIMIT_"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string `env:"PORT,default=8080"`
	Host         string `env:"HOST,default=0.0.0.0"`
	ReadTimeout  int    `env:"READ_TIMEOUT,default=30"`  // seconds
	WriteTimeout int    `env:"WRITE_TIMEOUT,default=30"` // seconds
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=postgres"`
	Password string `env:"PASSWORD,default=postgres"`
	Name     string `env:"NAME,default=checkout"`
	SSLMode  string `env:"SSL_MODE,default=disable"`
	MaxConns int    `env:"MAX_CONNS,default=25"`
	MinConns int    `env:"MIN_CONNS,default=5"`

	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME,default=1h"`
	ConnMaxIdleTime time.Duration `env:"CONN_MAX_IDLE_TIME,default=5m"`
	ConnectRetries  int           `env:"CONNECT_RETRIES,default=5"`
	RetryDelay      time.Duration `env:"RETRY_DELAY,default=2s"`
}

// MongoConfig holds the optional MongoDB mirror settings. An empty URI disables the mirror.
type MongoConfig struct {
	URI      string        `env:"URI"`
	Database string        `env:"DATABASE,default=ecommerce_landing"`
	Timeout  time.Duration `env:"TIMEOUT,default=5s"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	Debug       bool   `env:"DEBUG,default=false"`
	URL         string `env:"URL,default=http://localhost:3000"`
	Store       string `env:"STORE,default=postgres"` // postgres or file
	DataDir     string `env:"DATA_DIR,default=data"`
}

// PaystackConfig holds payment gateway settings
type PaystackConfig struct {
	SecretKey string        `env:"SECRET_KEY"`
	BaseURL   string        `env:"BASE_URL,default=https://api.paystack.co"`
	Timeout   time.Duration `env:"TIMEOUT,default=15s"`
}

// MailConfig holds the Zeptomail API settings
type MailConfig struct {
	APIToken   string        `env:"API_TOKEN"`
	BaseURL    string        `env:"BASE_URL,default=https://api.zeptomail.com"`
	FromEmail  string        `env:"FROM_EMAIL,default=noreply@zabug.com"`
	FromName   string        `env:"FROM_NAME,default=E-commerce Template"`
	AdminEmail string        `env:"ADMIN_EMAIL"`
	Timeout    time.Duration `env:"TIMEOUT,default=10s"`
}

// AdminConfig holds the static bearer token guarding admin listings
type AdminConfig struct {
	Key string `env:"KEY"`
}

// ReferralConfig holds referral program settings
type ReferralConfig struct {
	CommissionRate float64 `env:"COMMISSION_RATE,default=0.2"`
}

// RateLimitConfig holds per-client limits for public POST endpoints
type RateLimitConfig struct {
	RPS   float64 `env:"RPS,default=5"`
	Burst int     `env:"BURST,default=10"`
}

// Load loads configuration from a .env file (if present) and environment variables
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return Process(ctx, envconfig.OsLookuper())
}

// Process builds the configuration from the given lookuper.
func Process(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	if cfg.App.Store != "postgres" && cfg.App.Store != "file" {
		return nil, fmt.Errorf("invalid APP_STORE %q: want postgres or file", cfg.App.Store)
	}
	return &cfg, nil
}

// GetDatabaseURL returns the PostgreSQL connection URL
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if running in development environment
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// UsesFileStore returns true when leads, coupons and waitlist live in JSON files
func (c *AppConfig) UsesFileStore() bool {
	return c.Store == "file"
}
