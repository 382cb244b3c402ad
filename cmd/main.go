package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kkkkikiki/checkout/internal/bootstrap"
	"github.com/kkkkikiki/checkout/internal/config"
	"github.com/kkkkikiki/checkout/internal/httpapi"
	"github.com/kkkkikiki/checkout/internal/logging"
	"github.com/kkkkikiki/checkout/internal/mirror"
	"github.com/kkkkikiki/checkout/internal/notify"
	"github.com/kkkkikiki/checkout/internal/paystack"
	"github.com/kkkkikiki/checkout/internal/referral"
	"github.com/kkkkikiki/checkout/internal/rpc"
	"github.com/kkkkikiki/checkout/internal/service"
)

func main() {
	ctx := context.Background()

	// Load configuration from environment variables
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.App.IsProduction(), cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting checkout service",
		zap.String("environment", cfg.App.Environment),
		zap.String("store", cfg.App.Store),
	)

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("error closing store", zap.Error(err))
		}
	}()

	docs, err := mirror.New(ctx, cfg.Mongo, logger)
	if err != nil {
		logger.Warn("mongo mirror disabled", zap.Error(err))
		docs = mirror.Nop{}
	}

	if cfg.Paystack.SecretKey == "" {
		logger.Warn("PAYSTACK_SECRET_KEY is not set, payment endpoints will fail")
	}
	if cfg.Admin.Key == "" {
		logger.Warn("ADMIN_KEY is not set, admin listings are disabled")
	}

	gateway := paystack.NewClient(cfg.Paystack, logger)
	notifier := notify.NewNotifier(notify.NewZeptomail(cfg.Mail, logger), cfg.Mail.AdminEmail, cfg.Referral.CommissionRate, logger)
	dispatcher := notify.NewDispatcher(cfg.Mail.Timeout, logger)

	coupons := service.NewCouponService(store, logger)
	payments := service.NewPaymentService(service.PaymentDeps{
		Leads:      store,
		Coupons:    coupons,
		Gateway:    gateway,
		Notifier:   notifier,
		Dispatcher: dispatcher,
		Mirror:     docs,
		AppURL:     cfg.App.URL,
		Logger:     logger,
	})
	waitlist := service.NewWaitlistService(store, notifier, dispatcher, docs, logger)
	referrals := referral.NewLedger(referral.Options{
		AppURL:      cfg.App.URL,
		DefaultRate: decimal.NewFromFloat(cfg.Referral.CommissionRate),
	})

	r := httpapi.NewRouter(logger)
	httpapi.NewHandler(httpapi.Deps{
		Coupons:   coupons,
		Payments:  payments,
		Waitlist:  waitlist,
		Referrals: referrals,
		AdminKey:  cfg.Admin.Key,
		Limiter:   httpapi.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Logger:    logger,
	}).Routes(r)

	// Register coupon RPC handler
	path, handler := rpc.NewCouponServiceHandler(rpc.NewCouponServer(coupons, logger))
	r.Mount(path, handler)

	mountHealth(r, store, docs)

	// Add Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:           cfg.Server.GetServerAddr(),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
		// Use h2c so Connect clients can speak HTTP/2 without TLS
		Handler: h2c.NewHandler(r, &http2.Server{
			MaxConcurrentStreams: 1000,
		}),
	}

	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("abandoned in-flight notifications", zap.Error(err))
	}
	if err := docs.Close(shutdownCtx); err != nil {
		logger.Error("error closing mongo mirror", zap.Error(err))
	}

	logger.Info("server exited gracefully")
}

type pinger interface {
	Ping(ctx context.Context) error
}

func mountHealth(r chi.Router, store, docs pinger) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		hostname, _ := os.Hostname()
		writeHealth(w, http.StatusOK, map[string]string{
			"status":   "ok",
			"service":  "checkout",
			"hostname": hostname,
		})
	})

	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			writeHealth(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "message": "store unavailable"})
			return
		}
		mongoStatus := "connected"
		if err := docs.Ping(r.Context()); err != nil {
			mongoStatus = "unavailable"
		}
		writeHealth(w, http.StatusOK, map[string]string{"status": "ok", "store": "connected", "mongo": mongoStatus})
	})
}

func writeHealth(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
