// Package httpapi exposes the checkout over JSON HTTP.
package httpapi

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kkkkikiki/checkout/internal/referral"
	"github.com/kkkkikiki/checkout/internal/service"
)

// Handler holds all API handler state.
type Handler struct {
	coupons   *service.CouponService
	payments  *service.PaymentService
	waitlist  *service.WaitlistService
	referrals *referral.Ledger
	adminKey  string
	limiter   *IPRateLimiter
	logger    *zap.Logger
}

// Deps groups the collaborators of a Handler.
type Deps struct {
	Coupons   *service.CouponService
	Payments  *service.PaymentService
	Waitlist  *service.WaitlistService
	Referrals *referral.Ledger
	AdminKey  string
	Limiter   *IPRateLimiter
	Logger    *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	limiter := d.Limiter
	if limiter == nil {
		limiter = NewIPRateLimiter(0, 0)
	}
	return &Handler{
		coupons:   d.Coupons,
		payments:  d.Payments,
		waitlist:  d.Waitlist,
		referrals: d.Referrals,
		adminKey:  d.AdminKey,
		limiter:   limiter,
		logger:    d.Logger.Named("http"),
	}
}

// NewRouter returns a chi router with the common middleware stack.
func NewRouter(logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(AccessLog(logger.Named("access")))
	r.Use(chimw.Recoverer)
	return r
}

// Routes mounts the checkout API routes.
func (h *Handler) Routes(r chi.Router) {
	admin := RequireAdmin(h.adminKey)

	r.With(h.limiter.Middleware).Post("/coupons/validate", h.ValidateCoupon)

	r.Route("/payments", func(r chi.Router) {
		r.With(h.limiter.Middleware).Post("/initialize", h.InitializePayment)
		r.Get("/verify", h.VerifyPayment)
		r.Post("/webhook", h.PaymentWebhook)
	})

	r.Route("/waitlist", func(r chi.Router) {
		r.With(h.limiter.Middleware).Post("/", h.JoinWaitlist)
		r.With(admin).Get("/", h.ListWaitlist)
	})

	r.With(admin).Get("/leads", h.ListLeads)

	r.Route("/referrals", func(r chi.Router) {
		r.Get("/", h.GetReferralLink)
		r.Post("/", h.TrackReferral)
		r.Post("/clicks", h.LogReferralClick)
		r.With(admin).Post("/sales/{id}/paid", h.MarkReferralSalePaid)
		r.Get("/{userId}/stats", h.ReferralStats)
		r.Get("/{userId}/events", h.ReferralEvents)
	})
}
